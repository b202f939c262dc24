package cli

import (
	"github.com/spf13/cobra"
)

// helpTemplate is the full overview for the root command. Subcommands get
// their description and cobra's usage block.
const helpTemplate = `{{if .HasParent}}{{with (or .Long .Short)}}{{. | trimTrailingWhitespaces}}

{{end}}{{.UsageString}}{{else}}wavescape - WaveScape session orchestration client

USAGE
  wavescape <command> [args] [flags]

COMMANDS
  Sessions:
    list [--filter <text>]                 List sessions (defunct creations hidden)
    show <id>                              Show one session, its stages and allowed actions
    watch <id>...                          Refresh sessions periodically; press Enter to refresh now
    create <id> --aoi <file>               Create a session and start Nearmap processing
    logs <id> <stage>                      Print nearmap, validation or wavescape task output
    sites <id>                             Print the sites table

  Actions:
    configure <id>                         Post the session configuration
    import-sites <id>                      Upload the raw CSV and processed GeoJSON sites
    update-sites <id> --rows <file>        Save edited and new site rows
    validate <id>                          Start validation
    run <id>                               Start the initial WaveScape run
    iterate <id> --name <name>             Start a named WaveScape iteration
    stop <id>                              Stop activities in progress

  Development:
    mock-server                            Serve an in-memory session API

GLOBAL FLAGS
  Backend:
    --api-url <url>                        Session collection URL (default: http://localhost:7071/api/sessions)
    --owner <id>                           Owner recorded on new sessions
    --http-timeout <duration>              Per-request timeout (default: 30s)

  Timers:
    --refresh-interval <duration>          Period between automatic refreshes (default: 30s)
    --warmup-budget <duration>             Time to wait for a new session (default: 30s)
    --warmup-interval <duration>           Delay between warm-up attempts (default: 3s)

  Output:
    -v, --verbose                          Print debug output
    --notify-command <cmd>                 Run <cmd> with each notification as last argument
    --config <path>                        Path to additional config file

  Help & Version:
    -h, --help                             Show this help text
    --version                              Show version, commit, build date

CONFIG FILES
  $XDG_CONFIG_HOME/wavescape/config, then .wavescape/config, then --config.
  KEY=VALUE lines: API_URL, OWNER_ID, REFRESH_INTERVAL, WARMUP_BUDGET,
  WARMUP_INTERVAL, HTTP_TIMEOUT, VERBOSE, NOTIFY_COMMAND.

EXIT CODES
  0   Success              Command completed
  1   Error                Invalid arguments, transport failure, backend rejection
  2   NotReady             Session never became ready during warm-up
  3   NameConflict         Session name invalid or already taken
  4   Unavailable          Action not currently allowed for the session
  130 Interrupted          SIGINT or SIGTERM received

EXAMPLES
  # Create a session with sites and configuration in one go
  wavescape create harbor --aoi harbor.gpkg --sites-csv sites.csv \
    --sites-geojson sites.geojson --configuration harbor.yaml

  # Watch two sessions, refreshing every 10 seconds
  wavescape watch harbor bay --refresh-interval 10s

  # Start a second iteration after editing sites
  wavescape update-sites harbor --rows edits.yaml
  wavescape iterate harbor --name tuned

  # Try the CLI against a local mock backend
  wavescape mock-server --addr 127.0.0.1:7071 --warmup-delay 3
{{end}}`

// SetCustomHelp configures the cobra command to use our custom help template.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}
