package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// SiteRow is one transmitter entry of a session's sites table. Rows are kept
// as loose JSON objects because the backend stores whatever columns the
// operator supplied.
type SiteRow map[string]any

// Key returns the row's table key, empty for a row not yet stored.
func (r SiteRow) Key() string {
	k, _ := r["RowKey"].(string)
	return strings.TrimSpace(k)
}

// Enabled reports the row's enabled flag and whether it was present at all.
func (r SiteRow) Enabled() (enabled, ok bool) {
	enabled, ok = r["enabled"].(bool)
	return enabled, ok
}

// Sites retrieves the sites table of id. The backend only creates the table
// once validation or WaveScape has been started.
func (f *Fetcher) Sites(ctx context.Context, id string) ([]SiteRow, error) {
	const op = "retrieve sites data"
	resp, err := f.get(ctx, op, url.PathEscape(id)+"/sites")
	if err != nil {
		return nil, err
	}
	var rows []SiteRow
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrParse, err)
	}
	return rows, nil
}
