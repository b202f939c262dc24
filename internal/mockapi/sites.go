package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/nellyag1/wavescape-portal222/internal/session"
)

// PartitionKey is the partition every site row is stored under.
const PartitionKey = "On-Air Sites"

type siteFeature struct {
	ID       any `json:"id"`
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// extractSites expands a sites GeoJSON document into one row per antenna
// entry. An entry missing any required numeric field is kept but disabled.
func extractSites(processed json.RawMessage) ([]session.SiteRow, error) {
	var doc struct {
		GeoJSON  json.RawMessage `json:"geoJSON"`
		Features []siteFeature   `json:"features"`
	}
	if err := json.Unmarshal(processed, &doc); err != nil {
		return nil, fmt.Errorf("sites GeoJSON: %w", err)
	}
	if len(doc.GeoJSON) > 0 {
		return extractSites(doc.GeoJSON)
	}

	var rows []session.SiteRow
	for _, f := range doc.Features {
		if len(f.Geometry.Coordinates) < 2 {
			return nil, fmt.Errorf("feature %v: geometry needs longitude and latitude", f.ID)
		}
		height, err := toFloat(f.Properties["height_m"])
		if err != nil {
			return nil, fmt.Errorf("feature %v: height_m: %w", f.ID, err)
		}

		azimuth := column(f.Properties, "azimuth")
		for i := range azimuth {
			entry := func(key string) any {
				col := column(f.Properties, key)
				if i < len(col) {
					return col[i]
				}
				return nil
			}
			enabled := true
			for _, key := range []string{"azimuth", "ant_bw", "downtilt_deg", "peak_tx_dbm"} {
				if isEmpty(entry(key)) {
					enabled = false
				}
			}
			rows = append(rows, session.SiteRow{
				"src_indx":     f.ID,
				"longitude":    f.Geometry.Coordinates[0],
				"latitude":     f.Geometry.Coordinates[1],
				"height_m":     height,
				"azimuth":      maybeFloat(entry("azimuth")),
				"ant_bw":       maybeFloat(entry("ant_bw")),
				"ant_pattern":  entry("ant_pattern"),
				"downtilt_deg": maybeFloat(entry("downtilt_deg")),
				"peak_tx_dbm":  maybeFloat(entry("peak_tx_dbm")),
				"enabled":      enabled,
			})
		}
	}
	return rows, nil
}

func column(props map[string]any, key string) []any {
	col, _ := props[key].([]any)
	return col
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	default:
		return 0, errors.New("not a number")
	}
}

func maybeFloat(v any) any {
	if f, err := toFloat(v); err == nil {
		return f
	}
	return v
}

// upsert replaces rows by RowKey, assigning keys to rows that have none.
func upsert(table []session.SiteRow, rows []session.SiteRow) []session.SiteRow {
	index := make(map[string]int, len(table))
	for i, row := range table {
		index[row.Key()] = i
	}
	for _, row := range rows {
		stored := make(session.SiteRow, len(row)+2)
		for k, v := range row {
			stored[k] = v
		}
		stored["PartitionKey"] = PartitionKey
		if stored.Key() == "" {
			stored["RowKey"] = uuid.NewString()
		}
		if i, ok := index[stored.Key()]; ok {
			table[i] = stored
			continue
		}
		index[stored.Key()] = len(table)
		table = append(table, stored)
	}
	return table
}
