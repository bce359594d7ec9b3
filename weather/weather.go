// Package weather polls the in-game weather API and reports changes.
package weather

import (
	"time"
)

// DefaultURL is the weather endpoint polled by default.
const DefaultURL = "https://growagardenstock.com/api/stock/weather"

// DefaultIcon is used when the payload carries none.
const DefaultIcon = "🌤️"

// Snapshot is the client-facing weather state. EndTime and UpdatedAt are
// passed through as the API sends them (string or number).
type Snapshot struct {
	Icon           string `json:"icon"`
	Description    string `json:"description"`
	CurrentWeather string `json:"currentWeather"`
	EndTime        any    `json:"endTime"`
	UpdatedAt      any    `json:"updatedAt"`
}

// Known reports whether the snapshot holds fetched data.
func (s Snapshot) Known() bool {
	return s.CurrentWeather != "" || s.Description != ""
}

// FromPayload maps a decoded API object onto a Snapshot, filling missing
// fields: description falls back to effectDescription, currentWeather to
// weatherType, updatedAt to now in milliseconds.
func FromPayload(p map[string]any, now time.Time) Snapshot {
	return Snapshot{
		Icon:           firstString(p, DefaultIcon, "icon"),
		Description:    firstString(p, "Unknown weather", "description", "effectDescription"),
		CurrentWeather: firstString(p, "Unknown", "currentWeather", "weatherType"),
		EndTime:        p["endTime"],
		UpdatedAt:      orDefault(p["updatedAt"], now.UnixMilli()),
	}
}

func firstString(p map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func orDefault(v, fallback any) any {
	switch x := v.(type) {
	case nil:
		return fallback
	case string:
		if x == "" {
			return fallback
		}
	case bool:
		if !x {
			return fallback
		}
	case float64:
		if x == 0 {
			return fallback
		}
	}
	return v
}
