package store

import (
	"context"
	"fmt"
)

// Settings keys recognized in the settings rows.
const (
	KeyPINCode      = "PIN_CODE"
	KeyReporterName = "REPORTER_NAME"
	KeyClientName   = "CLIENT_NAME"
)

const DefaultPIN = "0000"

// Settings is the typed form of the settings rows, resolved once at startup.
type Settings struct {
	PIN          string
	ReporterName string
	ClientName   string
}

// LoadSettings reads all settings rows and resolves them against defaults.
// Missing PIN falls back to DefaultPIN; missing names fall back to the
// provided defaults (usually from the environment).
func LoadSettings(ctx context.Context, ss SettingsStore, defaults Settings) (Settings, error) {
	rows, err := ss.All(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}

	s := defaults
	if s.PIN == "" {
		s.PIN = DefaultPIN
	}
	if v, ok := rows[KeyPINCode]; ok && v != "" {
		s.PIN = v
	}
	if v, ok := rows[KeyReporterName]; ok && v != "" {
		s.ReporterName = v
	}
	if v, ok := rows[KeyClientName]; ok && v != "" {
		s.ClientName = v
	}
	return s, nil
}
