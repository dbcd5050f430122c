package store

import (
	"context"
	"testing"

	"soji/internal/store/memory"
)

func TestLoadSettings(t *testing.T) {
	cases := []struct {
		name     string
		rows     map[string]string
		defaults Settings
		want     Settings
	}{
		{
			name: "rows win over defaults",
			rows: map[string]string{
				KeyPINCode:      "4821",
				KeyReporterName: "山田太郎",
				KeyClientName:   "株式会社サンプル",
			},
			defaults: Settings{ReporterName: "env-reporter"},
			want: Settings{
				PIN:          "4821",
				ReporterName: "山田太郎",
				ClientName:   "株式会社サンプル",
			},
		},
		{
			name:     "empty table falls back to defaults",
			rows:     map[string]string{},
			defaults: Settings{ReporterName: "env-reporter", ClientName: "env-client"},
			want: Settings{
				PIN:          DefaultPIN,
				ReporterName: "env-reporter",
				ClientName:   "env-client",
			},
		},
		{
			name:     "blank row value ignored",
			rows:     map[string]string{KeyPINCode: ""},
			defaults: Settings{},
			want:     Settings{PIN: DefaultPIN},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := LoadSettings(context.Background(), memory.NewSettingsStore(tc.rows), tc.defaults)
			if err != nil {
				t.Fatalf("LoadSettings() error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("LoadSettings() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
