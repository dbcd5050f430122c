package auth

import (
	"errors"
	"testing"
)

func TestPINGate(t *testing.T) {
	cases := []struct {
		name    string
		pin     string
		attempt string
		wantErr error
	}{
		{"correct pin", "4821", "4821", nil},
		{"wrong pin", "4821", "0000", ErrInvalidPIN},
		{"empty attempt", "4821", "", ErrInvalidPIN},
		{"default pin", "0000", "0000", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := NewPINGate(tc.pin)
			if err := g.Verify(tc.attempt); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Verify(%q) = %v, want %v", tc.attempt, err, tc.wantErr)
			}
		})
	}
}
