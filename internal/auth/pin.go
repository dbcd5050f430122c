// Package auth implements the two access policies: a shared PIN for the
// single-tenant deployments and JWT bearer tokens for the multi-user ones.
package auth

import (
	"crypto/subtle"
	"errors"
)

var (
	ErrInvalidPIN   = errors.New("invalid pin")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// PINGate verifies the shared PIN.
type PINGate struct {
	pin string
}

func NewPINGate(pin string) *PINGate {
	return &PINGate{pin: pin}
}

func (g *PINGate) Verify(pin string) error {
	if subtle.ConstantTimeCompare([]byte(g.pin), []byte(pin)) != 1 {
		return ErrInvalidPIN
	}
	return nil
}
