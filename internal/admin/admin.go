// Package admin holds the shared-secret check guarding every mutation.
package admin

import (
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"rpucella.net/red-drive/internal/config"
)

var (
	ErrDenied   = errors.New("admin password rejected")
	ErrDisabled = errors.New("admin access is not configured")
)

// Gate compares a candidate with either a bcrypt hash or a plain
// password. A Gate with neither refuses everybody.
type Gate struct {
	hash     []byte
	password []byte
}

func NewGate(cfg config.AdminConfig) *Gate {
	g := &Gate{}
	if cfg.PasswordHash != "" {
		g.hash = []byte(cfg.PasswordHash)
	} else if cfg.Password != "" {
		g.password = []byte(cfg.Password)
	}
	return g
}

func (g *Gate) Enabled() bool {
	return len(g.hash) > 0 || len(g.password) > 0
}

func (g *Gate) Check(candidate string) error {
	switch {
	case len(g.hash) > 0:
		if bcrypt.CompareHashAndPassword(g.hash, []byte(candidate)) != nil {
			return ErrDenied
		}
		return nil
	case len(g.password) > 0:
		if subtle.ConstantTimeCompare(g.password, []byte(candidate)) != 1 {
			return ErrDenied
		}
		return nil
	}
	return ErrDisabled
}

// Hash produces a value for the admin.passwordHash setting.
func Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
