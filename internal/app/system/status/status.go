// Package status holds the account states a user can be in. Only active
// accounts may sign in or keep a session.
package status

import (
	"errors"
	"strings"
)

const (
	Active   = "active"
	Disabled = "disabled"
)

// ErrUnknown is returned by Parse for anything but Active or Disabled.
var ErrUnknown = errors.New(`status must be "active" or "disabled"`)

// Parse normalizes s and checks it names a known state. An empty s means a
// new account and yields Active.
func Parse(s string) (string, error) {
	switch st := strings.ToLower(strings.TrimSpace(s)); st {
	case "":
		return Active, nil
	case Active, Disabled:
		return st, nil
	}
	return "", ErrUnknown
}

// CanSignIn reports whether an account in state s may log in. Stored values
// are compared loosely; anything unrecognised is refused.
func CanSignIn(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), Active)
}
