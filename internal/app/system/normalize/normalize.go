// Package normalize canonicalizes user-entered account fields before they are
// stored or compared. Case-insensitive lookup keys come from text.Fold.
package normalize

import "strings"

// Email trims and lowercases an address.
func Email(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// LoginID trims and lowercases a login identifier.
func LoginID(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Role trims and lowercases a role so "Professor " matches models.RoleProfessor.
func Role(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Name trims a display name and collapses runs of whitespace. Display names
// end up in storage keys, so "Jane  Doe" and "Jane Doe" must agree.
func Name(s string) string { return strings.Join(strings.Fields(s), " ") }
