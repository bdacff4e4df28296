// Package authz answers "who is calling and what may they do" for handlers.
package authz

import (
	"net/http"

	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"github.com/dalemusser/unigrading/internal/app/system/normalize"
	"github.com/dalemusser/unigrading/internal/domain/models"
)

// Actor returns the signed-in user as a course tree actor. ok is false when
// nobody is signed in or the session carries a malformed user id.
func Actor(r *http.Request) (coursetree.Actor, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return coursetree.Actor{}, false
	}
	a := u.Actor()
	if a.ID.IsZero() {
		return coursetree.Actor{}, false
	}
	return a, true
}

// IsAdmin reports whether the caller is an admin.
func IsAdmin(r *http.Request) bool {
	return HasRole(r, models.RoleAdmin)
}

// IsProfessor reports whether the caller is a professor.
func IsProfessor(r *http.Request) bool {
	return HasRole(r, models.RoleProfessor)
}

// HasRole reports whether the caller has one of roles.
func HasRole(r *http.Request, roles ...string) bool {
	a, ok := Actor(r)
	if !ok {
		return false
	}
	for _, role := range roles {
		if normalize.Role(role) == a.Role {
			return true
		}
	}
	return false
}
