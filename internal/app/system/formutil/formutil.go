// Package formutil binds request payloads for the JSON handlers.
//
// Handlers call Bind to decode and validate a body in one step, and PathID to
// read an ObjectID route parameter:
//
//	var in renameInput
//	if !formutil.Bind(w, r, &in) {
//		return
//	}
//	id, ok := formutil.PathID(w, r, "id", "folder")
//	if !ok {
//		return
//	}
//
// Both write the error response themselves when they return false.
package formutil

import (
	"net/http"

	"github.com/dalemusser/unigrading/internal/app/system/inputval"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxBodyBytes caps JSON bodies. Uploads are multipart and have their own limit.
const MaxBodyBytes = 1 << 20

// Bind decodes the JSON body into v and validates it with inputval.
func Bind(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := jsonutil.Decode(r, v); err != nil {
		jsonutil.BadRequest(w, "malformed request body")
		return false
	}
	if res := inputval.Validate(v); res.HasErrors() {
		jsonutil.BadRequest(w, res.First())
		return false
	}
	return true
}

// PathID parses the named chi URL parameter. A malformed ID cannot name an
// existing record, so it is answered with "<what> not found".
func PathID(w http.ResponseWriter, r *http.Request, param, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, param))
	if err != nil {
		jsonutil.NotFound(w, what+" not found")
		return primitive.NilObjectID, false
	}
	return id, true
}
