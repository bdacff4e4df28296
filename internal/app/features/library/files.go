package library

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/unigrading/internal/app/store/audit"
	"github.com/dalemusser/unigrading/internal/app/system/authz"
	"github.com/dalemusser/unigrading/internal/app/system/coursetree"
	"github.com/dalemusser/unigrading/internal/app/system/formutil"
	"github.com/dalemusser/unigrading/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

// upload accepts multipart/form-data with the bytes in "file". An optional
// "name" field overrides the client's filename.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "folder")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	if _, err := h.svc.UploadCategory(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "upload failed", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			jsonutil.Error(w, http.StatusRequestEntityTooLarge,
				"file is too large (max "+strconv.FormatInt(h.maxUploadBytes>>20, 10)+" MB)")
			return
		}
		jsonutil.BadRequest(w, "expected a multipart upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	part, header, err := r.FormFile("file")
	if err != nil {
		jsonutil.BadRequest(w, "please select a file to upload")
		return
	}
	defer part.Close()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = header.Filename
	}

	f, err := h.svc.CreateFile(r.Context(), coursetree.CreateFileInput{
		CategoryID:  id,
		Name:        name,
		Uploader:    actor,
		Content:     part,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		h.errLog.Respond(w, r, "upload failed", err)
		return
	}
	h.auditLogger.LibraryAction(r.Context(), r, actor.ID, audit.EventFileUploaded, map[string]string{
		"file_id":  f.ID.Hex(),
		"blob_key": f.BlobKey,
	})
	jsonutil.Created(w, f)
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := formutil.PathID(w, r, "id", "file")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	if err := h.svc.DeleteFile(r.Context(), id, actor); err != nil {
		h.errLog.Respond(w, r, "delete file failed", err)
		return
	}
	h.auditLogger.LibraryAction(r.Context(), r, actor.ID, audit.EventFileDeleted, map[string]string{"file_id": id.Hex()})
	jsonutil.NoContent(w)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "attachment")
}

// preview shows the file inline when a browser can render it and falls back
// to a download otherwise.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "inline")
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, disposition string) {
	id, ok := formutil.PathID(w, r, "id", "file")
	if !ok {
		return
	}
	actor, _ := authz.Actor(r)

	f, rc, err := h.svc.OpenFile(r.Context(), id, actor)
	if err != nil {
		h.errLog.Respond(w, r, "open file failed", err)
		return
	}
	defer rc.Close()

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if disposition == "inline" && !IsViewable(contentType) {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": f.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("failed to stream file",
			zap.String("file_id", f.ID.Hex()),
			zap.String("key", f.BlobKey),
			zap.Error(err))
	}
}

func isTooLarge(err error) bool {
	var tooBig *http.MaxBytesError
	return errors.As(err, &tooBig) || strings.Contains(err.Error(), "request body too large")
}

// IsViewable reports whether contentType is safe to display inline. Markup
// that can run script (HTML and every XML type) is always downloaded.
func IsViewable(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	if strings.HasSuffix(mediaType, "+xml") {
		return false
	}
	switch mediaType {
	case "text/html", "text/xml", "application/xml", "text/xsl":
		return false
	case "application/pdf":
		return true
	}
	for _, prefix := range []string{"image/", "video/", "audio/", "text/"} {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}
