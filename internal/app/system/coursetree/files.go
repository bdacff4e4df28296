package coursetree

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dalemusser/unigrading/internal/app/store/file"
	"github.com/dalemusser/unigrading/internal/app/system/blobstore"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateFileInput is the payload for CreateFile.
type CreateFileInput struct {
	CategoryID  primitive.ObjectID
	Name        string
	Uploader    Actor
	Content     io.Reader
	Size        int64  // -1 when unknown
	ContentType string // guessed from Name when empty
}

// CreateFile records the file and then stores its content. If the blob cannot
// be written the record is removed again, so no record survives a failed upload.
func (s *Service) CreateFile(ctx context.Context, in CreateFileInput) (*models.File, error) {
	f, err := s.createFile(ctx, in)
	s.observe("create_file", err)
	return f, err
}

func (s *Service) createFile(ctx context.Context, in CreateFileInput) (*models.File, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, newError(ErrValidation, "file name cannot be empty")
	}
	if err := checkSegment("file", name); err != nil {
		return nil, err
	}
	if in.Content == nil {
		return nil, newError(ErrValidation, "no file content was provided")
	}

	cat, err := s.loadCategory(ctx, in.CategoryID)
	if err != nil {
		return nil, err
	}
	sub, err := s.loadSubject(ctx, cat.SubjectID)
	if err != nil {
		return nil, err
	}

	key := blobstore.Key(blobstore.KeyInput{
		UploaderRole: in.Uploader.Role,
		UploaderName: in.Uploader.Name,
		SubjectName:  sub.Name,
		CategoryName: cat.Name,
		Filename:     name,
	})

	contentType := in.ContentType
	if contentType == "" {
		contentType = guessMIME(name)
	}

	var uploadedBy *primitive.ObjectID
	if !in.Uploader.ID.IsZero() {
		id := in.Uploader.ID
		uploadedBy = &id
	}

	// The record is inserted first so the unique blob_key index decides
	// between concurrent uploads before any bytes are written. A loser never
	// touches the stored object.
	f, err := s.files.Create(ctx, file.CreateInput{
		CategoryID:   cat.ID,
		SubjectID:    sub.ID,
		Name:         name,
		BlobKey:      key,
		Size:         in.Size,
		ContentType:  contentType,
		UploadedByID: uploadedBy,
	})
	if err != nil {
		if errors.Is(err, file.ErrDuplicateBlobKey) {
			return nil, newError(ErrConflict, "another file is already stored at %q", key)
		}
		return nil, err
	}

	body := &countingReader{r: in.Content}
	if err := s.blobs.Put(ctx, key, body, in.Size, contentType); err != nil {
		if _, delErr := s.files.Delete(ctx, f.ID); delErr != nil {
			s.log.Error("upload failed and its record could not be removed",
				zap.String("file_id", f.ID.Hex()),
				zap.String("key", key),
				zap.Error(delErr))
		}
		return nil, &Error{Kind: ErrStorage, Msg: "upload failed; the file was not saved", Err: err}
	}

	if body.n != f.Size {
		if err := s.files.SetSize(ctx, f.ID, body.n); err != nil {
			s.log.Warn("could not record upload size",
				zap.String("file_id", f.ID.Hex()),
				zap.Error(err))
		} else {
			f.Size = body.n
		}
	}

	s.log.Info("file uploaded",
		zap.String("file_id", f.ID.Hex()),
		zap.String("key", key),
		zap.Int64("size", f.Size))
	return f, nil
}

// DeleteFile removes a file record. The uploader, the subject's owner and
// admins may do this. The blob is deleted best effort; the record is always
// removed.
func (s *Service) DeleteFile(ctx context.Context, id primitive.ObjectID, actor Actor) error {
	err := s.deleteFile(ctx, id, actor)
	s.observe("delete_file", err)
	return err
}

func (s *Service) deleteFile(ctx context.Context, id primitive.ObjectID, actor Actor) error {
	f, err := s.loadFile(ctx, id)
	if err != nil {
		return err
	}

	allowed := actor.IsAdmin() || f.UploadedBy(actor.ID)
	if !allowed {
		sub, err := s.subjects.GetByID(ctx, f.SubjectID)
		allowed = err == nil && sub.OwnerID == actor.ID
	}
	if !allowed {
		return newError(ErrPermission, "you are not allowed to delete this file")
	}

	s.removeBlob(ctx, f.BlobKey, f.ID)

	if _, err := s.files.Delete(ctx, id); err != nil {
		return err
	}
	return nil
}

// OpenFile returns the file record and a reader over its bytes. Subject
// owners, enrolled users, the uploader and admins may read. The caller closes
// the reader.
func (s *Service) OpenFile(ctx context.Context, id primitive.ObjectID, actor Actor) (*models.File, io.ReadCloser, error) {
	f, err := s.loadFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if err := s.canRead(ctx, f, actor); err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Get(ctx, f.BlobKey)
	switch {
	case errors.Is(err, blobstore.ErrNotFound):
		return nil, nil, newError(ErrNotFound, "file is missing from storage")
	case err != nil:
		return nil, nil, &Error{Kind: ErrStorage, Msg: "file could not be read from storage", Err: err}
	}
	return f, rc, nil
}

func (s *Service) canRead(ctx context.Context, f *models.File, actor Actor) error {
	if f.UploadedBy(actor.ID) {
		return nil
	}
	sub, err := s.loadSubject(ctx, f.SubjectID)
	if err != nil {
		return err
	}
	return s.checkMember(ctx, sub, actor)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
