package attachments

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
)

const maxNameLength = 255

var allowedContentTypes = []string{
	"image/png",
	"image/jpeg",
	"image/webp",
	"image/gif",
	"image/heic",
	"image/heif",
	"application/pdf",
}

// Upload is a receipt file as received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Stored describes a persisted attachment.
type Stored struct {
	Key         string
	Name        string
	ContentType string
	Size        int64
}

// Service validates uploads and moves them in and out of a Store.
type Service struct {
	store    Store
	maxBytes int64
	logg     *logger.Logger
}

func NewService(store Store, maxBytes int64, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, errors.New("attachment store is required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("attachment size limit must be positive")
	}
	return &Service{store: store, maxBytes: maxBytes, logg: logg}, nil
}

// MaxBytes is the per-file upload limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Save sniffs, checks and stores an upload under the team's key space.
func (s *Service) Save(ctx context.Context, teamID uuid.UUID, upload Upload) (*Stored, error) {
	if upload.Body == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment body is required")
	}

	data, err := io.ReadAll(io.LimitReader(upload.Body, s.maxBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read attachment")
	}
	if int64(len(data)) > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeTooLarge, "attachment exceeds size limit").
			WithDetails(map[string]any{"max_bytes": s.maxBytes})
	}
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment is empty")
	}

	detected := mimetype.Detect(data)
	contentType, ok := allowedType(detected)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "attachment must be an image or PDF").
			WithDetails(map[string]any{"content_type": detected.String()})
	}

	key := fmt.Sprintf("teams/%s/%s%s", teamID, uuid.NewString(), detected.Extension())
	if err := s.store.Put(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store attachment")
	}

	return &Stored{
		Key:         key,
		Name:        cleanName(upload.Filename, detected.Extension()),
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// Open returns a reader for a stored attachment. The caller closes it.
func (s *Service) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "attachment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open attachment")
	}
	return body, nil
}

// Discard removes an attachment whose expense was never committed.
// Failures are logged, not returned.
func (s *Service) Discard(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "attachment_key", key), "attachment.discard_failed", err)
	}
}

func allowedType(m *mimetype.MIME) (string, bool) {
	for _, candidate := range allowedContentTypes {
		if m.Is(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func cleanName(name, ext string) string {
	base := strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if base == "" || base == "." || base == "/" {
		return "attachment" + ext
	}
	for len(base) > maxNameLength {
		_, size := utf8.DecodeLastRuneInString(base)
		base = base[:len(base)-size]
	}
	return base
}
