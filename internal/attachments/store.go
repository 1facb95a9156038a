// Package attachments stores expense receipts behind a backend-neutral Store.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fieldworkbook/backend/pkg/config"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/storage/gcs"
)

// ErrNotFound is returned by a Store when the key has no object.
var ErrNotFound = errors.New("attachment not found")

// Store persists opaque blobs under slash-separated keys.
type Store interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewStore builds the backend selected by FWB_ATTACHMENTS_BACKEND.
func NewStore(ctx context.Context, cfg *config.Config, logg *logger.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Attachments.Backend)) {
	case config.AttachmentBackendGCS:
		client, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
		if err != nil {
			return nil, err
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "bucket", client.DefaultBucket()), "attachments.gcs_store_ready")
		}
		return NewGCSStore(client, cfg.GCS.Prefix), nil
	case config.AttachmentBackendLocal, "":
		return NewLocalStore(cfg.Attachments.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported attachment backend %q", cfg.Attachments.Backend)
	}
}

// LocalStore keeps attachments on the local filesystem below a root directory.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("attachment directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve attachment directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment directory: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Put(ctx context.Context, key, _ string, r io.Reader) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve maps a key to a path that cannot escape the root.
func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(key))
	if clean == "/" {
		return "", fmt.Errorf("invalid attachment key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

type objectClient interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) error
	Download(ctx context.Context, object string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, object string) error
}

// GCSStore keeps attachments in a Cloud Storage bucket under an optional prefix.
type GCSStore struct {
	client objectClient
	prefix string
}

func NewGCSStore(client objectClient, prefix string) *GCSStore {
	return &GCSStore{client: client, prefix: strings.Trim(prefix, "/")}
}

func (s *GCSStore) object(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	return s.client.Upload(ctx, s.object(key), contentType, r)
}

func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, _, err := s.client.Download(ctx, s.object(key))
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return body, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	return s.client.Delete(ctx, s.object(key))
}
