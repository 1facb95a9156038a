package attachments

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworkbook/backend/pkg/config"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/storage/gcs"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF\n")
)

func newLocalService(t *testing.T, maxBytes int64) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	svc, err := NewService(store, maxBytes, nil)
	require.NoError(t, err)
	return svc, dir
}

func TestSaveStoresDetectedImage(t *testing.T) {
	svc, dir := newLocalService(t, 1<<20)
	teamID := uuid.New()

	stored, err := svc.Save(context.Background(), teamID, Upload{Filename: "C:\\photos\\receipt.png", Body: bytes.NewReader(pngBytes)})
	require.NoError(t, err)

	assert.Equal(t, "image/png", stored.ContentType)
	assert.Equal(t, "receipt.png", stored.Name)
	assert.Equal(t, int64(len(pngBytes)), stored.Size)
	assert.True(t, strings.HasPrefix(stored.Key, "teams/"+teamID.String()+"/"))
	assert.True(t, strings.HasSuffix(stored.Key, ".png"))

	onDisk, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(stored.Key)))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, onDisk)

	body, err := svc.Open(context.Background(), stored.Key)
	require.NoError(t, err)
	defer body.Close()
	read, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, read)
}

func TestSaveAcceptsPDFAndNamesBlankUploads(t *testing.T) {
	svc, _ := newLocalService(t, 1<<20)

	stored, err := svc.Save(context.Background(), uuid.New(), Upload{Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", stored.ContentType)
	assert.Equal(t, "attachment.pdf", stored.Name)
}

func TestSaveRejections(t *testing.T) {
	svc, _ := newLocalService(t, 64)

	cases := []struct {
		name string
		body io.Reader
		code pkgerrors.Code
	}{
		{name: "missing body", body: nil, code: pkgerrors.CodeValidation},
		{name: "empty", body: bytes.NewReader(nil), code: pkgerrors.CodeValidation},
		{name: "plain text", body: strings.NewReader("just some notes"), code: pkgerrors.CodeValidation},
		{name: "too large", body: bytes.NewReader(append([]byte("%PDF-1.4\n"), make([]byte, 128)...)), code: pkgerrors.CodeTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), uuid.New(), Upload{Filename: "x", Body: tc.body})
			assert.Equal(t, tc.code, pkgerrors.CodeOf(err))
		})
	}
}

func TestOpenMissingIsNotFound(t *testing.T) {
	svc, _ := newLocalService(t, 1<<20)

	_, err := svc.Open(context.Background(), "teams/none/missing.png")
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestDiscardRemovesFile(t *testing.T) {
	svc, dir := newLocalService(t, 1<<20)
	ctx := context.Background()

	stored, err := svc.Save(ctx, uuid.New(), Upload{Filename: "r.pdf", Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)

	svc.Discard(ctx, stored.Key)
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(stored.Key)))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	svc.Discard(ctx, stored.Key)
	svc.Discard(ctx, "")
}

func TestLocalStoreKeepsKeysInsideRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(filepath.Join(dir, "root"))
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "../../escape.txt", "", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(dir, "root", "escape.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.Error(t, store.Put(context.Background(), "  ", "", strings.NewReader("x")))
}

type fakeObjectClient struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeObjectClient) Upload(_ context.Context, object, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[object] = data
	f.types[object] = contentType
	return nil
}

func (f *fakeObjectClient) Download(_ context.Context, object string) (io.ReadCloser, string, error) {
	data, ok := f.objects[object]
	if !ok {
		return nil, "", gcs.ErrObjectNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), f.types[object], nil
}

func (f *fakeObjectClient) Delete(_ context.Context, object string) error {
	delete(f.objects, object)
	return nil
}

func TestGCSStorePrefixesObjects(t *testing.T) {
	client := &fakeObjectClient{objects: map[string][]byte{}, types: map[string]string{}}
	svc, err := NewService(NewGCSStore(client, "/attachments/"), 1<<20, nil)
	require.NoError(t, err)
	ctx := context.Background()

	stored, err := svc.Save(ctx, uuid.New(), Upload{Filename: "r.pdf", Body: bytes.NewReader(pdfBytes)})
	require.NoError(t, err)

	object := "attachments/" + stored.Key
	require.Contains(t, client.objects, object)
	assert.Equal(t, "application/pdf", client.types[object])

	body, err := svc.Open(ctx, stored.Key)
	require.NoError(t, err)
	_ = body.Close()

	svc.Discard(ctx, stored.Key)
	_, err = svc.Open(ctx, stored.Key)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestNewStoreSelectsBackend(t *testing.T) {
	cfg := &config.Config{Attachments: config.AttachmentsConfig{Backend: "local", LocalDir: t.TempDir()}}
	store, err := NewStore(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	cfg.Attachments.Backend = "s3"
	_, err = NewStore(context.Background(), cfg, nil)
	assert.Error(t, err)

	_, err = NewService(nil, 1, nil)
	assert.Error(t, err)
}
