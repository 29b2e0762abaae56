package controllers

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/internal/managers"
)

type stubDriveStore struct {
	nodes     map[string]domain.DriveNode
	content   map[string][]byte
	downloads []string
}

func newStubDriveStore() *stubDriveStore {
	return &stubDriveStore{
		nodes:   map[string]domain.DriveNode{},
		content: map[string][]byte{},
	}
}

func (s *stubDriveStore) FindFolders(ctx context.Context, name, parentID string) ([]domain.DriveNode, error) {
	return nil, nil
}

func (s *stubDriveStore) ListChildren(ctx context.Context, folderID string) ([]domain.DriveNode, error) {
	return nil, nil
}

func (s *stubDriveStore) GetNode(ctx context.Context, id string) (domain.DriveNode, error) {
	n, ok := s.nodes[id]
	if !ok {
		return domain.DriveNode{}, domain.NewNotFoundError("file", id)
	}
	return n, nil
}

func (s *stubDriveStore) SearchFiles(ctx context.Context, name string) ([]domain.DriveNode, error) {
	return nil, nil
}

func (s *stubDriveStore) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	s.downloads = append(s.downloads, id)
	data, ok := s.content[id]
	if !ok {
		return nil, domain.NewNotFoundError("file", id)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *stubDriveStore) Share(ctx context.Context, id, email string) error {
	return nil
}

func smallJPEG(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newPreviewApp(store *stubDriveStore) *fiber.App {
	controller := NewDriveController(DriveControllerDependencies{
		Compressor: managers.NewImageCompressor(),
		Store:      store,
	})

	app := fiber.New()
	app.Get("/preview", controller.Preview)
	return app
}

func TestDriveControllerPreviewFollowsShortcut(t *testing.T) {
	store := newStubDriveStore()
	store.nodes["sc-1"] = domain.DriveNode{
		ID:       "sc-1",
		Name:     "১_mouza_১_map.jpg",
		MimeType: domain.MimeTypeShortcut,
		TargetID: "f-1",
	}
	store.nodes["f-1"] = domain.DriveNode{
		ID:       "f-1",
		Name:     "১_mouza_১_map.jpg",
		MimeType: domain.MimeTypeJPEG,
	}
	store.content["f-1"] = smallJPEG(t)

	app := newPreviewApp(store)

	resp, err := app.Test(httptest.NewRequest("GET", "/preview?file_id=sc-1", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))

	// The shortcut itself holds no bytes; the target was downloaded.
	assert.Equal(t, []string{"f-1"}, store.downloads)
}

func TestDriveControllerPreviewDirectFile(t *testing.T) {
	store := newStubDriveStore()
	store.nodes["f-2"] = domain.DriveNode{
		ID:       "f-2",
		Name:     "২_mouza_৩_map.jpg",
		MimeType: domain.MimeTypeJPEG,
	}
	store.content["f-2"] = smallJPEG(t)

	app := newPreviewApp(store)

	resp, err := app.Test(httptest.NewRequest("GET", "/preview?file_id=f-2", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"f-2"}, store.downloads)
}
