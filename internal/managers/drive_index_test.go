package managers

import (
	"context"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

type shareGrant struct {
	NodeID string
	Email  string
}

type fakeDriveStore struct {
	nodes    map[string]domain.DriveNode
	children map[string][]domain.DriveNode
	byName   map[string][]domain.DriveNode
	shares   []shareGrant
}

func newFakeDriveStore() *fakeDriveStore {
	return &fakeDriveStore{
		nodes:    map[string]domain.DriveNode{},
		children: map[string][]domain.DriveNode{},
		byName:   map[string][]domain.DriveNode{},
	}
}

func (s *fakeDriveStore) add(parentID string, node domain.DriveNode) {
	s.nodes[node.ID] = node
	if parentID != "" {
		node.Parents = []string{parentID}
		s.nodes[node.ID] = node
		s.children[parentID] = append(s.children[parentID], node)
	}
	s.byName[node.Name] = append(s.byName[node.Name], node)
}

func (s *fakeDriveStore) FindFolders(ctx context.Context, name, parentID string) ([]domain.DriveNode, error) {
	var out []domain.DriveNode
	for _, n := range s.byName[name] {
		if n.MimeType != domain.MimeTypeFolder {
			continue
		}
		if parentID != "" && (len(n.Parents) == 0 || n.Parents[0] != parentID) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *fakeDriveStore) ListChildren(ctx context.Context, folderID string) ([]domain.DriveNode, error) {
	return s.children[folderID], nil
}

func (s *fakeDriveStore) GetNode(ctx context.Context, id string) (domain.DriveNode, error) {
	n, ok := s.nodes[id]
	if !ok {
		return domain.DriveNode{}, domain.NewNotFoundError("file", id)
	}
	return n, nil
}

func (s *fakeDriveStore) SearchFiles(ctx context.Context, name string) ([]domain.DriveNode, error) {
	var out []domain.DriveNode
	for _, n := range s.byName[name] {
		if n.MimeType != domain.MimeTypeFolder {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeDriveStore) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	return nil, domain.NewNotFoundError("file", id)
}

func (s *fakeDriveStore) Share(ctx context.Context, id, email string) error {
	s.shares = append(s.shares, shareGrant{NodeID: id, Email: email})
	return nil
}

func folder(id, name string) domain.DriveNode {
	return domain.DriveNode{ID: id, Name: name, MimeType: domain.MimeTypeFolder}
}

func file(id, name string) domain.DriveNode {
	return domain.DriveNode{ID: id, Name: name, MimeType: "image/jpeg"}
}

func TestDriveIndex_ResolvePath(t *testing.T) {
	store := newFakeDriveStore()
	store.add("", folder("root", "মৌজা ম্যাপ ফাইল"))
	store.add("root", folder("dhaka", "Dhaka"))
	store.add("dhaka", folder("savar", "Savar"))
	store.add("savar", file("f2", "২_mouza_৩_map.jpg"))
	store.add("savar", file("f1", "১_mouza_১_map.jpg"))

	index := NewDriveIndex(DriveIndexDependencies{Store: store, RootFolder: "মৌজা ম্যাপ ফাইল"})

	t.Run("lists folders at intermediate levels", func(t *testing.T) {
		listing, err := index.ResolvePath(context.Background(), "Dhaka")
		require.NoError(t, err)
		assert.Equal(t, []string{"Savar"}, listing.Folders)
		assert.Empty(t, listing.Files)
	})

	t.Run("lists sorted files at leaf folders", func(t *testing.T) {
		listing, err := index.ResolvePath(context.Background(), "Dhaka/Savar")
		require.NoError(t, err)
		assert.Empty(t, listing.Folders)
		require.Len(t, listing.Files, 2)
		assert.Equal(t, "১_mouza_১_map.jpg", listing.Files[0].Name)
		assert.Equal(t, "২_mouza_৩_map.jpg", listing.Files[1].Name)
	})

	t.Run("unknown segment returns not found", func(t *testing.T) {
		_, err := index.ResolvePath(context.Background(), "Dhaka/Nowhere")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("subfolders suppress sibling files", func(t *testing.T) {
		store.add("dhaka", file("stray", "readme.txt"))

		listing, err := index.ResolvePath(context.Background(), "Dhaka")
		require.NoError(t, err)
		assert.Equal(t, []string{"Savar"}, listing.Folders)
		assert.Empty(t, listing.Files)
	})
}

func TestDriveIndex_ShortcutExpansion(t *testing.T) {
	store := newFakeDriveStore()
	store.add("", folder("root", "মৌজা ম্যাপ ফাইল"))
	store.add("root", folder("area", "Area"))
	store.add("area", domain.DriveNode{
		ID:             "sc1",
		Name:           "Linked",
		MimeType:       domain.MimeTypeShortcut,
		TargetID:       "target",
		TargetMimeType: domain.MimeTypeFolder,
	})
	store.add("", folder("target", "Target"))
	store.add("target", file("tf1", "১_alpha_১_x.jpg"))
	store.add("target", folder("nested", "Nested"))

	index := NewDriveIndex(DriveIndexDependencies{Store: store, RootFolder: "মৌজা ম্যাপ ফাইল"})

	listing, err := index.ResolvePath(context.Background(), "Area")
	require.NoError(t, err)

	// Shortcut targets contribute files only, one level deep.
	require.Len(t, listing.Files, 1)
	assert.Equal(t, "১_alpha_১_x.jpg", listing.Files[0].Name)
	assert.Empty(t, listing.Folders)
}

func TestDriveIndex_ResolveFullPath(t *testing.T) {
	store := newFakeDriveStore()
	store.add("", folder("root", "মৌজা ম্যাপ ফাইল"))
	store.add("root", folder("dhaka", "Dhaka"))
	store.add("dhaka", file("f1", "map.jpg"))

	index := NewDriveIndex(DriveIndexDependencies{Store: store, RootFolder: "মৌজা ম্যাপ ফাইল"})

	path, err := index.ResolveFullPath(context.Background(), store.nodes["f1"])
	require.NoError(t, err)
	assert.Equal(t, "মৌজা ম্যাপ ফাইল/Dhaka/map.jpg", path)
}

func TestDriveIndex_ResolveFullPathCycle(t *testing.T) {
	store := newFakeDriveStore()
	a := folder("a", "A")
	b := folder("b", "B")
	a.Parents = []string{"b"}
	b.Parents = []string{"a"}
	store.nodes["a"] = a
	store.nodes["b"] = b

	index := NewDriveIndex(DriveIndexDependencies{Store: store, RootFolder: "root"})

	path, err := index.ResolveFullPath(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "B/A", path)
}

func TestSortKeys(t *testing.T) {
	tests := []struct {
		name      string
		fileName  string
		primary   float64
		secondary float64
	}{
		{"bengali digits", "১২_mouza_৩_map.jpg", 12, 3},
		{"ascii digits", "7_x_9_y", 7, 9},
		{"unparsable primary", "abc_x_4_y", math.Inf(1), 4},
		{"missing third token", "5_only", 5, math.Inf(1)},
		{"no underscores", "plain", math.Inf(1), math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, s := sortKeys(tt.fileName)
			assert.Equal(t, tt.primary, p)
			assert.Equal(t, tt.secondary, s)
		})
	}
}
