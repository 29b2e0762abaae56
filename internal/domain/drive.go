package domain

import (
	"context"
	"io"
	"time"
)

const (
	MimeTypeFolder   = "application/vnd.google-apps.folder"
	MimeTypeShortcut = "application/vnd.google-apps.shortcut"
	MimeTypePDF      = "application/pdf"
	MimeTypeJPEG     = "image/jpeg"
)

// DriveNode is a single entry of the remote hierarchical file store. Shortcut
// nodes alias other nodes, which turns the folder tree into a DAG; walkers
// must carry a visited set.
type DriveNode struct {
	ID             string
	Name           string
	MimeType       string
	Parents        []string
	TargetID       string
	TargetMimeType string
	ModifiedTime   time.Time
}

func (n DriveNode) IsFolder() bool   { return n.MimeType == MimeTypeFolder }
func (n DriveNode) IsShortcut() bool { return n.MimeType == MimeTypeShortcut }

// FileRef is a file entry returned by path resolution.
type FileRef struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Listing is the result of resolving a logical folder path. Exactly one of
// Folders and Files is populated: a directory is either a drill-down node or
// a leaf with files, never both.
type Listing struct {
	Folders []string  `json:"folders,omitempty"`
	Files   []FileRef `json:"files,omitempty"`
}

// SearchResult is a file matched by name search, annotated with its full
// logical path.
type SearchResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	FullPath string `json:"fullPath"`
}

// DownloadedFile carries raw file content together with its metadata.
type DownloadedFile struct {
	Name     string
	MimeType string
	Content  []byte
}

// DriveStore is the remote hierarchical file store (a Drive-like API).
type DriveStore interface {
	// FindFolders returns the folders named name under parentID, or all
	// matching folders anywhere when parentID is empty.
	FindFolders(ctx context.Context, name, parentID string) ([]DriveNode, error)

	// ListChildren returns the direct children of folderID.
	ListChildren(ctx context.Context, folderID string) ([]DriveNode, error)

	// GetNode returns metadata for a single node, including shortcut details
	// and parent ids.
	GetNode(ctx context.Context, id string) (DriveNode, error)

	// SearchFiles returns PDF/JPEG files whose name contains name, newest
	// first, capped by the store.
	SearchFiles(ctx context.Context, name string) ([]DriveNode, error)

	// Download streams the content of a file node.
	Download(ctx context.Context, id string) (io.ReadCloser, error)

	// Share grants read access on a node to an email address.
	Share(ctx context.Context, id, email string) error
}

// Cache is a byte-value TTL cache. Implementations are shared process-wide;
// last-writer-wins is acceptable because entries are idempotent snapshots of
// external state.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
