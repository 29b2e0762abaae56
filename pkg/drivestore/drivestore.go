// Package drivestore adapts the Google Drive API to the domain's remote
// file-store contract.
package drivestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const (
	searchResultLimit = 10
	listPageSize      = 1000

	nodeFields = "files(id, name, mimeType, parents, modifiedTime, shortcutDetails)"
)

// Store implements domain.DriveStore on top of the Drive v3 API using
// service-account credentials.
type Store struct {
	service *drive.Service
}

type StoreDependencies struct {
	CredentialsFile string
	CredentialsJSON []byte
}

func NewStore(ctx context.Context, deps StoreDependencies) (*Store, error) {
	credentials := deps.CredentialsJSON
	if len(credentials) == 0 {
		if deps.CredentialsFile == "" {
			return nil, domain.ErrConfigurationMissing
		}

		data, err := os.ReadFile(deps.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials file: %w", err)
		}
		credentials = data
	}

	jwtConfig, err := google.JWTConfigFromJSON(credentials, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}

	client := jwtConfig.Client(ctx)

	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	return &Store{service: service}, nil
}

// FindFolders returns folders with the exact name, optionally restricted to
// a parent folder.
func (s *Store) FindFolders(ctx context.Context, name, parentID string) ([]domain.DriveNode, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(name), domain.MimeTypeFolder)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", escapeQuery(parentID))
	}

	list, err := s.service.Files.List().
		Q(query).
		Fields(googleapi.Field(fmt.Sprintf("nextPageToken, %s", nodeFields))).
		PageSize(100).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("listing folders", err)
	}

	return toNodes(list.Files), nil
}

// ListChildren enumerates a folder's direct children.
func (s *Store) ListChildren(ctx context.Context, folderID string) ([]domain.DriveNode, error) {
	var nodes []domain.DriveNode

	pageToken := ""
	for {
		call := s.service.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))).
			Fields(googleapi.Field(fmt.Sprintf("nextPageToken, %s", nodeFields))).
			PageSize(listPageSize).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		list, err := call.Do()
		if err != nil {
			return nil, mapError("listing children", err)
		}

		nodes = append(nodes, toNodes(list.Files)...)

		if list.NextPageToken == "" {
			return nodes, nil
		}
		pageToken = list.NextPageToken
	}
}

// GetNode fetches one node's metadata.
func (s *Store) GetNode(ctx context.Context, id string) (domain.DriveNode, error) {
	file, err := s.service.Files.Get(id).
		Fields("id, name, mimeType, parents, modifiedTime, shortcutDetails").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return domain.DriveNode{}, mapError("getting node", err)
	}

	return toNode(file), nil
}

// SearchFiles finds PDF and JPEG files whose name contains the given string,
// most recently modified first, capped at ten results.
func (s *Store) SearchFiles(ctx context.Context, name string) ([]domain.DriveNode, error) {
	query := fmt.Sprintf("name contains '%s' and (mimeType = '%s' or mimeType = '%s') and trashed = false",
		escapeQuery(name), domain.MimeTypePDF, domain.MimeTypeJPEG)

	list, err := s.service.Files.List().
		Q(query).
		Fields(googleapi.Field(fmt.Sprintf("nextPageToken, %s", nodeFields))).
		PageSize(searchResultLimit).
		OrderBy("modifiedTime desc").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("searching files", err)
	}

	return toNodes(list.Files), nil
}

// Download streams a file's content. The caller owns the reader.
func (s *Store) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	resp, err := s.service.Files.Get(id).
		SupportsAllDrives(true).
		Context(ctx).
		Download()
	if err != nil {
		return nil, mapError("downloading file", err)
	}

	return resp.Body, nil
}

// Share grants reader permission on a file or folder to an email address.
func (s *Store) Share(ctx context.Context, id, email string) error {
	_, err := s.service.Permissions.Create(id, &drive.Permission{
		Type:         "user",
		Role:         "reader",
		EmailAddress: email,
	}).
		SendNotificationEmail(false).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return mapError("sharing file", err)
	}

	return nil
}

func toNodes(files []*drive.File) []domain.DriveNode {
	nodes := make([]domain.DriveNode, 0, len(files))
	for _, f := range files {
		nodes = append(nodes, toNode(f))
	}
	return nodes
}

func toNode(f *drive.File) domain.DriveNode {
	node := domain.DriveNode{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Parents:  f.Parents,
	}

	if f.ModifiedTime != "" {
		if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			node.ModifiedTime = t
		}
	}

	if f.ShortcutDetails != nil {
		node.TargetID = f.ShortcutDetails.TargetId
		node.TargetMimeType = f.ShortcutDetails.TargetMimeType
	}

	return node
}

// escapeQuery escapes single quotes and backslashes for Drive query strings.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 404 {
		return domain.NewNotFoundError("file", apiErr.Message)
	}

	return domain.NewUpstreamError("drive", fmt.Errorf("%s: %w", op, err))
}
