package managers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

// DriveIndex resolves human-readable folder paths against the Drive
// hierarchy and produces ordered listings.
type DriveIndex struct {
	store      domain.DriveStore
	rootFolder string
}

type DriveIndexDependencies struct {
	Store      domain.DriveStore
	RootFolder string
}

func NewDriveIndex(deps DriveIndexDependencies) *DriveIndex {
	return &DriveIndex{
		store:      deps.Store,
		rootFolder: deps.RootFolder,
	}
}

// ResolvePath walks the slash-separated path from the root folder and
// returns the listing of the final folder. Each segment resolves to the
// first folder of that name under the current parent.
func (d *DriveIndex) ResolvePath(ctx context.Context, path string) (domain.Listing, error) {
	segments := splitPath(path)

	folderID, err := d.resolveRoot(ctx)
	if err != nil {
		return domain.Listing{}, err
	}

	for _, segment := range segments {
		matches, err := d.store.FindFolders(ctx, segment, folderID)
		if err != nil {
			return domain.Listing{}, fmt.Errorf("resolving segment %q: %w", segment, err)
		}

		if len(matches) == 0 {
			return domain.Listing{}, domain.NewNotFoundError("folder", segment)
		}

		folderID = matches[0].ID
	}

	return d.listFolder(ctx, folderID)
}

func (d *DriveIndex) resolveRoot(ctx context.Context) (string, error) {
	matches, err := d.store.FindFolders(ctx, d.rootFolder, "")
	if err != nil {
		return "", fmt.Errorf("resolving root folder: %w", err)
	}

	if len(matches) == 0 {
		return "", domain.NewNotFoundError("folder", d.rootFolder)
	}

	return matches[0].ID, nil
}

// listFolder returns the folder's children, expanding shortcuts one level
// deep. When the folder contains any subfolder, only folders are returned.
func (d *DriveIndex) listFolder(ctx context.Context, folderID string) (domain.Listing, error) {
	children, err := d.store.ListChildren(ctx, folderID)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("listing folder: %w", err)
	}

	listing := domain.Listing{
		Folders: []string{},
		Files:   []domain.FileRef{},
	}

	for _, child := range children {
		switch {
		case child.IsFolder():
			listing.Folders = append(listing.Folders, child.Name)

		case child.IsShortcut():
			if child.TargetMimeType == domain.MimeTypeFolder {
				targets, err := d.store.ListChildren(ctx, child.TargetID)
				if err != nil {
					log.Warn().
						Err(err).
						Str("shortcut", child.Name).
						Msg("failed to expand shortcut target")

					continue
				}

				for _, target := range targets {
					if !target.IsFolder() && !target.IsShortcut() {
						listing.Files = append(listing.Files, domain.FileRef{Name: target.Name, ID: target.ID})
					}
				}
			} else if child.TargetID != "" {
				listing.Files = append(listing.Files, domain.FileRef{Name: child.Name, ID: child.TargetID})
			}

		default:
			listing.Files = append(listing.Files, domain.FileRef{Name: child.Name, ID: child.ID})
		}
	}

	if len(listing.Folders) > 0 {
		listing.Files = []domain.FileRef{}
	}

	sort.Strings(listing.Folders)
	sortFiles(listing.Files)

	return listing, nil
}

// ResolveFullPath walks the hierarchy upwards from a file to the root and
// returns the slash-separated path. A visited set guards against parent
// cycles.
func (d *DriveIndex) ResolveFullPath(ctx context.Context, node domain.DriveNode) (string, error) {
	segments := []string{node.Name}
	visited := map[string]bool{node.ID: true}

	current := node
	for len(current.Parents) > 0 {
		parentID := current.Parents[0]
		if visited[parentID] {
			break
		}
		visited[parentID] = true

		parent, err := d.store.GetNode(ctx, parentID)
		if err != nil {
			if domain.IsNotFound(err) {
				break
			}

			return "", fmt.Errorf("resolving parent folder: %w", err)
		}

		segments = append([]string{parent.Name}, segments...)
		current = parent
	}

	return strings.Join(segments, "/"), nil
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}

	return segments
}

var bengaliDigits = strings.NewReplacer(
	"০", "0",
	"১", "1",
	"২", "2",
	"৩", "3",
	"৪", "4",
	"৫", "5",
	"৬", "6",
	"৭", "7",
	"৮", "8",
	"৯", "9",
)

// sortKeys extracts the two numeric sort keys from an underscore-delimited
// file name, transliterating Bengali digits first. Names that do not parse
// sort last.
func sortKeys(name string) (float64, float64) {
	ascii := bengaliDigits.Replace(name)
	parts := strings.Split(ascii, "_")

	primary := math.Inf(1)
	secondary := math.Inf(1)

	if len(parts) > 0 {
		primary = parseToken(parts[0])
	}
	if len(parts) > 2 {
		secondary = parseToken(parts[2])
	}

	return primary, secondary
}

func parseToken(s string) float64 {
	n, err := strconv.Atoi(s)
	if err != nil {
		return math.Inf(1)
	}

	return float64(n)
}

func sortFiles(files []domain.FileRef) {
	sort.SliceStable(files, func(i, j int) bool {
		pi, si := sortKeys(files[i].Name)
		pj, sj := sortKeys(files[j].Name)

		if pi != pj {
			return pi < pj
		}

		return si < sj
	})
}
