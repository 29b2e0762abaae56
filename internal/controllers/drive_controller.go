package controllers

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/bdmouza/mouzadrive/internal/domain"
	"github.com/bdmouza/mouzadrive/internal/managers"
)

// DriveController serves folder browsing, file search, previews and format
// conversion over the remote file store.
type DriveController struct {
	index      *managers.DriveIndex
	search     *managers.FileSearch
	compressor *managers.ImageCompressor
	store      domain.DriveStore
	checkout   *managers.Checkout
}

type DriveControllerDependencies struct {
	Index      *managers.DriveIndex
	Search     *managers.FileSearch
	Compressor *managers.ImageCompressor
	Store      domain.DriveStore
	Checkout   *managers.Checkout
}

func NewDriveController(deps DriveControllerDependencies) *DriveController {
	return &DriveController{
		index:      deps.Index,
		search:     deps.Search,
		compressor: deps.Compressor,
		store:      deps.Store,
		checkout:   deps.Checkout,
	}
}

// Explore resolves a slash-separated logical folder path to either subfolder
// names or leaf files.
func (c *DriveController) Explore(ctx fiber.Ctx) error {
	rawPath := ctx.Params("*")

	decoded, err := url.PathUnescape(rawPath)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid path encoding")
	}

	listing, err := c.index.ResolvePath(ctx.RequestCtx(), decoded)
	if err != nil {
		return err
	}

	return ctx.JSON(listing)
}

// Search finds files by name.
func (c *DriveController) Search(ctx fiber.Ctx) error {
	name := strings.TrimSpace(ctx.Query("filename"))
	if name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query parameter 'filename' is required")
	}

	results, err := c.search.Search(ctx.RequestCtx(), name)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{
		"name":    name,
		"results": results,
	})
}

type batchSearchRequest struct {
	Names []string `json:"names"`
}

type batchSearchEntry struct {
	Name    string                `json:"name"`
	Results []domain.SearchResult `json:"results"`
	Error   string                `json:"error,omitempty"`
}

// SearchBatch searches several names concurrently.
func (c *DriveController) SearchBatch(ctx fiber.Ctx) error {
	var req batchSearchRequest

	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	results, err := c.search.SearchBatch(ctx.RequestCtx(), req.Names)
	if err != nil {
		return err
	}

	return ctx.JSON(fiber.Map{"results": toBatchEntries(results)})
}

// UserFiles searches one page of the user's purchased file names and returns
// the matches grouped per file name.
func (c *DriveController) UserFiles(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	page, err := positiveQueryInt(ctx, "page", 1)
	if err != nil {
		return err
	}
	limit, err := positiveQueryInt(ctx, "limit", 10)
	if err != nil {
		return err
	}

	names, err := c.checkout.PurchasedFileNames(ctx.RequestCtx(), email)
	if err != nil {
		return err
	}

	total := len(names)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	pageNames := names[start:end]

	entries := []batchSearchEntry{}
	if len(pageNames) > 0 {
		results, err := c.search.SearchBatch(ctx.RequestCtx(), pageNames)
		if err != nil {
			return err
		}
		entries = toBatchEntries(results)
	}

	return ctx.JSON(fiber.Map{
		"files":       entries,
		"page":        page,
		"limit":       limit,
		"total_files": total,
	})
}

// maxUserFilesAll bounds the fetch-all variant so one request cannot fan out
// over an unbounded purchase history.
const maxUserFilesAll = 50

// UserFilesAll searches all of the user's purchased file names in one go.
func (c *DriveController) UserFilesAll(ctx fiber.Ctx) error {
	email, err := requireUserEmail(ctx)
	if err != nil {
		return err
	}

	names, err := c.checkout.PurchasedFileNames(ctx.RequestCtx(), email)
	if err != nil {
		return err
	}

	truncated := false
	if len(names) > maxUserFilesAll {
		names = names[:maxUserFilesAll]
		truncated = true
	}

	entries := []batchSearchEntry{}
	if len(names) > 0 {
		results, err := c.search.SearchAll(ctx.RequestCtx(), names)
		if err != nil {
			return err
		}
		entries = toBatchEntries(results)
	}

	return ctx.JSON(fiber.Map{
		"files":     entries,
		"truncated": truncated,
	})
}

// Preview downloads a file and returns a compressed JPEG rendition of it.
func (c *DriveController) Preview(ctx fiber.Ctx) error {
	id := ctx.Query("file_id")
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query parameter 'file_id' is required")
	}

	file, err := c.fetch(ctx, id)
	if err != nil {
		return err
	}

	preview, err := c.compressor.Preview(file.Content, file.MimeType)
	if err != nil {
		return err
	}

	ctx.Set(fiber.HeaderContentType, "image/jpeg")
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	return ctx.Send(preview)
}

// Convert downloads a file and returns it converted to the requested target
// format as an attachment.
func (c *DriveController) Convert(ctx fiber.Ctx) error {
	id := ctx.Query("file_id")
	if id == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query parameter 'file_id' is required")
	}

	format := strings.ToLower(strings.TrimSpace(ctx.Query("format")))
	if format == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Query parameter 'format' is required")
	}

	file, err := c.fetch(ctx, id)
	if err != nil {
		return err
	}

	converted, mimeType, err := c.compressor.ConvertFormat(file.Content, file.MimeType, format)
	if err != nil {
		return err
	}

	filename := replaceExtension(file.Name, format)

	ctx.Set(fiber.HeaderContentType, mimeType)
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return ctx.Send(converted)
}

func (c *DriveController) fetch(ctx fiber.Ctx, id string) (*domain.DownloadedFile, error) {
	node, err := c.store.GetNode(ctx.RequestCtx(), id)
	if err != nil {
		return nil, err
	}

	// Shortcuts hold no content of their own; follow them to the target.
	if node.IsShortcut() && node.TargetID != "" {
		target, err := c.store.GetNode(ctx.RequestCtx(), node.TargetID)
		if err != nil {
			return nil, err
		}
		node = target
	}

	body, err := c.store.Download(ctx.RequestCtx(), node.ID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	content, err := io.ReadAll(body)
	if err != nil {
		log.Warn().Err(err).Str("file_id", id).Msg("Failed to read file content")
		return nil, domain.NewUpstreamError("drive", err)
	}

	return &domain.DownloadedFile{
		Name:     node.Name,
		MimeType: node.MimeType,
		Content:  content,
	}, nil
}

func toBatchEntries(results []managers.BatchResult) []batchSearchEntry {
	entries := make([]batchSearchEntry, 0, len(results))
	for _, r := range results {
		entry := batchSearchEntry{Name: r.Name, Results: r.Results}
		if entry.Results == nil {
			entry.Results = []domain.SearchResult{}
		}
		if r.Err != nil {
			entry.Error = r.Err.Error()
		}
		entries = append(entries, entry)
	}
	return entries
}

func positiveQueryInt(ctx fiber.Ctx, key string, fallback int) (int, error) {
	raw := ctx.Query(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Invalid %s parameter", key))
	}
	return value, nil
}

func replaceExtension(name, format string) string {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "." + format
}
