package managers

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

const (
	defaultTargetKB  = 200
	defaultMaxWidth  = 800
	defaultMaxHeight = 800

	previewDPI = 100
	convertDPI = 150

	qualityStep  = 5
	qualityFloor = 10
)

// CompressOptions bound the output of CompressToJPEG. Zero values take the
// defaults (200KB target, 800x800 bounding box).
type CompressOptions struct {
	TargetKB  int
	MaxWidth  int
	MaxHeight int
}

func (o CompressOptions) withDefaults() CompressOptions {
	if o.TargetKB <= 0 {
		o.TargetKB = defaultTargetKB
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = defaultMaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = defaultMaxHeight
	}
	return o
}

// ImageCompressor produces size-bounded JPEG previews from raster images and
// PDFs, and converts between the two formats.
type ImageCompressor struct{}

func NewImageCompressor() *ImageCompressor {
	return &ImageCompressor{}
}

// CompressToJPEG re-encodes img as a JPEG at decreasing quality until it
// fits the target size or the quality floor is reached. Very large inputs
// tighten the bounding box and budget before the quality loop starts. The
// result is best-effort: the last encoded buffer is returned even when the
// target size was unreachable.
func (c *ImageCompressor) CompressToJPEG(img image.Image, opts CompressOptions) ([]byte, error) {
	opts = opts.withDefaults()

	baseline, err := encodeJPEG(img, 85)
	if err != nil {
		return nil, fmt.Errorf("measuring baseline size: %w", err)
	}

	quality := 85
	switch baselineKB := len(baseline) / 1024; {
	case baselineKB > 4000:
		opts.MaxWidth, opts.MaxHeight = 600, 600
		opts.TargetKB = min(opts.TargetKB, 150)
		quality = 70
	case baselineKB > 2000:
		opts.MaxWidth, opts.MaxHeight = 700, 700
		opts.TargetKB = min(opts.TargetKB, 180)
		quality = 75
	}

	img = downscale(img, opts.MaxWidth, opts.MaxHeight)

	var out []byte
	for {
		out, err = encodeJPEG(img, quality)
		if err != nil {
			return nil, fmt.Errorf("encoding jpeg at quality %d: %w", quality, err)
		}

		if len(out) <= opts.TargetKB*1024 || quality <= qualityFloor {
			return out, nil
		}

		quality -= qualityStep
		if quality < qualityFloor {
			quality = qualityFloor
		}
	}
}

// Preview renders a compressed JPEG preview of a downloaded file. For PDFs
// only the first page is rendered. The whole path is best-effort: whenever
// decoding, rendering or compression fails, the original bytes are returned
// unchanged so a downloadable file always previews in some form.
func (c *ImageCompressor) Preview(data []byte, mimeType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)

	if isPDF(mimeType) {
		img, err = renderFirstPage(data, previewDPI)
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
	}
	if err != nil {
		log.Warn().Err(err).Msg("preview rendering failed, serving original bytes")

		return data, nil
	}

	return c.bestEffortCompress(img, data), nil
}

func (c *ImageCompressor) bestEffortCompress(img image.Image, original []byte) []byte {
	out, err := c.CompressToJPEG(img, CompressOptions{})
	if err != nil {
		log.Warn().Err(err).Msg("compression failed, serving original bytes")

		return original
	}

	return out
}

// ConvertFormat converts a downloaded document to the requested target
// format. PDF to PDF returns the input verbatim; image to PDF wraps the full
// image as a single-page PDF; PDF to JPEG extracts only the first page.
func (c *ImageCompressor) ConvertFormat(data []byte, sourceMime, target string) ([]byte, string, error) {
	switch strings.ToLower(target) {
	case "jpg", "jpeg":
		if !isPDF(sourceMime) {
			img, _, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return nil, "", fmt.Errorf("decoding image: %w", err)
			}

			out, err := encodeJPEG(img, 85)
			if err != nil {
				return nil, "", fmt.Errorf("encoding jpeg: %w", err)
			}

			return out, domain.MimeTypeJPEG, nil
		}

		img, err := renderFirstPage(data, convertDPI)
		if err != nil {
			return nil, "", err
		}

		out, err := encodeJPEG(img, 85)
		if err != nil {
			return nil, "", fmt.Errorf("encoding jpeg: %w", err)
		}

		return out, domain.MimeTypeJPEG, nil

	case "pdf":
		if isPDF(sourceMime) {
			return data, domain.MimeTypePDF, nil
		}

		out, err := imageToPDF(data)
		if err != nil {
			return nil, "", err
		}

		return out, domain.MimeTypePDF, nil

	default:
		return nil, "", &domain.UnsupportedFormatError{Format: target}
	}
}

func renderFirstPage(data []byte, dpi float64) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, domain.ErrEmptyDocument
	}

	img, err := doc.ImageDPI(0, dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering pdf page: %w", err)
	}

	return img, nil
}

func imageToPDF(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	jpegData, err := encodeJPEG(img, 90)
	if err != nil {
		return nil, fmt.Errorf("encoding image for pdf: %w", err)
	}

	bounds := img.Bounds()
	// Page size in points at 72 DPI so the image keeps its pixel aspect ratio.
	widthPt := float64(bounds.Dx())
	heightPt := float64(bounds.Dy())

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: widthPt, Ht: heightPt},
	})
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("page", opts, bytes.NewReader(jpegData))
	pdf.ImageOptions("page", 0, 0, widthPt, heightPt, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}

	return buf.Bytes(), nil
}

func downscale(img image.Image, maxWidth, maxHeight int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w <= maxWidth && h <= maxHeight {
		return img
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}

	dw := int(float64(w) * scale)
	dh := int(float64(h) * scale)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func isPDF(mimeType string) bool {
	return strings.EqualFold(mimeType, domain.MimeTypePDF)
}
