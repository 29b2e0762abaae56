package managers

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdmouza/mouzadrive/internal/domain"
)

// noisyImage produces an image that resists JPEG compression so the quality
// loop actually has work to do.
func noisyImage(w, h int) image.Image {
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func TestImageCompressor_CompressToJPEG(t *testing.T) {
	c := NewImageCompressor()

	out, err := c.CompressToJPEG(noisyImage(1600, 1200), CompressOptions{})
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	bounds := decoded.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 800)
	assert.LessOrEqual(t, bounds.Dy(), 800)
}

func TestImageCompressor_NoUpscale(t *testing.T) {
	c := NewImageCompressor()

	out, err := c.CompressToJPEG(noisyImage(120, 90), CompressOptions{})
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, 120, decoded.Bounds().Dx())
	assert.Equal(t, 90, decoded.Bounds().Dy())
}

func TestImageCompressor_TargetRespectedOrFloorReached(t *testing.T) {
	c := NewImageCompressor()

	out, err := c.CompressToJPEG(noisyImage(800, 800), CompressOptions{TargetKB: 20})
	require.NoError(t, err)
	require.NotEmpty(t, out)

	// Either the budget held or quality bottomed out; both leave decodable
	// output.
	_, err = jpeg.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestImageCompressor_PreservesAspectRatio(t *testing.T) {
	c := NewImageCompressor()

	out, err := c.CompressToJPEG(noisyImage(1600, 400), CompressOptions{})
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(out))
	require.NoError(t, err)

	assert.Equal(t, 800, decoded.Bounds().Dx())
	assert.Equal(t, 200, decoded.Bounds().Dy())
}

func TestImageCompressor_ConvertFormat(t *testing.T) {
	c := NewImageCompressor()

	var imgBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&imgBuf, noisyImage(200, 100), nil))

	t.Run("pdf to pdf passes bytes through", func(t *testing.T) {
		original := []byte("%PDF-1.4 fake content")

		out, mime, err := c.ConvertFormat(original, domain.MimeTypePDF, "pdf")
		require.NoError(t, err)
		assert.Equal(t, domain.MimeTypePDF, mime)
		assert.Equal(t, original, out)
	})

	t.Run("image to jpg re-encodes", func(t *testing.T) {
		out, mime, err := c.ConvertFormat(imgBuf.Bytes(), domain.MimeTypeJPEG, "jpg")
		require.NoError(t, err)
		assert.Equal(t, domain.MimeTypeJPEG, mime)

		_, err = jpeg.Decode(bytes.NewReader(out))
		assert.NoError(t, err)
	})

	t.Run("image to pdf wraps a single page", func(t *testing.T) {
		out, mime, err := c.ConvertFormat(imgBuf.Bytes(), domain.MimeTypeJPEG, "pdf")
		require.NoError(t, err)
		assert.Equal(t, domain.MimeTypePDF, mime)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	})

	t.Run("unsupported target", func(t *testing.T) {
		_, _, err := c.ConvertFormat(imgBuf.Bytes(), domain.MimeTypeJPEG, "tiff")
		assert.True(t, domain.IsUnsupportedFormat(err))
	})
}

func TestImageCompressor_PreviewFallsBackOnUndecodableInput(t *testing.T) {
	c := NewImageCompressor()

	t.Run("undecodable image serves original bytes", func(t *testing.T) {
		original := []byte("not an image")

		out, err := c.Preview(original, domain.MimeTypeJPEG)
		require.NoError(t, err)
		assert.Equal(t, original, out)
	})

	t.Run("unopenable pdf serves original bytes", func(t *testing.T) {
		original := []byte("%PDF-1.4 garbage")

		out, err := c.Preview(original, domain.MimeTypePDF)
		require.NoError(t, err)
		assert.Equal(t, original, out)
	})
}
