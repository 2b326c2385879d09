package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"

	"infrascan/internal/models"
)

const thumbnailQuality = 85

// ErrTooManyPixels is returned for images whose header declares more pixels
// than the configured bound
var ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")

// Thumbnail decodes an uploaded image (honouring EXIF orientation) and
// re-encodes it as a JPEG that fits in maxDim x maxDim. Images already inside
// the bound keep their size. maxDim == 0 disables scaling.
//
// The header is checked against maxPixels before any pixel is decoded;
// maxPixels <= 0 disables the check.
func Thumbnail(data []byte, maxDim uint, maxPixels int64) ([]byte, error) {
	if maxPixels > 0 {
		w, h, err := models.ImageFile{Data: data}.Dimensions()
		if err != nil {
			return nil, fmt.Errorf("decode image header: %w", err)
		}
		if int64(w)*int64(h) > maxPixels {
			return nil, fmt.Errorf("%w: %dx%d", ErrTooManyPixels, w, h)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if maxDim > 0 {
		img = resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
