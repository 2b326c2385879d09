package models

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

// ImageFile is an uploaded image held in memory
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file size in bytes
func (f ImageFile) Size() int64 {
	return int64(len(f.Data))
}

// DetectImageType sniffs data and reports its content type and whether it is an image
func DetectImageType(data []byte) (string, bool) {
	contentType := http.DetectContentType(data)
	return contentType, strings.HasPrefix(contentType, "image/")
}

// Dimensions reads the pixel size from the image header without decoding
// the pixels. Formats without a registered decoder return an error.
func (f ImageFile) Dimensions() (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
