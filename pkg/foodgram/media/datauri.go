package media

import (
	"bytes"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/mikepea/foodgram/pkg/foodgram/apierr"
)

// Image is a decoded upload.
type Image struct {
	Data        []byte
	ContentType string
	Ext         string
}

// Reader returns the image bytes as a reader.
func (i *Image) Reader() *bytes.Reader { return bytes.NewReader(i.Data) }

var imageTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// DecodeDataURI parses "data:image/<type>;base64,<payload>". The declared
// type must match the sniffed content and the payload may not exceed maxBytes.
func DecodeDataURI(s string, maxBytes int64) (*Image, error) {
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasPrefix(header, "data:") || !strings.HasSuffix(header, ";base64") {
		return nil, apierr.Validation("image", "must be a base64 data URI")
	}

	declared := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64"))
	ext, ok := imageTypes[declared]
	if !ok {
		return nil, apierr.Validation("image", "unsupported image type "+declared)
	}

	if int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return nil, apierr.Validation("image", "image is too large")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, apierr.Validation("image", "invalid base64 payload")
	}
	if len(data) == 0 {
		return nil, apierr.Validation("image", "image is empty")
	}
	if int64(len(data)) > maxBytes {
		return nil, apierr.Validation("image", "image is too large")
	}

	sniffed := http.DetectContentType(data)
	if imageTypes[sniffed] != ext {
		return nil, apierr.Validation("image", "image content does not match "+declared)
	}

	return &Image{Data: data, ContentType: sniffed, Ext: ext}, nil
}
