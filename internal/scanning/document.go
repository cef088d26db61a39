package scanning

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"log/slog"
	"strings"
)

// documentJPEGQuality matches the compression applied to photos before they are stored
const documentJPEGQuality = 80

// PrepareDocument shrinks a captured document before it is stored. Raster
// images (including HEIC) are re-encoded as JPEG; PDFs are kept as-is. If
// re-encoding fails the original bytes are returned unchanged.
func PrepareDocument(data []byte, contentType string) ([]byte, string) {
	mimeType := normalizeMimeType(contentType)
	if mimeType == "application/pdf" {
		return data, mimeType
	}

	img, err := decodeImage(data, mimeType)
	if err != nil {
		slog.Warn("Keeping original document", "content_type", mimeType, "error", err)
		return data, mimeType
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: documentJPEGQuality}); err != nil {
		slog.Warn("Keeping original document", "content_type", mimeType, "error", err)
		return data, mimeType
	}

	return buf.Bytes(), "image/jpeg"
}

// DataURL encodes a document as a base64 data URL
func DataURL(data []byte, contentType string) string {
	return fmt.Sprintf("data:%s;base64,%s", normalizeMimeType(contentType), base64.StdEncoding.EncodeToString(data))
}

// ParseDataURL decodes a base64 data URL into its bytes and MIME type
func ParseDataURL(url string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URL")
	}
	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data URL: %w", err)
	}
	return data, normalizeMimeType(mimeType), nil
}
