package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/webp"
)

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `You are analyzing a receipt or invoice document. Meticulously extract all financial data from it:

- merchant: the store or business name, usually the largest text in the header
- date: the transaction date in ISO 8601 format (YYYY-MM-DD)
- total: the final grand total amount paid
- subtotal: the amount before any taxes or extra charges
- tax: the aggregate tax amount
- taxRate: the aggregate tax percentage
- taxes: an array of {name, amount, rate} for every specific tax printed (e.g. CGST, SGST, GST, VAT, Service Tax)
- serviceCharge: any tips or service fees
- discount: any discount or negative adjustment
- paymentMethod: e.g. UPI, Cash, Card
- category: one of Food, Travel, Shopping, Utilities, Health, Entertainment, Others
- currency: the ISO currency code printed on the receipt, if any
- items: an array of {name, price, quantity}

Return ONLY valid JSON with these keys, for example:
{
  "merchant": "Cafe Mocha",
  "date": "2024-03-10",
  "total": 105.00,
  "subtotal": 100.00,
  "tax": 5.00,
  "taxes": [{"name": "CGST", "amount": 2.50, "rate": 2.5}, {"name": "SGST", "amount": 2.50, "rate": 2.5}],
  "category": "Food",
  "items": [{"name": "Latte", "price": 100.00, "quantity": 1}]
}

Important:
- Amounts must be numbers (not strings) without currency symbols
- If you cannot find a field, omit it or use null
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// heicBrands are the ftyp brands written by phones for HEIC/HEIF photos
var heicBrands = map[string]bool{"heic": true, "heix": true, "heif": true, "mif1": true, "msf1": true}

// rasterize turns a captured document into PNG bytes for a vision model.
// PDFs are rendered from their first page; PNGs are passed through.
func rasterize(data []byte, contentType string) ([]byte, error) {
	mimeType := normalizeMimeType(contentType)

	var img image.Image
	var err error
	switch {
	case mimeType == "application/pdf":
		img, err = renderFirstPage(data)
	case mimeType == "image/png" && !isHEIC(data, mimeType):
		return data, nil
	default:
		img, err = decodeImage(data, mimeType)
	}
	if err != nil {
		return nil, fmt.Errorf("rasterizing %s: %w", mimeType, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func renderFirstPage(pdf []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// decodeImage decodes JPEG, PNG, GIF, WebP, HEIC and HEIF images
func decodeImage(data []byte, mimeType string) (image.Image, error) {
	if isHEIC(data, mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("unsupported image format %q (want JPEG, PNG, GIF, WebP, HEIC or PDF): %w", mimeType, err)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEIC sniffs the ISO-BMFF ftyp box and falls back to the declared type
func isHEIC(data []byte, mimeType string) bool {
	if len(data) >= 12 && string(data[4:8]) == "ftyp" && heicBrands[string(data[8:12])] {
		return true
	}
	return mimeType == "image/heic" || mimeType == "image/heif"
}

// normalizeMimeType lowercases a content type and strips parameters, defaulting to JPEG
func normalizeMimeType(contentType string) string {
	mimeType, _, _ := strings.Cut(contentType, ";")
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		return "image/jpeg"
	}
	return mimeType
}
