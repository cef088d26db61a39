package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// dateLayouts are the date formats models commonly return instead of ISO.
// Day-first slash dates come before the US order, so 10/03/2024 is 10 March.
var dateLayouts = []string{
	dateLayout,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	time.RFC3339,
}

// parseReceiptJSON parses the JSON response from a model
func parseReceiptJSON(text string) (*ReceiptData, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	text = text[startIdx : endIdx+1]

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	sanitizeReceiptDoc(doc)
	if err := validateReceiptDoc(doc); err != nil {
		return nil, err
	}

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshaling sanitized json: %w", err)
	}

	var data ReceiptData
	if err := json.Unmarshal(cleaned, &data); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt data: %w", err)
	}

	data.Merchant = strings.TrimSpace(data.Merchant)
	data.PaymentMethod = strings.TrimSpace(data.PaymentMethod)
	data.Category = strings.TrimSpace(data.Category)
	data.Currency = strings.TrimSpace(data.Currency)
	// An unreadable date is kept verbatim rather than replaced by today
	data.Date = normalizeDate(data.Date)

	return &data, nil
}

// normalizeDate converts a date to YYYY-MM-DD. Dates in no known layout are
// returned trimmed but otherwise unchanged.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(dateLayout)
		}
	}
	return s
}
