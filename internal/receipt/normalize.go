package receipt

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// UnknownMerchant is used when neither the fields nor the filename name a merchant
	UnknownMerchant = "Unknown Merchant"

	dateLayout = "2006-01-02"
)

// PartialFields is a raw, partially populated field set coming from
// extraction or the manual-entry form. Empty strings and nil pointers mean
// the field is absent.
type PartialFields struct {
	Merchant      string        `json:"merchant,omitempty"`
	Date          string        `json:"date,omitempty"`
	Total         *float64      `json:"total,omitempty"`
	Subtotal      *float64      `json:"subtotal,omitempty"`
	Tax           *float64      `json:"tax,omitempty"`
	TaxRate       *float64      `json:"taxRate,omitempty"`
	Taxes         []TaxDetail   `json:"taxes,omitempty"`
	ServiceCharge *float64      `json:"serviceCharge,omitempty"`
	Discount      *float64      `json:"discount,omitempty"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	Category      string        `json:"category,omitempty"`
	Items         []ReceiptItem `json:"items,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	Image         string        `json:"image,omitempty"`
	// Currency is whatever the document printed. It is informational only:
	// stored records always take the currency from Settings.
	Currency string `json:"currency,omitempty"`
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current local time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Normalizer turns partial field sets into complete receipts
type Normalizer struct {
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewNormalizer creates a Normalizer with UUID ids and the wall clock
func NewNormalizer() *Normalizer {
	return NewNormalizerWithDeps(&defaultIDGenerator{}, &defaultTimeSource{})
}

// NewNormalizerWithDeps creates a Normalizer with custom dependencies for testing
func NewNormalizerWithDeps(idGen IDGenerator, timeSrc TimeSource) *Normalizer {
	return &Normalizer{
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Today returns the current calendar date in local time
func (n *Normalizer) Today() string {
	return n.timeSource.Now().Format(dateLayout)
}

// Normalize builds a complete receipt from fields. filename is the source
// document name, if any, and is only used to guess a merchant. It never fails:
// every input is coerced to something representable.
func (n *Normalizer) Normalize(fields PartialFields, filename string, settings Settings) *Receipt {
	now := n.timeSource.Now()

	r := &Receipt{
		ID:            n.idGenerator.Generate(),
		Merchant:      merchantFor(fields.Merchant, filename),
		Date:          dateFor(fields.Date, now),
		Total:         nonNegative(fields.Total),
		Subtotal:      finite(fields.Subtotal),
		TaxRate:       finite(fields.TaxRate),
		Taxes:         cleanTaxes(fields.Taxes),
		ServiceCharge: finite(fields.ServiceCharge),
		Discount:      magnitude(fields.Discount),
		PaymentMethod: strings.TrimSpace(fields.PaymentMethod),
		Items:         cleanItems(fields.Items),
		Currency:      settings.CurrencySymbol,
		Category:      ParseCategory(fields.Category),
		Image:         fields.Image,
		Notes:         strings.TrimSpace(fields.Notes),
		IsReimbursed:  false,
		IsFavorite:    false,
		CreatedAt:     now.UnixMilli(),
	}
	r.Tax = taxFor(r.Taxes, fields.Tax)

	return r
}

// MerchantFromFilename drops the directory and everything from the first dot
// of the base name on, so "scan.2024.pdf" gives "scan". It returns "" when
// nothing is left.
func MerchantFromFilename(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	stem, _, _ := strings.Cut(base, ".")
	return strings.TrimSpace(stem)
}

func merchantFor(given, filename string) string {
	if m := strings.TrimSpace(given); m != "" {
		return m
	}
	if m := MerchantFromFilename(filename); m != "" {
		return m
	}
	return UnknownMerchant
}

func dateFor(given string, now time.Time) string {
	if d := strings.TrimSpace(given); d != "" {
		return d
	}
	return now.Format(dateLayout)
}

// taxFor prefers the itemized breakdown; any scalar passed alongside it is ignored
func taxFor(taxes []TaxDetail, scalar *float64) float64 {
	if len(taxes) > 0 {
		var sum float64
		for _, t := range taxes {
			sum += t.Amount
		}
		return sum
	}
	if v := finite(scalar); v != nil {
		return *v
	}
	return 0
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite(v *float64) *float64 {
	if v == nil || !isFinite(*v) {
		return nil
	}
	out := *v
	return &out
}

func nonNegative(v *float64) float64 {
	if v == nil || !isFinite(*v) || *v < 0 {
		return 0
	}
	return *v
}

func magnitude(v *float64) *float64 {
	f := finite(v)
	if f == nil {
		return nil
	}
	*f = math.Abs(*f)
	return f
}

func cleanTaxes(in []TaxDetail) []TaxDetail {
	if in == nil {
		return nil
	}
	out := make([]TaxDetail, len(in))
	for i, t := range in {
		out[i] = TaxDetail{
			Name:   strings.TrimSpace(t.Name),
			Amount: zeroIfNotFinite(t.Amount),
			Rate:   finite(t.Rate),
		}
	}
	return out
}

func cleanItems(in []ReceiptItem) []ReceiptItem {
	if in == nil {
		return nil
	}
	out := make([]ReceiptItem, len(in))
	for i, it := range in {
		price := it.Price
		out[i] = ReceiptItem{
			Name:     strings.TrimSpace(it.Name),
			Price:    nonNegative(&price),
			Quantity: nonNegativePtr(it.Quantity),
		}
	}
	return out
}

func nonNegativePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := nonNegative(v)
	return &out
}

func zeroIfNotFinite(v float64) float64 {
	if !isFinite(v) {
		return 0
	}
	return v
}

const reconcileTolerance = 0.01

// Discrepancy describes a derived amount that disagrees with its source
type Discrepancy struct {
	Field    string
	Expected float64
	Actual   float64
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: expected %.2f, got %.2f", d.Field, d.Expected, d.Actual)
}

// Reconcile reports amounts that do not add up. It is a reporting pass only;
// the receipt is never modified and nothing is rejected.
func Reconcile(r *Receipt) []Discrepancy {
	var out []Discrepancy

	if len(r.Taxes) > 0 {
		var sum float64
		for _, t := range r.Taxes {
			sum += t.Amount
		}
		if math.Abs(sum-r.Tax) > reconcileTolerance {
			out = append(out, Discrepancy{Field: "tax", Expected: sum, Actual: r.Tax})
		}
	}

	if r.Subtotal != nil && len(r.Items) > 0 {
		var sum float64
		for _, it := range r.Items {
			sum += it.Price
		}
		if math.Abs(sum-*r.Subtotal) > reconcileTolerance {
			out = append(out, Discrepancy{Field: "subtotal", Expected: sum, Actual: *r.Subtotal})
		}
	}

	if r.Subtotal != nil {
		expected := *r.Subtotal + r.Tax
		if r.ServiceCharge != nil {
			expected += *r.ServiceCharge
		}
		if r.Discount != nil {
			expected -= *r.Discount
		}
		if math.Abs(expected-r.Total) > reconcileTolerance {
			out = append(out, Discrepancy{Field: "total", Expected: expected, Actual: r.Total})
		}
	}

	return out
}
