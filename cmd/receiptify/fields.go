package main

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/receiptify/internal/receipt"
	"github.com/zombor/receiptify/internal/scanning"
)

// clearValue removes an optional field in edit
const clearValue = "-"

// fieldFlags are the receipt fields accepted by add and edit. An empty flag
// leaves the field unchanged.
type fieldFlags struct {
	merchant      *string
	date          *string
	total         *string
	subtotal      *string
	tax           *string
	taxRate       *string
	taxes         *string
	serviceCharge *string
	discount      *string
	payment       *string
	category      *string
	items         *string
	notes         *string
	document      *string
}

func newFieldFlags(fs *ff.FlagSet) *fieldFlags {
	return &fieldFlags{
		merchant:      fs.StringLong("merchant", "", "merchant name"),
		date:          fs.StringLong("date", "", "transaction date (YYYY-MM-DD)"),
		total:         fs.StringLong("total", "", "total amount"),
		subtotal:      fs.StringLong("subtotal", "", "subtotal before tax ('-' clears)"),
		tax:           fs.StringLong("tax", "", "aggregate tax amount ('-' clears)"),
		taxRate:       fs.StringLong("tax-rate", "", "tax rate in percent ('-' clears)"),
		taxes:         fs.StringLong("taxes", "", "itemized taxes, e.g. 'CGST=2.5@2.5,SGST=2.5' ('-' clears)"),
		serviceCharge: fs.StringLong("service-charge", "", "service charge ('-' clears)"),
		discount:      fs.StringLong("discount", "", "discount amount ('-' clears)"),
		payment:       fs.StringLong("payment", "", "payment method"),
		category:      fs.StringLong("category", "", "category: "+strings.Join(receipt.CategoryNames(), ", ")),
		items:         fs.StringLong("items", "", "line items, e.g. 'Coffee=3.50x2,Bagel=2' ('-' clears)"),
		notes:         fs.StringLong("notes", "", "free-form notes"),
		document:      fs.StringLong("document", "", "photo or PDF of the receipt to attach"),
	}
}

// apply overlays every flag that was given onto fields
func (f *fieldFlags) apply(fields *receipt.PartialFields) error {
	setString(&fields.Merchant, *f.merchant)
	setString(&fields.Date, *f.date)
	setString(&fields.PaymentMethod, *f.payment)
	setString(&fields.Category, *f.category)
	setString(&fields.Notes, *f.notes)

	amounts := []struct {
		name  string
		value string
		dst   **float64
	}{
		{"total", *f.total, &fields.Total},
		{"subtotal", *f.subtotal, &fields.Subtotal},
		{"tax", *f.tax, &fields.Tax},
		{"tax-rate", *f.taxRate, &fields.TaxRate},
		{"service-charge", *f.serviceCharge, &fields.ServiceCharge},
		{"discount", *f.discount, &fields.Discount},
	}
	for _, a := range amounts {
		if a.value == "" {
			continue
		}
		v, err := parseOptionalAmount(a.value)
		if err != nil {
			return fmt.Errorf("parsing --%s: %w", a.name, err)
		}
		*a.dst = v
	}

	if *f.taxes != "" {
		taxes, err := parseTaxes(*f.taxes)
		if err != nil {
			return fmt.Errorf("parsing --taxes: %w", err)
		}
		fields.Taxes = taxes
	}
	if *f.items != "" {
		items, err := parseItems(*f.items)
		if err != nil {
			return fmt.Errorf("parsing --items: %w", err)
		}
		fields.Items = items
	}

	if *f.document != "" {
		data, err := os.ReadFile(*f.document)
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		prepared, mimeType := scanning.PrepareDocument(data, detectContentType(*f.document, data))
		fields.Image = scanning.DataURL(prepared, mimeType)
	}

	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// parseOptionalAmount parses a money amount; clearValue yields nil
func parseOptionalAmount(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == clearValue {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return &v, nil
}

// parseTaxes parses "NAME=AMOUNT[@RATE],..."
func parseTaxes(s string) ([]receipt.TaxDetail, error) {
	if strings.TrimSpace(s) == clearValue {
		return []receipt.TaxDetail{}, nil
	}

	var taxes []receipt.TaxDetail
	for _, entry := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid tax %q, want NAME=AMOUNT[@RATE]", entry)
		}

		amountStr, rateStr, hasRate := strings.Cut(value, "@")
		amount, err := strconv.ParseFloat(strings.TrimSpace(amountStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tax amount %q", amountStr)
		}

		tax := receipt.TaxDetail{Name: strings.TrimSpace(name), Amount: amount}
		if hasRate {
			rate, err := strconv.ParseFloat(strings.TrimSpace(rateStr), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid tax rate %q", rateStr)
			}
			tax.Rate = &rate
		}
		taxes = append(taxes, tax)
	}
	return taxes, nil
}

// parseItems parses "NAME=PRICE[xQTY],..."
func parseItems(s string) ([]receipt.ReceiptItem, error) {
	if strings.TrimSpace(s) == clearValue {
		return []receipt.ReceiptItem{}, nil
	}

	var items []receipt.ReceiptItem
	for _, entry := range strings.Split(s, ",") {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid item %q, want NAME=PRICE[xQTY]", entry)
		}

		priceStr, qtyStr, hasQty := strings.Cut(strings.ToLower(value), "x")
		price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid item price %q", priceStr)
		}

		item := receipt.ReceiptItem{Name: strings.TrimSpace(name), Price: price}
		if hasQty {
			qty, err := strconv.ParseFloat(strings.TrimSpace(qtyStr), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid item quantity %q", qtyStr)
			}
			item.Quantity = &qty
		}
		items = append(items, item)
	}
	return items, nil
}

// detectContentType guesses the MIME type of a document from its extension,
// falling back to sniffing the bytes
func detectContentType(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if t := mime.TypeByExtension(ext); t != "" && t != "application/octet-stream" {
		return t
	}
	return http.DetectContentType(data)
}
