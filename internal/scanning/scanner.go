package scanning

import "context"

// TaxLine is an itemized tax as read from the document
type TaxLine struct {
	Name   string   `json:"name"`
	Amount float64  `json:"amount"`
	Rate   *float64 `json:"rate,omitempty"`
}

// ItemLine is a purchased item as read from the document
type ItemLine struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// ReceiptData contains extracted information from a receipt. Every field is
// optional; the model reports only what it could read.
type ReceiptData struct {
	Merchant      string     `json:"merchant,omitempty"`
	Date          string     `json:"date,omitempty"` // YYYY-MM-DD, empty when unreadable
	Total         *float64   `json:"total,omitempty"`
	Subtotal      *float64   `json:"subtotal,omitempty"`
	Tax           *float64   `json:"tax,omitempty"`
	TaxRate       *float64   `json:"taxRate,omitempty"`
	Taxes         []TaxLine  `json:"taxes,omitempty"`
	ServiceCharge *float64   `json:"serviceCharge,omitempty"`
	Discount      *float64   `json:"discount,omitempty"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	Category      string     `json:"category,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Items         []ItemLine `json:"items,omitempty"`
}

// Scanner defines the interface for receipt scanning operations
type Scanner interface {
	// ScanReceipt analyzes a receipt image/PDF and extracts its fields
	ScanReceipt(ctx context.Context, data []byte, contentType string) (*ReceiptData, error)
	// Close closes the scanner and releases resources
	Close() error
}
