package receipt

import "unicode"

// ReceiptItem is a single line item printed on a receipt
type ReceiptItem struct {
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// Qty returns the item quantity, defaulting to 1 when none was captured
func (i ReceiptItem) Qty() float64 {
	if i.Quantity == nil {
		return 1
	}
	return *i.Quantity
}

// TaxDetail is one itemized tax line (e.g. CGST, SGST, VAT)
type TaxDetail struct {
	Name   string   `json:"name"`
	Amount float64  `json:"amount"`
	Rate   *float64 `json:"rate,omitempty"`
}

// Receipt is a captured receipt. Optional amounts are nil when absent;
// Taxes and Items distinguish nil (never captured) from empty.
type Receipt struct {
	ID            string        `json:"id"`
	Merchant      string        `json:"merchant"`
	Date          string        `json:"date"` // YYYY-MM-DD, or as printed when unreadable
	Total         float64       `json:"total"`
	Subtotal      *float64      `json:"subtotal,omitempty"`
	Tax           float64       `json:"tax"`
	TaxRate       *float64      `json:"taxRate,omitempty"`
	Taxes         []TaxDetail   `json:"taxes"`
	ServiceCharge *float64      `json:"serviceCharge,omitempty"`
	Discount      *float64      `json:"discount,omitempty"` // positive magnitude of the reduction
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	Items         []ReceiptItem `json:"items"`
	Currency      string        `json:"currency"` // symbol captured at creation
	Category      Category      `json:"category"`
	Image         string        `json:"image,omitempty"` // data URL of the photo or PDF
	Notes         string        `json:"notes,omitempty"`
	IsReimbursed  bool          `json:"isReimbursed"`
	IsFavorite    bool          `json:"isFavorite"`
	CreatedAt     int64         `json:"createdAt"` // Unix milliseconds
}

// DisplaySubtotal returns the stored subtotal, or total minus tax when none was captured
func (r *Receipt) DisplaySubtotal() float64 {
	if r.Subtotal != nil {
		return *r.Subtotal
	}
	return r.Total - r.Tax
}

// TaxLines returns the itemized taxes when present, otherwise a single
// aggregate line built from Tax
func (r *Receipt) TaxLines() []TaxDetail {
	if len(r.Taxes) > 0 {
		return r.Taxes
	}
	return []TaxDetail{{Name: "Tax", Amount: r.Tax}}
}

// Initial returns the upper-cased first letter of the merchant, used as an avatar
func (r *Receipt) Initial() string {
	for _, c := range r.Merchant {
		return string(unicode.ToUpper(c))
	}
	return "?"
}

// Fields returns the editable fields of r, so that a partial change can be
// applied on top and passed back through Edit
func (r *Receipt) Fields() PartialFields {
	total := r.Total
	fields := PartialFields{
		Merchant:      r.Merchant,
		Date:          r.Date,
		Total:         &total,
		Subtotal:      r.Subtotal,
		TaxRate:       r.TaxRate,
		ServiceCharge: r.ServiceCharge,
		Discount:      r.Discount,
		PaymentMethod: r.PaymentMethod,
		Category:      string(r.Category),
		Notes:         r.Notes,
		Image:         r.Image,
		Currency:      r.Currency,
	}
	if r.Taxes != nil {
		fields.Taxes = append([]TaxDetail{}, r.Taxes...)
	}
	if len(r.Taxes) == 0 {
		tax := r.Tax
		fields.Tax = &tax
	}
	if r.Items != nil {
		fields.Items = append([]ReceiptItem{}, r.Items...)
	}
	return fields
}
