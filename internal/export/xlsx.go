package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/receiptify/internal/receipt"
)

const (
	receiptsSheet = "Receipts"
	itemsSheet    = "Items"
)

var receiptHeaders = []string{
	"ID",
	"Date",
	"Merchant",
	"Category",
	"Currency",
	"Subtotal",
	"Tax",
	"Tax Breakdown",
	"Service Charge",
	"Discount",
	"Total",
	"Payment Method",
	"Reimbursed",
	"Favorite",
	"Notes",
}

var itemHeaders = []string{"Receipt ID", "Merchant", "Item", "Quantity", "Price"}

// XLSX builds a workbook with one row per receipt and one row per line item
func XLSX(records []*receipt.Receipt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// The default sheet becomes the receipts sheet
	if err := f.SetSheetName("Sheet1", receiptsSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("creating items sheet: %w", err)
	}

	if err := writeRow(f, receiptsSheet, 1, toAny(receiptHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, itemsSheet, 1, toAny(itemHeaders)); err != nil {
		return nil, err
	}

	itemRow := 2
	for i, r := range records {
		row := []any{
			r.ID,
			r.Date,
			r.Merchant,
			string(r.Category),
			r.Currency,
			r.DisplaySubtotal(),
			r.Tax,
			taxBreakdown(r.Taxes),
			valueOr(r.ServiceCharge),
			valueOr(r.Discount),
			r.Total,
			r.PaymentMethod,
			r.IsReimbursed,
			r.IsFavorite,
			r.Notes,
		}
		if err := writeRow(f, receiptsSheet, i+2, row); err != nil {
			return nil, err
		}

		for _, it := range r.Items {
			if err := writeRow(f, itemsSheet, itemRow, []any{r.ID, r.Merchant, it.Name, it.Qty(), it.Price}); err != nil {
				return nil, err
			}
			itemRow++
		}
	}

	_ = f.SetColWidth(receiptsSheet, "A", "A", 38) // id
	_ = f.SetColWidth(receiptsSheet, "B", "B", 12) // date
	_ = f.SetColWidth(receiptsSheet, "C", "C", 28) // merchant
	_ = f.SetColWidth(receiptsSheet, "H", "H", 28) // tax breakdown
	_ = f.SetColWidth(receiptsSheet, "O", "O", 48) // notes
	_ = f.SetColWidth(itemsSheet, "A", "A", 38)
	_ = f.SetColWidth(itemsSheet, "B", "C", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func taxBreakdown(taxes []receipt.TaxDetail) string {
	parts := make([]string, len(taxes))
	for i, t := range taxes {
		parts[i] = fmt.Sprintf("%s %.2f", t.Name, t.Amount)
	}
	return strings.Join(parts, ", ")
}

func valueOr(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
