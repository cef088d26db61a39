package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/zombor/receiptify/internal/analytics"
	"github.com/zombor/receiptify/internal/export"
	"github.com/zombor/receiptify/internal/receipt"
	"github.com/zombor/receiptify/internal/scanning"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// flags renders the reimbursed and favorite markers of r
func flags(r *receipt.Receipt) string {
	var out []string
	if r.IsReimbursed {
		out = append(out, "reimbursed")
	}
	if r.IsFavorite {
		out = append(out, "favorite")
	}
	return strings.Join(out, ",")
}

func printReceipts(w io.Writer, receipts []*receipt.Receipt) {
	table := newTable(w, "ID", "Date", "Merchant", "Category", "Total", "Flags")
	for _, r := range receipts {
		table.Append([]string{
			r.ID,
			r.Date,
			r.Merchant,
			string(r.Category),
			export.FormatMoney(r.Currency, r.Total),
			flags(r),
		})
	}
	table.Render()
}

func printMonths(w io.Writer, groups []analytics.MonthGroup) {
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", g.Key, len(g.Receipts))
		printReceipts(w, g.Receipts)
	}
}

// printReceipt writes the full detail of r followed by any amounts that do
// not add up
func printReceipt(w io.Writer, r *receipt.Receipt) {
	money := func(v float64) string { return export.FormatMoney(r.Currency, v) }

	fmt.Fprintf(w, "%s  %s\n", r.Initial(), r.Merchant)
	fmt.Fprintf(w, "ID:        %s\n", r.ID)
	fmt.Fprintf(w, "Date:      %s\n", r.Date)
	fmt.Fprintf(w, "Category:  %s\n", r.Category)
	if r.PaymentMethod != "" {
		fmt.Fprintf(w, "Payment:   %s\n", r.PaymentMethod)
	}
	fmt.Fprintf(w, "Added:     %s\n", humanize.Time(time.UnixMilli(r.CreatedAt)))
	if f := flags(r); f != "" {
		fmt.Fprintf(w, "Flags:     %s\n", f)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Subtotal:  %s\n", money(r.DisplaySubtotal()))
	for _, t := range r.TaxLines() {
		name := t.Name
		if t.Rate != nil {
			name = fmt.Sprintf("%s (%g%%)", name, *t.Rate)
		}
		fmt.Fprintf(w, "  %s: +%s\n", name, money(t.Amount))
	}
	if r.ServiceCharge != nil {
		fmt.Fprintf(w, "  Service Charge: +%s\n", money(*r.ServiceCharge))
	}
	if r.Discount != nil {
		fmt.Fprintf(w, "  Discount: -%s\n", money(*r.Discount))
	}
	fmt.Fprintf(w, "Total:     %s\n", money(r.Total))

	if len(r.Items) > 0 {
		fmt.Fprintln(w)
		table := newTable(w, "Item", "Qty", "Price")
		for _, it := range r.Items {
			table.Append([]string{it.Name, fmt.Sprintf("%g", it.Qty()), money(it.Price)})
		}
		table.Render()
	}

	if r.Notes != "" {
		fmt.Fprintf(w, "\nNotes: %s\n", r.Notes)
	}
	if r.Image != "" {
		if data, mimeType, err := scanning.ParseDataURL(r.Image); err == nil {
			fmt.Fprintf(w, "Document:  %s, %s\n", mimeType, humanize.Bytes(uint64(len(data))))
		}
	}

	for _, d := range receipt.Reconcile(r) {
		fmt.Fprintf(w, "warning: %s\n", d)
	}
}

func printStats(w io.Writer, stats analytics.Stats, insights []string, symbol string) {
	money := func(v float64) string { return export.FormatMoney(symbol, v) }

	fmt.Fprintf(w, "Total spend:  %s (%d receipts)\n", money(stats.TotalSpend), stats.Count)
	fmt.Fprintf(w, "Reimbursed:   %s\n", money(stats.ReimbursedSpend))
	fmt.Fprintf(w, "Pending:      %s\n", money(stats.PendingSpend))
	fmt.Fprintln(w)

	table := newTable(w, "Category", "Amount", "Share")
	for _, c := range stats.ByCategory {
		table.Append([]string{string(c.Category), money(c.Amount), fmt.Sprintf("%.1f%%", c.Percentage)})
	}
	table.Render()

	fmt.Fprintln(w)
	for _, line := range insights {
		fmt.Fprintln(w, line)
	}
}

func printSettings(w io.Writer, s receipt.Settings) {
	fmt.Fprintf(w, "Currency:  %s (%s)\n", s.CurrencyCode, s.CurrencySymbol)
	fmt.Fprintf(w, "Theme:     %s\n", s.Theme)
}
