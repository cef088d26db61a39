package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zombor/receiptify/internal/analytics"
	"github.com/zombor/receiptify/internal/receipt"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"amount":  FormatMoney,
	"percent": func(p float64) string { return fmt.Sprintf("%.1f%%", p) },
	"qty":     func(q *float64) string { return fmt.Sprintf("%g", *q) },
	"deref":   func(f *float64) float64 { return *f },
	"upper":   strings.ToUpper,
}).ParseFS(templatesFS, "templates/*.html"))

var printer = message.NewPrinter(language.English)

// FormatMoney renders an amount with thousands grouping and two decimals
func FormatMoney(symbol string, amount float64) string {
	return symbol + printer.Sprintf("%.2f", amount)
}

type receiptPage struct {
	Receipt *receipt.Receipt
	Image   template.URL
}

// ReceiptHTML renders a printable document for a single receipt
func ReceiptHTML(r *receipt.Receipt) ([]byte, error) {
	page := receiptPage{Receipt: r}
	// Only raster images can be shown inline; PDFs are left out
	if strings.HasPrefix(r.Image, "data:image/") {
		page.Image = template.URL(r.Image)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "receipt.html", page); err != nil {
		return nil, fmt.Errorf("rendering receipt: %w", err)
	}
	return buf.Bytes(), nil
}

type reportPage struct {
	Receipts  []*receipt.Receipt
	Stats     analytics.Stats
	Top       []analytics.CategoryStat
	Symbol    string
	Generated string
}

// ReportHTML renders a consolidated report of every receipt
func ReportHTML(records []*receipt.Receipt, stats analytics.Stats, settings receipt.Settings, now time.Time) ([]byte, error) {
	page := reportPage{
		Receipts:  records,
		Stats:     stats,
		Top:       analytics.TopCategories(stats.ByCategory, len(stats.ByCategory)),
		Symbol:    settings.CurrencySymbol,
		Generated: now.Format("January 2, 2006"),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "report.html", page); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}
