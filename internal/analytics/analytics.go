// Package analytics derives summary views from a snapshot of receipts. Every
// function is pure: it reads its input and never mutates it.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/zombor/receiptify/internal/receipt"
)

// UnknownMonth groups receipts whose date cannot be parsed
const UnknownMonth = "Unknown Date"

// CategoryStat is the spend of one category
type CategoryStat struct {
	Category   receipt.Category `json:"category"`
	Amount     float64          `json:"amount"`
	Percentage float64          `json:"percentage"`
}

// MonthGroup is the receipts dated in one calendar month
type MonthGroup struct {
	Key      string             `json:"key"` // e.g. "March 2024"
	Receipts []*receipt.Receipt `json:"receipts"`
}

// Stats is the aggregate view of a snapshot
type Stats struct {
	TotalSpend      float64        `json:"totalSpend"`
	Count           int            `json:"count"`
	ReimbursedSpend float64        `json:"reimbursedSpend"`
	PendingSpend    float64        `json:"pendingSpend"`
	ByCategory      []CategoryStat `json:"byCategory"`
}

// TotalSpend sums the totals of every receipt
func TotalSpend(records []*receipt.Receipt) float64 {
	var sum float64
	for _, r := range records {
		sum += r.Total
	}
	return sum
}

// ByCategory returns every fixed category with its spend and share of the
// total, largest first. Ties keep the fixed category order.
func ByCategory(records []*receipt.Receipt) []CategoryStat {
	amounts := make(map[receipt.Category]float64)
	var total float64
	for _, r := range records {
		amounts[receipt.ParseCategory(string(r.Category))] += r.Total
		total += r.Total
	}

	categories := receipt.Categories()
	stats := make([]CategoryStat, len(categories))
	for i, c := range categories {
		stats[i] = CategoryStat{Category: c, Amount: amounts[c]}
		if total > 0 {
			stats[i].Percentage = amounts[c] / total * 100
		}
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Amount > stats[j].Amount
	})
	return stats
}

// TopCategories returns at most n categories with a non-zero amount
func TopCategories(stats []CategoryStat, n int) []CategoryStat {
	var out []CategoryStat
	for _, s := range stats {
		if len(out) >= n {
			break
		}
		if s.Amount > 0 {
			out = append(out, s)
		}
	}
	return out
}

// MonthKey returns the "Month Year" label for a YYYY-MM-DD date
func MonthKey(date string) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(date))
	if err != nil {
		return UnknownMonth
	}
	return t.Format("January 2006")
}

// GroupByMonth groups receipts by the month of their transaction date. Groups
// appear in order of first occurrence and keep the input order within.
func GroupByMonth(records []*receipt.Receipt) []MonthGroup {
	var groups []MonthGroup
	index := make(map[string]int)
	for _, r := range records {
		key := MonthKey(r.Date)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, MonthGroup{Key: key})
		}
		groups[i].Receipts = append(groups[i].Receipts, r)
	}
	return groups
}

// Search keeps the receipts whose merchant or category contains query,
// ignoring case. A blank query returns records unchanged.
func Search(records []*receipt.Receipt, query string) []*receipt.Receipt {
	query = strings.TrimSpace(query)
	if query == "" {
		return records
	}

	fold := cases.Fold()
	needle := fold.String(query)

	out := make([]*receipt.Receipt, 0, len(records))
	for _, r := range records {
		if strings.Contains(fold.String(r.Merchant), needle) ||
			strings.Contains(fold.String(string(r.Category)), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Compute builds the aggregate view of records
func Compute(records []*receipt.Receipt) Stats {
	stats := Stats{
		TotalSpend: TotalSpend(records),
		Count:      len(records),
		ByCategory: ByCategory(records),
	}
	for _, r := range records {
		if r.IsReimbursed {
			stats.ReimbursedSpend += r.Total
		} else {
			stats.PendingSpend += r.Total
		}
	}
	return stats
}

// Insights returns short observations about the spending in stats
func Insights(records []*receipt.Receipt, stats Stats) []string {
	top := "N/A"
	if t := TopCategories(stats.ByCategory, 1); len(t) > 0 {
		top = string(t[0].Category)
	}

	return []string{
		fmt.Sprintf("Most of your spending goes to %s.", top),
		fmt.Sprintf("You've processed %d transactions this billing period.", len(records)),
	}
}
