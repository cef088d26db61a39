package receipt

import "strings"

// Category is the closed set of spending categories
type Category string

const (
	Food          Category = "Food"
	Travel        Category = "Travel"
	Shopping      Category = "Shopping"
	Utilities     Category = "Utilities"
	Health        Category = "Health"
	Entertainment Category = "Entertainment"
	Others        Category = "Others"
)

var allCategories = []Category{
	Food,
	Travel,
	Shopping,
	Utilities,
	Health,
	Entertainment,
	Others,
}

// Categories returns every category in display order
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// CategoryNames returns the categories as plain strings
func CategoryNames() []string {
	out := make([]string, len(allCategories))
	for i, c := range allCategories {
		out[i] = string(c)
	}
	return out
}

// Valid reports whether c is one of the fixed categories
func (c Category) Valid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory maps free text onto the fixed set. Anything unrecognized is Others.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range allCategories {
		if strings.EqualFold(s, string(c)) {
			return c
		}
	}
	return Others
}
