package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// moneyFields are the top-level amounts models sometimes return as strings
var moneyFields = []string{"total", "subtotal", "tax", "taxRate", "serviceCharge", "discount"}

var reAmount = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// receiptJSONSchema describes the extraction result. Only types are
// constrained: no field is required.
func receiptJSONSchema() map[string]any {
	number := map[string]any{"type": "number"}
	str := map[string]any{"type": "string"}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"merchant":      str,
			"date":          str,
			"total":         number,
			"subtotal":      number,
			"tax":           number,
			"taxRate":       number,
			"serviceCharge": number,
			"discount":      number,
			"paymentMethod": str,
			"category":      str,
			"currency":      str,
			"taxes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":   str,
						"amount": number,
						"rate":   number,
					},
				},
			},
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":     str,
						"price":    number,
						"quantity": number,
					},
				},
			},
		},
	}
}

var (
	compiledSchema     *jsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

func receiptSchema() (*jsonschema.Schema, error) {
	compiledSchemaOnce.Do(func() {
		b, err := json.Marshal(receiptJSONSchema())
		if err != nil {
			compiledSchemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("receipt.json", bytes.NewReader(b)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compiledSchemaErr = compiler.Compile("receipt.json")
	})
	return compiledSchema, compiledSchemaErr
}

// validateReceiptDoc checks a decoded extraction result against the schema
func validateReceiptDoc(doc map[string]any) error {
	schema, err := receiptSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// sanitizeReceiptDoc drops nulls and turns amounts written as strings
// ("$12.50", "1,299.00") into numbers so the document can validate
func sanitizeReceiptDoc(doc map[string]any) {
	for k, v := range doc {
		if v == nil {
			delete(doc, k)
		}
	}

	for _, k := range moneyFields {
		if s, ok := doc[k].(string); ok {
			if f, ok := parseAmount(s); ok {
				doc[k] = f
			} else {
				delete(doc, k)
			}
		}
	}

	sanitizeLines(doc, "taxes", "amount", "rate")
	sanitizeLines(doc, "items", "price", "quantity")
}

func sanitizeLines(doc map[string]any, key string, numberKeys ...string) {
	lines, ok := doc[key].([]any)
	if !ok {
		return
	}
	for _, line := range lines {
		m, ok := line.(map[string]any)
		if !ok {
			continue
		}
		for k, v := range m {
			if v == nil {
				delete(m, k)
			}
		}
		for _, k := range numberKeys {
			if s, ok := m[k].(string); ok {
				if f, ok := parseAmount(s); ok {
					m[k] = f
				} else {
					delete(m, k)
				}
			}
		}
	}
}

func parseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	match := reAmount.FindString(s)
	if match == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
