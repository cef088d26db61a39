package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zombor/receiptify/internal/receipt"
)

// AppName identifies backups written by this program
const AppName = "Receiptify"

// Backup is a full snapshot of the stored data
type Backup struct {
	Receipts   []*receipt.Receipt `json:"receipts"`
	Settings   receipt.Settings   `json:"settings"`
	ExportedAt string             `json:"exportedAt"` // RFC 3339
	App        string             `json:"app"`
}

// NewBackup snapshots receipts and settings at now
func NewBackup(records []*receipt.Receipt, settings receipt.Settings, now time.Time) *Backup {
	if records == nil {
		records = []*receipt.Receipt{}
	}
	return &Backup{
		Receipts:   records,
		Settings:   settings,
		ExportedAt: now.UTC().Format(time.RFC3339),
		App:        AppName,
	}
}

// SavedSettings returns the settings recorded in the backup, with any field
// the backup left out taken from the defaults. ok is false when the backup
// carries no settings at all.
func (b *Backup) SavedSettings() (settings receipt.Settings, ok bool) {
	if b.Settings == (receipt.Settings{}) {
		return receipt.Settings{}, false
	}

	settings = receipt.DefaultSettings()
	if b.Settings.CurrencySymbol != "" {
		settings.CurrencySymbol = b.Settings.CurrencySymbol
	}
	if b.Settings.CurrencyCode != "" {
		settings.CurrencyCode = b.Settings.CurrencyCode
		if c, found := receipt.LookupCurrency(b.Settings.CurrencyCode); found && b.Settings.CurrencySymbol == "" {
			settings.CurrencySymbol = c.Symbol
		}
	}
	if b.Settings.Theme != "" {
		settings.Theme = b.Settings.Theme
	}
	return settings, true
}

// JSON encodes the backup as indented JSON
func (b *Backup) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling backup: %w", err)
	}
	return data, nil
}

// YAML encodes the backup as YAML with the same keys as the JSON form
func (b *Backup) YAML() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshaling backup: %w", err)
	}

	// Going through a generic tree keeps the JSON field names
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("unmarshaling backup: %w", err)
	}

	out, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("marshaling backup yaml: %w", err)
	}
	return out, nil
}

// ParseBackup reads a backup written as JSON or YAML
func ParseBackup(data []byte) (*Backup, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty backup")
	}

	if trimmed[0] != '{' {
		var tree any
		if err := yaml.Unmarshal(trimmed, &tree); err != nil {
			return nil, fmt.Errorf("unmarshaling backup yaml: %w", err)
		}
		converted, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("converting backup yaml: %w", err)
		}
		trimmed = converted
	}

	var b Backup
	if err := json.Unmarshal(trimmed, &b); err != nil {
		return nil, fmt.Errorf("unmarshaling backup: %w", err)
	}
	return &b, nil
}
