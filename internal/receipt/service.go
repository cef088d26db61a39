package receipt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zombor/receiptify/internal/metrics"
	"github.com/zombor/receiptify/internal/scanning"
)

// Document is an uploaded photo or PDF of a receipt
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Draft is a manual-entry form prefilled from a document that could not be
// extracted. Nothing has been saved for it.
type Draft struct {
	Fields PartialFields `json:"fields"`
	Reason string        `json:"reason"`
}

// CaptureResult holds exactly one of a saved receipt or a draft
type CaptureResult struct {
	Receipt *Receipt `json:"receipt,omitempty"`
	Draft   *Draft   `json:"draft,omitempty"`
}

// Service handles receipt operations
type Service struct {
	store       *Store
	settings    *SettingsStore
	scanner     scanning.Scanner
	normalizer  *Normalizer
	metrics     *metrics.Metrics
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source.
// scanner may be nil, in which case every capture becomes a draft.
func NewService(store *Store, settings *SettingsStore, scanner scanning.Scanner, m *metrics.Metrics) *Service {
	return NewServiceWithDeps(store, settings, scanner, m, &defaultIDGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store *Store, settings *SettingsStore, scanner scanning.Scanner, m *metrics.Metrics, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		settings:    settings,
		scanner:     scanner,
		normalizer:  NewNormalizerWithDeps(idGen, timeSrc),
		metrics:     m,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Capture extracts fields from a document and saves the resulting receipt.
// When extraction is unavailable or fails, a Draft is returned instead and
// nothing is written. The only errors are persistence failures and
// cancellation.
func (s *Service) Capture(ctx context.Context, doc Document) (*CaptureResult, error) {
	data, mimeType := scanning.PrepareDocument(doc.Data, doc.ContentType)
	image := scanning.DataURL(data, mimeType)

	if s.scanner == nil {
		s.metrics.Extraction(metrics.OutcomeSkipped)
		return &CaptureResult{Draft: s.draft(doc.Filename, image, "no scanner configured")}, nil
	}

	extracted, err := s.scanner.ScanReceipt(ctx, doc.Data, doc.ContentType)
	if err != nil {
		slog.Error("Failed to scan receipt",
			"filename", doc.Filename,
			"content_type", doc.ContentType,
			"file_size", len(doc.Data),
			"error", err,
		)
		s.metrics.Extraction(metrics.OutcomeFailed)
		return &CaptureResult{Draft: s.draft(doc.Filename, image, err.Error())}, nil
	}
	s.metrics.Extraction(metrics.OutcomeSuccess)

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	fields := FieldsFromExtraction(extracted)
	fields.Image = image
	receipt := s.normalizer.Normalize(fields, doc.Filename, settings)

	for _, d := range Reconcile(receipt) {
		slog.Warn("Extracted amounts do not reconcile",
			"id", receipt.ID,
			"merchant", receipt.Merchant,
			"discrepancy", d.String(),
		)
	}

	// The caller went away while extraction ran; drop the result
	if err := ctx.Err(); err != nil {
		slog.Info("Discarding capture result", "filename", doc.Filename, "error", err)
		return nil, fmt.Errorf("capturing receipt: %w", err)
	}

	if err := s.store.Upsert(ctx, receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	s.metrics.Saved(metrics.SourceExtraction)

	slog.Info("Receipt captured", "id", receipt.ID, "merchant", receipt.Merchant, "total", receipt.Total)
	return &CaptureResult{Receipt: receipt}, nil
}

func (s *Service) draft(filename, image, reason string) *Draft {
	return &Draft{
		Fields: PartialFields{
			Merchant: MerchantFromFilename(filename),
			Date:     s.normalizer.Today(),
			Image:    image,
		},
		Reason: reason,
	}
}

// FieldsFromExtraction converts a scanner result into normalizer input
func FieldsFromExtraction(data *scanning.ReceiptData) PartialFields {
	if data == nil {
		return PartialFields{}
	}

	fields := PartialFields{
		Merchant:      data.Merchant,
		Date:          data.Date,
		Total:         data.Total,
		Subtotal:      data.Subtotal,
		Tax:           data.Tax,
		TaxRate:       data.TaxRate,
		ServiceCharge: data.ServiceCharge,
		Discount:      data.Discount,
		PaymentMethod: data.PaymentMethod,
		Category:      data.Category,
		Currency:      data.Currency,
	}

	if data.Taxes != nil {
		fields.Taxes = make([]TaxDetail, len(data.Taxes))
		for i, t := range data.Taxes {
			fields.Taxes[i] = TaxDetail{Name: t.Name, Amount: t.Amount, Rate: t.Rate}
		}
	}
	if data.Items != nil {
		fields.Items = make([]ReceiptItem, len(data.Items))
		for i, it := range data.Items {
			fields.Items[i] = ReceiptItem{Name: it.Name, Price: it.Price, Quantity: it.Quantity}
		}
	}

	return fields
}

// SaveManual validates hand-entered fields and saves them as a new receipt
func (s *Service) SaveManual(ctx context.Context, fields PartialFields, filename string) (*Receipt, error) {
	if err := ValidateManual(fields); err != nil {
		return nil, err
	}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	receipt := s.normalizer.Normalize(fields, filename, settings)
	if err := s.store.Upsert(ctx, receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	s.metrics.Saved(metrics.SourceManual)

	return receipt, nil
}

// Edit replaces the fields of an existing receipt. The id, creation time,
// currency and flags are kept, as is the image when fields carries none.
func (s *Service) Edit(ctx context.Context, id string, fields PartialFields) (*Receipt, error) {
	if err := ValidateManual(fields); err != nil {
		return nil, err
	}

	receipt, err := s.store.Update(ctx, id, func(r *Receipt) error {
		updated := s.normalizer.Normalize(fields, "", Settings{CurrencySymbol: r.Currency})
		updated.ID = r.ID
		updated.CreatedAt = r.CreatedAt
		updated.IsReimbursed = r.IsReimbursed
		updated.IsFavorite = r.IsFavorite
		if updated.Image == "" {
			updated.Image = r.Image
		}
		*r = *updated
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("editing receipt: %w", err)
	}
	s.metrics.Saved(metrics.SourceEdit)

	return receipt, nil
}

// ToggleReimbursed flips the reimbursed flag of a receipt
func (s *Service) ToggleReimbursed(ctx context.Context, id string) (*Receipt, error) {
	receipt, err := s.store.Update(ctx, id, func(r *Receipt) error {
		r.IsReimbursed = !r.IsReimbursed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggling reimbursed: %w", err)
	}
	s.metrics.Saved(metrics.SourceToggle)
	return receipt, nil
}

// ToggleFavorite flips the favorite flag of a receipt
func (s *Service) ToggleFavorite(ctx context.Context, id string) (*Receipt, error) {
	receipt, err := s.store.Update(ctx, id, func(r *Receipt) error {
		r.IsFavorite = !r.IsFavorite
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("toggling favorite: %w", err)
	}
	s.metrics.Saved(metrics.SourceToggle)
	return receipt, nil
}

// Delete removes a receipt. Unknown ids are ignored.
func (s *Service) Delete(ctx context.Context, id string) error {
	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	if removed {
		s.metrics.Deleted()
	}
	return nil
}

// Get retrieves a receipt by ID
func (s *Service) Get(ctx context.Context, id string) (*Receipt, error) {
	receipt, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// List returns all receipts, newest first
func (s *Service) List(ctx context.Context) ([]*Receipt, error) {
	receipts, err := s.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// Settings returns the current settings
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	settings, err := s.settings.Load(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings validates and saves new settings. Existing receipts keep the
// currency they were created with.
func (s *Service) UpdateSettings(ctx context.Context, settings Settings) error {
	if err := s.settings.Save(ctx, settings); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// Import upserts receipts from a backup. They are stored as-is apart from
// getting an id and creation time when missing, negative or non-finite
// amounts clamped to zero and an unknown category coerced to Others.
func (s *Service) Import(ctx context.Context, receipts []*Receipt) (int, error) {
	now := s.timeSource.Now()
	clean := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r == nil {
			continue
		}
		if r.ID == "" {
			r.ID = s.idGenerator.Generate()
		}
		if r.CreatedAt == 0 {
			r.CreatedAt = now.UnixMilli()
		}
		r.Total = nonNegative(&r.Total)
		r.Tax = nonNegative(&r.Tax)
		if !r.Category.Valid() {
			r.Category = ParseCategory(string(r.Category))
		}
		clean = append(clean, r)
	}

	if err := s.store.UpsertMany(ctx, clean); err != nil {
		return 0, fmt.Errorf("importing receipts: %w", err)
	}
	for range clean {
		s.metrics.Saved(metrics.SourceImport)
	}

	return len(clean), nil
}
