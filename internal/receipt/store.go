package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zombor/receiptify/internal/kv"
)

const (
	receiptsKey = "receipts"
	settingsKey = "settings"
)

// ErrReceiptNotFound is returned when no receipt has the requested id
var ErrReceiptNotFound = errors.New("receipt not found")

// Store keeps the whole receipt collection under a single key. Every mutation
// rewrites the full collection.
type Store struct {
	kv kv.Store
	// mu serializes read-modify-write cycles within this process
	mu sync.Mutex
}

// NewStore creates a Store over the given key-value substrate
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// All returns a snapshot of every receipt, newest first
func (s *Store) All(ctx context.Context) ([]*Receipt, error) {
	return s.load(ctx)
}

// Get returns a single receipt by id
func (s *Store) Get(ctx context.Context, id string) (*Receipt, error) {
	receipts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range receipts {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, id)
}

// Upsert replaces the receipt with the same id in place, or prepends it when new
func (s *Store) Upsert(ctx context.Context, receipt *Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.load(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i, r := range receipts {
		if r.ID == receipt.ID {
			receipts[i] = receipt
			replaced = true
			break
		}
	}
	if !replaced {
		receipts = append([]*Receipt{receipt}, receipts...)
	}

	return s.save(ctx, receipts)
}

// UpsertMany applies Upsert to every receipt in one rewrite. New receipts are
// prepended as a block, keeping their relative order.
func (s *Store) UpsertMany(ctx context.Context, incoming []*Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.load(ctx)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(receipts))
	for i, r := range receipts {
		index[r.ID] = i
	}

	var fresh []*Receipt
	freshIndex := make(map[string]int)
	for _, r := range incoming {
		if i, ok := index[r.ID]; ok {
			receipts[i] = r
			continue
		}
		if i, ok := freshIndex[r.ID]; ok {
			fresh[i] = r
			continue
		}
		freshIndex[r.ID] = len(fresh)
		fresh = append(fresh, r)
	}

	return s.save(ctx, append(fresh, receipts...))
}

// Delete removes the receipt with the given id and reports whether it existed.
// Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	kept := make([]*Receipt, 0, len(receipts))
	for _, r := range receipts {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(receipts) {
		slog.Debug("Delete of unknown receipt ignored", "id", id)
		return false, nil
	}

	if err := s.save(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

// Update applies fn to the receipt with the given id and persists the result
// in one read-modify-write cycle
func (s *Store) Update(ctx context.Context, id string, fn func(*Receipt) error) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipts, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	for _, r := range receipts {
		if r.ID != id {
			continue
		}
		if err := fn(r); err != nil {
			return nil, err
		}
		if err := s.save(ctx, receipts); err != nil {
			return nil, err
		}
		return r, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, id)
}

func (s *Store) load(ctx context.Context) ([]*Receipt, error) {
	data, err := s.kv.Get(ctx, receiptsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []*Receipt{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading receipts: %w", err)
	}

	var receipts []*Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("unmarshaling receipts: %w", err)
	}
	if receipts == nil {
		receipts = []*Receipt{}
	}
	return receipts, nil
}

func (s *Store) save(ctx context.Context, receipts []*Receipt) error {
	data, err := json.Marshal(receipts)
	if err != nil {
		return fmt.Errorf("marshaling receipts: %w", err)
	}
	if err := s.kv.Set(ctx, receiptsKey, data); err != nil {
		return fmt.Errorf("writing receipts: %w", err)
	}
	return nil
}

// SettingsStore keeps the user's settings as a single object
type SettingsStore struct {
	kv kv.Store
}

// NewSettingsStore creates a SettingsStore over the given key-value substrate
func NewSettingsStore(store kv.Store) *SettingsStore {
	return &SettingsStore{kv: store}
}

// Load returns the saved settings, or the defaults when none were saved
func (s *SettingsStore) Load(ctx context.Context) (Settings, error) {
	data, err := s.kv.Get(ctx, settingsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshaling settings: %w", err)
	}
	return settings, nil
}

// Save validates and persists settings
func (s *SettingsStore) Save(ctx context.Context, settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	if err := s.kv.Set(ctx, settingsKey, data); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}
