package printing

import (
	"sync"

	"github.com/erp/labelprint/internal/domain/printing"
)

// SettingsStore holds the process-wide printer settings. Jobs take a
// Snapshot when they start and never read the store again.
type SettingsStore struct {
	mu       sync.RWMutex
	settings printing.PrinterSettings
	version  int
}

// NewSettingsStore creates a new store with initial settings
func NewSettingsStore(initial printing.PrinterSettings) *SettingsStore {
	return &SettingsStore{settings: initial, version: 1}
}

// Snapshot returns a copy of the current settings
func (s *SettingsStore) Snapshot() printing.PrinterSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Version increases on every successful update
func (s *SettingsStore) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Replace validates and stores new settings
func (s *SettingsStore) Replace(settings printing.PrinterSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.version++
	s.mu.Unlock()
	return nil
}

// Update applies fn to a copy of the settings and stores the result if valid
func (s *SettingsStore) Update(fn func(*printing.PrinterSettings)) (printing.PrinterSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.settings, err
	}
	s.settings = next
	s.version++
	return next, nil
}
