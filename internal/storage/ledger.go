package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Ledger records which product identifiers have already been published.
type Ledger interface {
	IsProcessed(ctx context.Context, id string) (bool, error)
	MarkProcessed(ctx context.Context, id string) error
	Processed(ctx context.Context) ([]string, error)
}

type ledgerDocument struct {
	Processed []string `json:"processed"`
}

// FileLedger keeps the processed set in memory and rewrites the whole JSON
// document on every MarkProcessed.
type FileLedger struct {
	mu       sync.RWMutex
	filename string
	order    []string
	set      map[string]struct{}
}

// NewFileLedger returns an empty ledger that persists to filename.
func NewFileLedger(filename string) *FileLedger {
	return &FileLedger{
		filename: filename,
		order:    make([]string, 0),
		set:      make(map[string]struct{}),
	}
}

// LoadFileLedger reads the ledger at filename. A missing or corrupt file
// yields an empty ledger; the failure is logged, not returned.
func LoadFileLedger(filename string, logger *slog.Logger) *FileLedger {
	l := NewFileLedger(filename)
	if err := l.load(); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("starting with empty ledger",
			"component", "ledger",
			"path", filename,
			"error", err,
		)
		return NewFileLedger(filename)
	}
	return l
}

func (l *FileLedger) IsProcessed(_ context.Context, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.set[id]
	return ok, nil
}

func (l *FileLedger) MarkProcessed(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.set[id]; !ok {
		l.set[id] = struct{}{}
		l.order = append(l.order, id)
	}

	return l.save()
}

func (l *FileLedger) Processed(_ context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]string, len(l.order))
	copy(out, l.order)
	return out, nil
}

func (l *FileLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

func (l *FileLedger) save() error {
	data, err := json.Marshal(ledgerDocument{Processed: l.order})
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}

	// Write to temp file first for atomicity
	tmpFile := l.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}

	if err := os.Rename(tmpFile, l.filename); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	return nil
}

func (l *FileLedger) load() error {
	data, err := os.ReadFile(l.filename)
	if err != nil {
		return err
	}

	var doc ledgerDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid ledger document: %w", err)
	}

	for _, id := range doc.Processed {
		if _, ok := l.set[id]; ok {
			continue
		}
		l.set[id] = struct{}{}
		l.order = append(l.order, id)
	}
	return nil
}
