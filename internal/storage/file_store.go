package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/MeterNews/internal/dedup"
)

// FileStore keeps delivered stories in a JSON file.
type FileStore struct {
	filePath string
	ttl      time.Duration
	items    map[string]SentStory
	mu       sync.RWMutex
	now      func() time.Time
}

// NewFileStore creates a store backed by filePath. Call Load before use.
func NewFileStore(filePath string, ttl time.Duration) *FileStore {
	return &FileStore{
		filePath: filePath,
		ttl:      ttl,
		items:    make(map[string]SentStory),
		now:      time.Now,
	}
}

func (fs *FileStore) cutoff() time.Time {
	return fs.now().Add(-fs.ttl)
}

// Load reads the file, keeping only entries inside the TTL window.
// A missing or empty file is an empty memory.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read seen file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []SentStory
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal seen file: %w", err)
	}

	cutoff := fs.cutoff()
	for _, item := range items {
		if item.SentAt.After(cutoff) {
			fs.items[item.Key] = item
		}
	}
	return nil
}

// Save writes the current memory, oldest first.
func (fs *FileStore) Save() error {
	fs.mu.RLock()
	items := make([]SentStory, 0, len(fs.items))
	for _, item := range fs.items {
		items = append(items, item)
	}
	fs.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if !items[i].SentAt.Equal(items[j].SentAt) {
			return items[i].SentAt.Before(items[j].SentAt)
		}
		return items[i].Key < items[j].Key
	})

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal seen stories: %w", err)
	}
	if err := os.WriteFile(fs.filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write seen file: %w", err)
	}
	return nil
}

// Seen implements dedup.PriorSet.
func (fs *FileStore) Seen(fp dedup.Fingerprint) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	cutoff := fs.cutoff()
	for _, k := range Keys(fp) {
		if item, ok := fs.items[k]; ok && item.SentAt.After(cutoff) {
			return true
		}
	}
	return false
}

// Remember records the delivered groups and persists the file.
func (fs *FileStore) Remember(_ context.Context, runID string, groups []dedup.DuplicateGroup) error {
	fs.mu.Lock()
	for _, s := range storiesFor(groups, runID, fs.now()) {
		fs.items[s.Key] = s
	}
	fs.mu.Unlock()
	return fs.Save()
}

// Cleanup drops expired entries and returns how many were removed.
func (fs *FileStore) Cleanup(_ context.Context) (int, error) {
	fs.mu.Lock()
	cutoff := fs.cutoff()
	removed := 0
	for key, item := range fs.items {
		if !item.SentAt.After(cutoff) {
			delete(fs.items, key)
			removed++
		}
	}
	fs.mu.Unlock()
	if removed == 0 {
		return 0, nil
	}
	return removed, fs.Save()
}

// GetStats returns store statistics.
func (fs *FileStore) GetStats() map[string]int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return map[string]int{
		"total_items": len(fs.items),
	}
}

func (fs *FileStore) Close() error {
	return nil
}
