package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// Mock is a deterministic Fetcher for tests. ExtractInfo serves descriptors
// from a table; Download produces the file by writing a fixed payload.
type Mock struct {
	mu sync.Mutex

	// Descriptors maps URL to the descriptor ExtractInfo returns.
	Descriptors map[string]*Descriptor
	// ExtractErr, when set, fails every ExtractInfo call.
	ExtractErr error
	// DownloadErr, when set, fails every Download call.
	DownloadErr error
	// WritePath optionally overrides where Download writes, letting tests
	// simulate a fetcher that remuxes into a different container.
	WritePath func(destPath string) string

	ExtractCalls  []string
	DownloadCalls []string
}

func NewMock() *Mock {
	return &Mock{
		Descriptors: make(map[string]*Descriptor),
	}
}

func (m *Mock) ExtractInfo(_ context.Context, url string) (*Descriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExtractCalls = append(m.ExtractCalls, url)

	if m.ExtractErr != nil {
		return nil, m.ExtractErr
	}
	desc, ok := m.Descriptors[url]
	if !ok {
		return nil, errors.New("mock: unknown url " + url)
	}
	copy := *desc
	return &copy, nil
}

func (m *Mock) Download(_ context.Context, url string, _ *Descriptor, destPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DownloadCalls = append(m.DownloadCalls, url)

	if m.DownloadErr != nil {
		return m.DownloadErr
	}
	if m.WritePath != nil {
		destPath = m.WritePath(destPath)
	}
	if err := os.WriteFile(destPath, []byte("mock media payload"), 0o644); err != nil {
		return fmt.Errorf("mock: failed to write %s: %w", destPath, err)
	}
	return nil
}
