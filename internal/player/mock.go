package player

import "sync"

// MockRenderer is an in-memory Renderer for tests. FinishCurrent simulates
// the file playing to its end.
type MockRenderer struct {
	mu      sync.Mutex
	onEnd   func()
	playing bool
	standby bool

	Played       []string
	StandbyCount int
	PlayErr      error
	StandbyErr   error
}

func NewMockRenderer() *MockRenderer {
	return &MockRenderer{}
}

func (m *MockRenderer) OnEndReached(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = fn
}

func (m *MockRenderer) Play(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PlayErr != nil {
		return m.PlayErr
	}
	m.Played = append(m.Played, path)
	m.playing = true
	m.standby = false
	return nil
}

func (m *MockRenderer) PlayStandby() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StandbyErr != nil {
		return m.StandbyErr
	}
	m.StandbyCount++
	m.playing = false
	m.standby = true
	return nil
}

func (m *MockRenderer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
	m.standby = false
}

// FinishCurrent fires the end-reached callback as if the file ended.
func (m *MockRenderer) FinishCurrent() {
	m.mu.Lock()
	playing := m.playing
	onEnd := m.onEnd
	m.playing = false
	m.mu.Unlock()

	if playing && onEnd != nil {
		onEnd()
	}
}

func (m *MockRenderer) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

func (m *MockRenderer) OnStandby() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.standby
}

func (m *MockRenderer) PlayedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Played)
}
