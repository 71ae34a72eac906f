package player

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vheinola/utuputki/internal/domain"
)

type finishRecord struct {
	item   *domain.HistoryItem
	reason domain.FinishReason
}

type fakeSource struct {
	mu       sync.Mutex
	items    []*domain.HistoryItem
	finished []finishRecord
}

func (s *fakeSource) PopNextPlaylistItem() *domain.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return nil
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item
}

func (s *fakeSource) PlaylistItemFinished(item *domain.HistoryItem, reason domain.FinishReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, finishRecord{item: item, reason: reason})
}

func (s *fakeSource) add(item *domain.HistoryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
}

func (s *fakeSource) finishedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.finished)
}

func (s *fakeSource) finishedAt(i int) finishRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished[i]
}

func historyItem(id int64, filename string) *domain.HistoryItem {
	return &domain.HistoryItem{
		ID: domain.HistoryItemID(id),
		Media: domain.Media{
			ID:       domain.MediaID(id),
			Status:   domain.MediaReady,
			Filename: filename,
		},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func startTestLoop(t *testing.T, source *fakeSource) (*Loop, *MockRenderer, chan struct{}) {
	t.Helper()

	renderer := NewMockRenderer()
	loop := NewLoop(LoopOptions{
		Renderer: renderer,
		Source:   source,
		CacheDir: "/cache",
	})

	done := make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()

	t.Cleanup(func() {
		loop.Shutdown(true)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Loop did not stop")
		}
	})

	return loop, renderer, done
}

func TestLoopPlaysQueuedItems(t *testing.T) {
	source := &fakeSource{}
	source.add(historyItem(1, "AAA.mp4"))
	source.add(historyItem(2, "BBB.mp4"))

	_, renderer, _ := startTestLoop(t, source)

	waitFor(t, "first item playing", func() bool { return renderer.PlayedCount() == 1 })
	renderer.FinishCurrent()

	waitFor(t, "second item playing", func() bool { return renderer.PlayedCount() == 2 })
	renderer.FinishCurrent()

	waitFor(t, "standby after queue drained", renderer.OnStandby)

	if want := filepath.Join("/cache", "AAA.mp4"); renderer.Played[0] != want {
		t.Errorf("Expected first path %s, got %s", want, renderer.Played[0])
	}
	if source.finishedCount() != 2 {
		t.Fatalf("Expected 2 finished items, got %d", source.finishedCount())
	}
	for i := 0; i < 2; i++ {
		if rec := source.finishedAt(i); rec.reason != domain.Completed {
			t.Errorf("Expected item %d completed, got %s", i, rec.reason)
		}
	}
}

func TestLoopSkip(t *testing.T) {
	source := &fakeSource{}
	source.add(historyItem(1, "AAA.mp4"))

	loop, renderer, _ := startTestLoop(t, source)

	waitFor(t, "item playing", func() bool { return renderer.PlayedCount() == 1 })
	loop.SkipCurrent()

	waitFor(t, "item finished", func() bool { return source.finishedCount() == 1 })
	if rec := source.finishedAt(0); rec.reason != domain.Skipped {
		t.Errorf("Expected skipped, got %s", rec.reason)
	}
}

func TestLoopWakesFromStandbyOnMediaUpdate(t *testing.T) {
	source := &fakeSource{}
	loop, renderer, _ := startTestLoop(t, source)

	waitFor(t, "standby", renderer.OnStandby)

	source.add(historyItem(1, "AAA.mp4"))
	loop.NotifyMediaUpdate()

	waitFor(t, "item playing", func() bool { return renderer.PlayedCount() == 1 })
}

func TestLoopIgnoresMediaUpdateWhilePlaying(t *testing.T) {
	source := &fakeSource{}
	source.add(historyItem(1, "AAA.mp4"))

	loop, renderer, _ := startTestLoop(t, source)

	waitFor(t, "item playing", func() bool { return renderer.PlayedCount() == 1 })

	source.add(historyItem(2, "BBB.mp4"))
	loop.NotifyMediaUpdate()

	time.Sleep(20 * time.Millisecond)
	if source.finishedCount() != 0 {
		t.Error("Media update must not interrupt ongoing playback")
	}
	if renderer.PlayedCount() != 1 {
		t.Error("Second item must wait for the first to finish")
	}
}

func TestLoopGracefulShutdownFinishesCurrent(t *testing.T) {
	source := &fakeSource{}
	source.add(historyItem(1, "AAA.mp4"))

	loop, renderer, done := startTestLoop(t, source)

	waitFor(t, "item playing", func() bool { return renderer.PlayedCount() == 1 })
	loop.Shutdown(false)

	select {
	case <-done:
		t.Fatal("Graceful shutdown must wait for the current video")
	case <-time.After(20 * time.Millisecond):
	}

	renderer.FinishCurrent()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop after playback ended")
	}

	if rec := source.finishedAt(0); rec.reason != domain.Completed {
		t.Errorf("Expected completed, got %s", rec.reason)
	}
}

func TestLoopImmediateShutdownCutsPlayback(t *testing.T) {
	source := &fakeSource{}
	source.add(historyItem(1, "AAA.mp4"))

	loop, renderer, done := startTestLoop(t, source)

	waitFor(t, "item playing", func() bool { return renderer.PlayedCount() == 1 })
	loop.Shutdown(true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop")
	}
	if source.finishedCount() != 1 {
		t.Fatal("Expected the interrupted item to be finalised")
	}
}

// notifyDuringDequeueSource makes an item ready and notifies the loop while
// the loop is still inside its dequeue, before it is back on standby.
type notifyDuringDequeueSource struct {
	*fakeSource
	loop *Loop
	once sync.Once
}

func (s *notifyDuringDequeueSource) PopNextPlaylistItem() *domain.HistoryItem {
	item := s.fakeSource.PopNextPlaylistItem()
	if item == nil {
		s.once.Do(func() {
			s.fakeSource.add(historyItem(1, "AAA.mp4"))
			s.loop.NotifyMediaUpdate()
		})
	}
	return item
}

func TestLoopReadyNotificationDuringDequeue(t *testing.T) {
	source := &notifyDuringDequeueSource{fakeSource: &fakeSource{}}
	renderer := NewMockRenderer()
	loop := NewLoop(LoopOptions{
		Renderer: renderer,
		Source:   source,
		CacheDir: "/cache",
	})
	source.loop = loop

	done := make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()
	t.Cleanup(func() {
		loop.Shutdown(true)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("Loop did not stop")
		}
	})

	// The notification raced the dequeue; the loop must retry and play the
	// item instead of sleeping on standby until some unrelated wake-up.
	waitFor(t, "item playing", func() bool { return renderer.PlayedCount() == 1 })
}

func TestLoopPlayFailure(t *testing.T) {
	source := &fakeSource{}
	source.add(historyItem(1, "AAA.mp4"))
	source.add(historyItem(2, "BBB.mp4"))

	renderer := NewMockRenderer()
	renderer.PlayErr = errors.New("no display")
	loop := NewLoop(LoopOptions{
		Renderer: renderer,
		Source:   source,
		CacheDir: "/cache",
	})

	done := make(chan struct{})
	go func() {
		loop.Run()
		close(done)
	}()
	t.Cleanup(func() {
		loop.Shutdown(true)
		select {
		case <-done:
		case <-time.After(4 * time.Second):
			t.Error("Loop did not stop")
		}
	})

	waitFor(t, "item finalised", func() bool { return source.finishedCount() == 1 })

	// An item the renderer never played must not be recorded as completed.
	if rec := source.finishedAt(0); rec.reason != domain.Unfinished {
		t.Errorf("Expected unfinished, got %s", rec.reason)
	}
	if renderer.PlayedCount() != 0 {
		t.Errorf("Expected no successful plays, got %d", renderer.PlayedCount())
	}

	// The loop backs off instead of burning the rest of the playlist.
	time.Sleep(200 * time.Millisecond)
	if source.finishedCount() != 1 {
		t.Errorf("Expected back-off after play failure, got %d finished items",
			source.finishedCount())
	}
}

func TestLoopShutdownFromStandby(t *testing.T) {
	source := &fakeSource{}
	loop, renderer, done := startTestLoop(t, source)

	waitFor(t, "standby", renderer.OnStandby)
	loop.Shutdown(false)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Loop did not stop from standby")
	}
}
