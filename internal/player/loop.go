package player

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vheinola/utuputki/internal/domain"
	"github.com/vheinola/utuputki/internal/logger"
)

// Source is where the loop pulls work from and reports results to.
type Source interface {
	// PopNextPlaylistItem claims the next playable item, or nil when the
	// playlist has nothing ready.
	PopNextPlaylistItem() *domain.HistoryItem
	// PlaylistItemFinished finalises a claimed item.
	PlaylistItemFinished(item *domain.HistoryItem, reason domain.FinishReason)
}

// Loop is the single playback consumer. It claims items one at a time, hands
// them to the renderer and sleeps on a condition variable until one of the
// wake-up events arrives: end of stream, a skip, new ready media while on
// standby, or shutdown.
type Loop struct {
	renderer Renderer
	source   Source
	cacheDir string
	log      *logger.Logger

	mu           sync.Mutex
	cond         *sync.Cond
	onStandby    bool
	skipped      bool
	mediaUpdated bool
	shutdown     atomic.Bool
}

type LoopOptions struct {
	Renderer Renderer
	Source   Source
	CacheDir string
	Logger   *logger.Logger
}

func NewLoop(opts LoopOptions) *Loop {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	l := &Loop{
		renderer: opts.Renderer,
		source:   opts.Source,
		cacheDir: opts.CacheDir,
		log:      log.WithComponent("player"),
	}
	l.cond = sync.NewCond(&l.mu)
	l.renderer.OnEndReached(l.endReached)
	return l
}

// Run drives playback until Shutdown. It is meant to occupy the caller's
// goroutine for the lifetime of the process.
func (l *Loop) Run() {
	l.log.Info("Player loop started")

	for !l.shutdown.Load() {
		item := l.source.PopNextPlaylistItem()

		l.mu.Lock()
		wait := true
		playFailed := false
		if item != nil {
			l.onStandby = false
			path := filepath.Join(l.cacheDir, item.Media.Filename)
			if err := l.renderer.Play(path); err != nil {
				l.log.Error("Playback failed", "path", path, "error", err)
				wait = false
				playFailed = true
			}
		} else {
			// A ready notification may have raced the dequeue; retry
			// instead of sleeping through it.
			if l.mediaUpdated {
				l.mediaUpdated = false
				l.mu.Unlock()
				continue
			}
			l.onStandby = true
			if err := l.renderer.PlayStandby(); err != nil {
				l.log.Error("Standby playback failed", "error", err)
				l.mu.Unlock()
				time.Sleep(time.Second)
				continue
			}
		}
		l.skipped = false
		if wait {
			l.cond.Wait()
		}
		skipped := l.skipped
		l.mu.Unlock()

		if item != nil {
			reason := domain.Completed
			switch {
			case playFailed:
				reason = domain.Unfinished
			case skipped:
				reason = domain.Skipped
			}
			l.source.PlaylistItemFinished(item, reason)
			if playFailed {
				// don't burn the playlist against a broken renderer
				time.Sleep(time.Second)
			}
		}
	}

	l.renderer.Stop()
	l.log.Info("Player loop stopped")
}

// SkipCurrent aborts the current playback and finalises the item as skipped.
func (l *Loop) SkipCurrent() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.skipped = true
	l.cond.Signal()
}

// NotifyMediaUpdate wakes the loop so it re-checks the playlist. Only a loop
// sitting on standby cares; ongoing playback keeps running. The flag is set
// unconditionally so a notification landing between a failed dequeue and the
// switch to standby is not lost.
func (l *Loop) NotifyMediaUpdate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mediaUpdated = true
	if l.onStandby {
		l.cond.Signal()
	}
}

// Shutdown makes Run return. The graceful form lets the current video play
// to its end first; the immediate form cuts it off.
func (l *Loop) Shutdown(immediate bool) {
	l.shutdown.Store(true)

	l.mu.Lock()
	defer l.mu.Unlock()
	if immediate || l.onStandby {
		l.cond.Signal()
	}
}

func (l *Loop) endReached() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cond.Signal()
}
