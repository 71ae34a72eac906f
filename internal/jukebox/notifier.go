package jukebox

import "github.com/vheinola/utuputki/internal/domain"

// Notifier receives playlist lifecycle events. Implementations must not
// block; the coordinator calls them from its own goroutines.
type Notifier interface {
	NotifyAddedToPlaylist(media domain.Media)
	NotifyNowPlaying(item domain.HistoryItem)
	NotifyPlaylistItemFinished(item domain.HistoryItem)
}

// NopNotifier ignores every event.
type NopNotifier struct{}

func (NopNotifier) NotifyAddedToPlaylist(domain.Media) {}

func (NopNotifier) NotifyNowPlaying(domain.HistoryItem) {}

func (NopNotifier) NotifyPlaylistItemFinished(domain.HistoryItem) {}
