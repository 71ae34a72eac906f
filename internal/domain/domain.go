// Package domain defines the data model shared by the store, the download
// pipeline, the player and the web layer. Everything here is a snapshot;
// the authoritative copy of every row lives in the store.
package domain

import (
	"time"
)

// MediaID, PlaylistItemID and HistoryItemID are three disjoint id spaces.
// Distinct types keep one from being used where another is expected.
type MediaID int64

type PlaylistItemID int64

type HistoryItemID int64

// MediaStatus is the persisted state of a media row. It progresses
// Initial -> Downloading -> Ready; Failed is a sink that only re-adding
// the URL leaves.
type MediaStatus int

const (
	MediaInitial MediaStatus = iota
	MediaDownloading
	MediaReady
	MediaFailed
)

func (s MediaStatus) String() string {
	switch s {
	case MediaInitial:
		return "initial"
	case MediaDownloading:
		return "downloading"
	case MediaReady:
		return "ready"
	case MediaFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FinishReason records how a playback attempt ended. Unfinished is the
// zero value while the item is still playing; it is persisted as NULL.
type FinishReason int

const (
	Unfinished FinishReason = iota
	Completed
	Skipped
)

func (r FinishReason) Finished() bool {
	return r != Unfinished
}

func (r FinishReason) String() string {
	switch r {
	case Unfinished:
		return "unfinished"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Media is one row per distinct canonicalised URL.
type Media struct {
	ID           MediaID     `json:"id"`
	Status       MediaStatus `json:"status"`
	URL          string      `json:"url"`
	Filename     string      `json:"filename"`
	Title        string      `json:"title"`
	Length       int         `json:"length"`   // whole seconds
	Filesize     int64       `json:"filesize"` // bytes
	Metadata     string      `json:"metadata"` // opaque blob from the fetcher
	MetadataTime time.Time   `json:"metadata_time"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// PlaylistItem is one queued playback request, joined with a snapshot of
// the media it references.
type PlaylistItem struct {
	ID        PlaylistItemID `json:"id"`
	QueueTime time.Time      `json:"queue_time"`
	Media     Media          `json:"media"`
}

// HistoryItem is one playback attempt. It is created when the playlist row
// is dequeued and finalised exactly once when playback ends.
type HistoryItem struct {
	ID          HistoryItemID `json:"id"`
	QueueTime   time.Time     `json:"queue_time"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Finish      FinishReason  `json:"finish"`
	SkipCount   int           `json:"skip_count"`
	SkipsNeeded int           `json:"skips_needed"`
	Media       Media         `json:"media"`
}

// TruncateToMicros drops sub-microsecond precision. The store persists
// timestamps as microseconds since the Unix epoch, so a value that has been
// written and re-read compares equal to the truncated original.
func TruncateToMicros(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.UnixMicro(t.UnixMicro()).UTC()
}
