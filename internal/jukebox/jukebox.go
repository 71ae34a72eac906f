// Package jukebox is the coordinator: it owns the now-playing slot, the
// skip votes and the active client set, and routes work between the store,
// the fetch pipeline and the player.
package jukebox

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/vheinola/utuputki/internal/domain"
	"github.com/vheinola/utuputki/internal/logger"
	"github.com/vheinola/utuputki/internal/store"
)

// ErrBadHost marks submissions whose URL is not on the accepted host list.
// The web layer turns it into a client error instead of a server error.
var ErrBadHost = errors.New("url host is not allowed")

// acceptedHosts is the set of hosts a submitted URL may point at.
var acceptedHosts = map[string]struct{}{
	"youtube.com":     {},
	"www.youtube.com": {},
	"m.youtube.com":   {},
	"youtu.be":        {},
}

// MetadataEnqueuer hands new media to the fetch pipeline.
type MetadataEnqueuer interface {
	Enqueue(media domain.Media)
}

// PlayerControl is the back-edge to the playback loop.
type PlayerControl interface {
	NotifyMediaUpdate()
	SkipCurrent()
}

type Jukebox struct {
	db       *store.DB
	pipeline MetadataEnqueuer
	player   PlayerControl
	notifier Notifier
	log      *logger.Logger

	clientTimeout time.Duration

	mu              sync.Mutex
	nowPlaying      *domain.HistoryItem
	skips           map[string]struct{}
	clients         map[string]time.Time
	nextClientPrune time.Time
}

type Options struct {
	DB            *store.DB
	Notifier      Notifier
	ClientTimeout time.Duration
	Logger        *logger.Logger
}

func New(opts Options) *Jukebox {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &Jukebox{
		db:            opts.DB,
		notifier:      notifier,
		log:           log.WithComponent("jukebox"),
		clientTimeout: opts.ClientTimeout,
		skips:         make(map[string]struct{}),
		clients:       make(map[string]time.Time),
	}
}

// Bind wires the pipeline and player back-edges. Must be called before any
// request is served; the coordinator is constructed first because both sides
// need a reference to it.
func (j *Jukebox) Bind(pipeline MetadataEnqueuer, player PlayerControl) {
	j.pipeline = pipeline
	j.player = player
}

// CanonicalizeURL normalises a submitted URL: the scheme is forced to https
// and the host must be on the accepted list.
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadHost, err)
	}
	u.Scheme = "https"

	if _, ok := acceptedHosts[strings.ToLower(u.Host)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrBadHost, u.Host)
	}
	return u.String(), nil
}

// AddMedia accepts a URL submission: it canonicalises the URL, creates or
// revives the media row, hands it to the pipeline when a fetch is needed and
// puts it on the playlist. Resubmitting a known URL is how users retry a
// failed download.
func (j *Jukebox) AddMedia(rawURL string) (domain.Media, error) {
	canonical, err := CanonicalizeURL(rawURL)
	if err != nil {
		return domain.Media{}, err
	}

	media, err := j.db.GetOrAddMediaByURL(canonical)
	if err != nil {
		return domain.Media{}, err
	}

	switch media.Status {
	case domain.MediaInitial:
		j.log.Info("Queueing media for fetch", "media_id", media.ID, "url", media.URL)
		j.pipeline.Enqueue(media)
	case domain.MediaFailed:
		j.log.Info("Retrying failed media", "media_id", media.ID, "url", media.URL)
		media.Status = domain.MediaInitial
		media.ErrorMessage = ""
		if err := j.db.UpdateMediaInfo(&media); err != nil {
			return domain.Media{}, err
		}
		j.pipeline.Enqueue(media)
	case domain.MediaDownloading:
		// a fetch is already in flight
	case domain.MediaReady:
		// nothing to fetch
	}

	j.notifier.NotifyAddedToPlaylist(media)
	if err := j.db.AddToPlaylist(media.ID); err != nil {
		return domain.Media{}, err
	}

	return media, nil
}

// UpdateMediaInfo persists a pipeline state transition and wakes the player
// when the media became playable.
func (j *Jukebox) UpdateMediaInfo(media *domain.Media) error {
	if err := j.db.UpdateMediaInfo(media); err != nil {
		return err
	}
	if media.Status == domain.MediaReady {
		j.player.NotifyMediaUpdate()
	}
	return nil
}

// SkipVideo registers a skip vote from a client. Votes only count against
// the item playing right now, each client counts once, and reaching the
// threshold aborts playback.
func (j *Jukebox) SkipVideo(mediaID domain.MediaID, client string) {
	needed := j.NeededSkips()

	j.mu.Lock()
	if j.nowPlaying == nil || j.nowPlaying.Media.ID != mediaID {
		j.mu.Unlock()
		return
	}
	j.skips[client] = struct{}{}
	votes := len(j.skips)
	j.nowPlaying.SkipCount = votes
	j.nowPlaying.SkipsNeeded = needed
	j.mu.Unlock()

	j.log.Info("Skip requested", "media_id", mediaID, "client", client,
		"votes", votes, "needed", needed)

	if votes >= needed {
		j.player.SkipCurrent()
	}
}

// PopNextPlaylistItem claims the next ready item for playback and fills the
// now-playing slot.
func (j *Jukebox) PopNextPlaylistItem() *domain.HistoryItem {
	item := j.db.PopNextPlaylistItem()

	j.mu.Lock()
	j.nowPlaying = item
	j.skips = make(map[string]struct{})
	j.mu.Unlock()

	if item != nil {
		j.log.Info("Now playing", "media_id", item.Media.ID, "title", item.Media.Title)
		j.notifier.NotifyNowPlaying(*item)
	}
	return item
}

// PlaylistItemFinished finalises a played item with its reason and the skip
// tally it ended with, then clears the now-playing slot.
func (j *Jukebox) PlaylistItemFinished(item *domain.HistoryItem, reason domain.FinishReason) {
	needed := j.NeededSkips()

	j.mu.Lock()
	votes := len(j.skips)
	j.nowPlaying = nil
	j.skips = make(map[string]struct{})
	j.mu.Unlock()

	item.Finish = reason
	item.SkipCount = votes
	item.SkipsNeeded = needed
	item.EndTime = domain.TruncateToMicros(time.Now())

	j.log.Info("Finished playing", "media_id", item.Media.ID, "reason", reason.String())
	if err := j.db.PlaylistItemFinished(item); err != nil {
		j.log.Error("Failed to finalise history item", "history_id", item.ID, "error", err)
	}
	j.notifier.NotifyPlaylistItemFinished(*item)
}

// GetNowPlaying returns a snapshot of the current item with a live skip
// tally, or nil when the player is on standby.
func (j *Jukebox) GetNowPlaying() *domain.HistoryItem {
	needed := j.NeededSkips()

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.nowPlaying == nil {
		return nil
	}
	snapshot := *j.nowPlaying
	snapshot.SkipCount = len(j.skips)
	snapshot.SkipsNeeded = needed
	return &snapshot
}

func (j *Jukebox) GetPlaylist() ([]domain.PlaylistItem, error) {
	return j.db.GetPlaylist()
}

func (j *Jukebox) GetHistory() ([]domain.HistoryItem, error) {
	return j.db.GetHistory()
}

func (j *Jukebox) GetAllMedia() ([]domain.Media, error) {
	return j.db.GetAllMedia()
}

func (j *Jukebox) GetMediaInfo(id domain.MediaID) (domain.Media, error) {
	return j.db.GetMediaInfo(id)
}
