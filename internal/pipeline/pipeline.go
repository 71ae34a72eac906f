package pipeline

import (
	"context"
	"time"

	"github.com/vheinola/utuputki/internal/config"
	"github.com/vheinola/utuputki/internal/domain"
	"github.com/vheinola/utuputki/internal/fetcher"
	"github.com/vheinola/utuputki/internal/logger"
)

// MediaUpdater persists a media snapshot. The id on the snapshot may be
// rewritten when the update merges the row into another one.
type MediaUpdater interface {
	UpdateMediaInfo(media *domain.Media) error
}

// MediaLister exposes the stored media rows for the startup recovery scan.
type MediaLister interface {
	GetAllMedia() ([]domain.Media, error)
}

// Pipeline runs the two fetch stages: a metadata worker that resolves URLs
// into descriptors and a download worker that pulls the actual files into
// the cache. Each stage consumes its own queue and persists every state
// transition through the updater, so a restart can resume where it left off.
type Pipeline struct {
	metadataQueue *queue
	downloadQueue *queue

	fetch   fetcher.Fetcher
	updater MediaUpdater
	store   MediaLister

	cacheDir       string
	maxLength      int
	maxMetadataAge time.Duration

	ctx      context.Context
	cancel   context.CancelFunc
	metaDone chan struct{}
	dlDone   chan struct{}
	log      *logger.Logger
}

type Options struct {
	Fetcher    fetcher.Fetcher
	Updater    MediaUpdater
	Store      MediaLister
	CacheDir   string
	Downloader config.Downloader
	Logger     *logger.Logger
}

func New(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	maxAge := time.Duration(opts.Downloader.MaxMetadataAge) * time.Second

	return &Pipeline{
		metadataQueue:  newQueue(),
		downloadQueue:  newQueue(),
		fetch:          opts.Fetcher,
		updater:        opts.Updater,
		store:          opts.Store,
		cacheDir:       opts.CacheDir,
		maxLength:      opts.Downloader.MaxLength,
		maxMetadataAge: maxAge,
		ctx:            ctx,
		cancel:         cancel,
		metaDone:       make(chan struct{}),
		dlDone:         make(chan struct{}),
		log:            log.WithComponent("pipeline"),
	}
}

// Start seeds both queues with whatever was left in flight when the process
// last exited, then launches the worker goroutines.
func (p *Pipeline) Start() error {
	all, err := p.store.GetAllMedia()
	if err != nil {
		return err
	}
	for _, media := range all {
		switch media.Status {
		case domain.MediaInitial:
			p.metadataQueue.Push(media)
		case domain.MediaDownloading:
			p.downloadQueue.Push(media)
		}
	}
	if n := p.metadataQueue.Len() + p.downloadQueue.Len(); n > 0 {
		p.log.Info("Resuming unfinished fetches", "count", n)
	}

	go p.runMetadata()
	go p.runDownload()

	return nil
}

// Stop shuts both workers down and waits for them to exit. With
// immediate=false the workers finish the items already queued, the
// download stage closing only once the metadata stage has drained into
// it; with immediate=true both stages bail out and in-flight fetcher
// calls are cancelled.
func (p *Pipeline) Stop(immediate bool) {
	if immediate {
		p.metadataQueue.Close(false)
		p.downloadQueue.Close(false)
		p.cancel()
		<-p.metaDone
		<-p.dlDone
		return
	}

	p.metadataQueue.Close(true)
	<-p.metaDone
	p.downloadQueue.Close(true)
	<-p.dlDone
	p.cancel()
}

// Enqueue hands a media row to the metadata stage.
func (p *Pipeline) Enqueue(media domain.Media) {
	p.metadataQueue.Push(media)
}
