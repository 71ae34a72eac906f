package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vheinola/utuputki/internal/constants"
	"github.com/vheinola/utuputki/internal/domain"
	"github.com/vheinola/utuputki/internal/fetcher"
	"github.com/vheinola/utuputki/internal/logger"
)

func (p *Pipeline) runDownload() {
	defer close(p.dlDone)

	p.log.Info("Download worker started")
	for {
		media, ok := p.downloadQueue.Pop()
		if !ok {
			break
		}
		p.downloadMedia(&media)

		if err := p.updater.UpdateMediaInfo(&media); err != nil {
			p.log.Error("Failed to update media", "media_id", media.ID, "error", err)
		}
	}
	p.log.Info("Download worker stopped")
}

func (p *Pipeline) downloadMedia(media *domain.Media) {
	log := p.log.WithMedia(int64(media.ID), media.URL)

	desc := &fetcher.Descriptor{
		URL:      media.URL,
		Filename: media.Filename,
		Title:    media.Title,
		Duration: media.Length,
		Raw:      media.Metadata,
	}

	// Stored metadata goes stale because the signed stream URLs inside it
	// expire. Resolve the page again rather than downloading with dead links.
	if time.Since(media.MetadataTime) > p.maxMetadataAge {
		log.Info("Metadata expired, fetching again")
		fresh, err := p.fetch.ExtractInfo(p.ctx, media.URL)
		if err != nil {
			log.Warn("Metadata fetch failed", "error", err)
			media.Status = domain.MediaFailed
			media.ErrorMessage = err.Error()
			return
		}
		media.URL = fresh.URL
		media.Filename = fresh.Filename
		media.Title = fresh.Title
		media.Length = fresh.Duration
		media.Filesize = fresh.Filesize
		media.Metadata = fresh.Raw
		media.MetadataTime = domain.TruncateToMicros(time.Now())
		desc = fresh
	}

	finalPath := filepath.Join(p.cacheDir, media.Filename)
	log.Info("Downloading media", "dest", finalPath)

	if err := p.fetch.Download(p.ctx, media.URL, desc, finalPath); err != nil {
		log.Warn("Download failed", "error", err)
		media.Status = domain.MediaFailed
		media.ErrorMessage = err.Error()
		return
	}

	if stat, err := os.Stat(finalPath); err == nil {
		media.Filesize = stat.Size()
		media.Status = domain.MediaReady
		log.Info("Media ready", "filesize", media.Filesize)
		return
	}

	// The file is not where the metadata said it would be. When the fetcher
	// merges separate audio and video streams it remuxes into mkv, so look
	// for the same name with that extension before giving up.
	p.fixFilename(media, log)
}

func (p *Pipeline) fixFilename(media *domain.Media, log *logger.Logger) {
	ext := filepath.Ext(media.Filename)
	if ext == "" {
		media.Status = domain.MediaFailed
		media.ErrorMessage = "File does not exist after download, filename has no extension"
		log.Warn("Download produced no file", "filename", media.Filename)
		return
	}

	fixed := strings.TrimSuffix(media.Filename, ext) + constants.MkvExtension
	stat, err := os.Stat(filepath.Join(p.cacheDir, fixed))
	if err != nil {
		media.Status = domain.MediaFailed
		media.ErrorMessage = "File does not exist after download, unable to fix filename"
		log.Warn("Download produced no file", "filename", media.Filename)
		return
	}

	log.Info("Fixed filename after remux", "old", media.Filename, "new", fixed)
	media.Filename = fixed
	media.Filesize = stat.Size()
	media.Status = domain.MediaReady
}
