package pipeline

import (
	"fmt"
	"time"

	"github.com/vheinola/utuputki/internal/domain"
)

func (p *Pipeline) runMetadata() {
	defer close(p.metaDone)

	p.log.Info("Metadata worker started")
	for {
		media, ok := p.metadataQueue.Pop()
		if !ok {
			break
		}
		p.resolveMetadata(&media)

		if err := p.updater.UpdateMediaInfo(&media); err != nil {
			p.log.Error("Failed to update media", "media_id", media.ID, "error", err)
			continue
		}
		if media.Status == domain.MediaDownloading {
			p.downloadQueue.Push(media)
		}
	}
	p.log.Info("Metadata worker stopped")
}

// resolveMetadata fills the media row from the fetcher and decides its next
// state: Downloading on success, Failed on fetch errors or when the video
// exceeds the configured length cap.
func (p *Pipeline) resolveMetadata(media *domain.Media) {
	log := p.log.WithMedia(int64(media.ID), media.URL)
	log.Info("Fetching metadata")

	desc, err := p.fetch.ExtractInfo(p.ctx, media.URL)
	if err != nil {
		log.Warn("Metadata fetch failed", "error", err)
		media.Status = domain.MediaFailed
		media.ErrorMessage = err.Error()
		return
	}

	media.URL = desc.URL
	media.Filename = desc.Filename
	media.Title = desc.Title
	media.Length = desc.Duration
	media.Filesize = desc.Filesize
	media.Metadata = desc.Raw
	media.MetadataTime = domain.TruncateToMicros(time.Now())

	if p.maxLength > 0 && media.Length > p.maxLength {
		media.Status = domain.MediaFailed
		media.ErrorMessage = fmt.Sprintf("Too long (%d > %d)", media.Length, p.maxLength)
		log.Info("Rejecting media", "reason", media.ErrorMessage)
		return
	}

	media.Status = domain.MediaDownloading
	log.Info("Metadata resolved", "title", media.Title, "length", media.Length)
}
