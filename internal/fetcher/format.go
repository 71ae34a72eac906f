package fetcher

import (
	"fmt"
	"strings"

	"github.com/vheinola/utuputki/internal/config"
)

// BuildFormatSelector assembles the yt-dlp format selector from the
// configured caps. Zero values mean unlimited and add no clause.
func BuildFormatSelector(cfg config.Downloader) string {
	var b strings.Builder

	b.WriteString("bestvideo")
	if cfg.ExtensionWhitelist != "" {
		fmt.Fprintf(&b, "[ext=%s]", cfg.ExtensionWhitelist)
	}
	if cfg.VCodec != "" {
		fmt.Fprintf(&b, "[vcodec=%s]", cfg.VCodec)
	}
	if cfg.MaxFileSize != 0 {
		fmt.Fprintf(&b, "[filesize < %d]", cfg.MaxFileSize)
	}
	if cfg.MaxWidth != 0 {
		fmt.Fprintf(&b, "[width <=? %d]", cfg.MaxWidth)
	}
	if cfg.MaxHeight != 0 {
		fmt.Fprintf(&b, "[height <=? %d]", cfg.MaxHeight)
	}
	if cfg.MaxFPS != 0 {
		fmt.Fprintf(&b, "[fps <=? %d]", cfg.MaxFPS)
	}
	if cfg.MaxVideoBitrate != 0 {
		fmt.Fprintf(&b, "[vbr <=? %d]", cfg.MaxVideoBitrate)
	}

	b.WriteString("+bestaudio")
	if cfg.ExtensionWhitelist != "" {
		fmt.Fprintf(&b, "[ext=%s]", cfg.ExtensionWhitelist)
	}
	if cfg.MaxFileSize != 0 {
		fmt.Fprintf(&b, "[filesize < %d]", cfg.MaxFileSize)
	}
	if cfg.MaxAudioBitrate != 0 {
		fmt.Fprintf(&b, "[abr <=? %d]", cfg.MaxAudioBitrate)
	}

	b.WriteString("/best")

	return b.String()
}
