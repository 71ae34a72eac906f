package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/vheinola/utuputki/internal/config"
	"github.com/vheinola/utuputki/internal/logger"
)

// YTDLP wraps the yt-dlp command-line tool. A single mutex serialises all
// invocations; yt-dlp's cache directory handling is not safe to share
// between concurrent runs.
type YTDLP struct {
	mu      sync.Mutex
	binary  string
	format  string
	tempDir string
	verbose bool
	log     *logger.Logger
}

type YTDLPOptions struct {
	// Binary overrides the yt-dlp executable name, mainly for tests.
	Binary     string
	Downloader config.Downloader
	Logger     *logger.Logger
}

func NewYTDLP(opts YTDLPOptions) (*YTDLP, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("no %s installed: %w", binary, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("fetcher")

	f := &YTDLP{
		binary:  path,
		format:  BuildFormatSelector(opts.Downloader),
		tempDir: opts.Downloader.TempDir,
		verbose: opts.Downloader.Verbose,
		log:     log,
	}
	f.log.Debug("yt-dlp format selector", "format", f.format)

	return f, nil
}

// ytdlpInfo is the subset of yt-dlp's JSON output the pipeline needs. The
// full blob is persisted verbatim on the media row.
type ytdlpInfo struct {
	ID             string  `json:"id"`
	Ext            string  `json:"ext"`
	WebpageURL     string  `json:"webpage_url"`
	Title          string  `json:"title"`
	Duration       float64 `json:"duration"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

func (f *YTDLP) ExtractInfo(ctx context.Context, url string) (*Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	args := []string{
		"--dump-single-json",
		"--no-playlist",
		"--format", f.format,
		"--cache-dir", f.tempDir,
	}
	if f.verbose {
		args = append(args, "--verbose")
	}
	args = append(args, url)

	f.log.Debug("Extracting info", "url", url)

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp extract failed: %w: %s", err, lastLine(stderr.Bytes()))
	}

	raw := stdout.Bytes()
	var info ytdlpInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if info.ID == "" || info.Ext == "" {
		return nil, fmt.Errorf("yt-dlp output missing id or ext for %s", url)
	}

	filesize := info.Filesize
	if filesize == 0 {
		filesize = info.FilesizeApprox
	}

	return &Descriptor{
		URL: info.WebpageURL,
		// matches the output template used for downloads
		Filename: info.ID + "." + info.Ext,
		Title:    info.Title,
		Duration: int(info.Duration),
		Filesize: filesize,
		Raw:      string(raw),
	}, nil
}

func (f *YTDLP) Download(ctx context.Context, url string, desc *Descriptor, destPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Give every download its own scratch directory so partial files and
	// info JSON never collide.
	workDir := filepath.Join(f.tempDir, "utuputki-"+uuid.New().String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{
		"--no-playlist",
		"--format", f.format,
		"--cache-dir", f.tempDir,
		"--paths", "temp:" + workDir,
		"--output", destPath,
	}
	if desc != nil && desc.Raw != "" {
		// Reuse the stored metadata instead of resolving the URL again.
		infoPath := filepath.Join(workDir, "info.json")
		if err := os.WriteFile(infoPath, []byte(desc.Raw), 0o644); err != nil {
			return fmt.Errorf("failed to write info json: %w", err)
		}
		args = append(args, "--load-info-json", infoPath)
	} else {
		args = append(args, url)
	}
	if f.verbose {
		args = append(args, "--verbose")
	}

	f.log.Info("Downloading", "url", url, "dest", destPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp download failed: %w: %s", err, lastLine(stderr.Bytes()))
	}

	return nil
}

// lastLine extracts the final non-empty stderr line, which is where yt-dlp
// puts its actual error.
func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
