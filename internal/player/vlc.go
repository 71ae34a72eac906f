package player

import (
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/vheinola/utuputki/internal/config"
	"github.com/vheinola/utuputki/internal/logger"
)

// VLCRenderer plays files by spawning cvlc. One process runs at a time;
// starting a new one kills the previous.
type VLCRenderer struct {
	mu          sync.Mutex
	binary      string
	baseArgs    []string
	standbyPath string
	onEnd       func()
	current     *vlcSession
	log         *logger.Logger
}

type vlcSession struct {
	cmd    *exec.Cmd
	killed bool
}

type VLCOptions struct {
	// Binary overrides the player executable name, mainly for tests.
	Binary  string
	Player  config.Player
	TempDir string
	Logger  *logger.Logger
}

func NewVLCRenderer(opts VLCOptions) (*VLCRenderer, error) {
	binary := opts.Binary
	if binary == "" {
		binary = "cvlc"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("no %s installed: %w", binary, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	args := []string{
		"--no-video-title-show",
		"--verbose", vlcVerbosity(opts.Player.VLCLogLevel),
	}
	if opts.Player.Fullscreen {
		args = append(args, "--fullscreen")
	}
	if opts.Player.NormalizeVolume {
		args = append(args, "--audio-filter", "normvol")
	}
	if opts.Player.AudioDevice != "" {
		args = append(args, "--alsa-audio-device", opts.Player.AudioDevice)
	}

	standby, err := writeStandbyImage(opts.TempDir)
	if err != nil {
		return nil, err
	}

	return &VLCRenderer{
		binary:      path,
		baseArgs:    args,
		standbyPath: standby,
		log:         log.WithComponent("player"),
	}, nil
}

func vlcVerbosity(level string) string {
	switch level {
	case "debug":
		return "2"
	case "warning":
		return "1"
	default:
		return "0"
	}
}

func writeStandbyImage(tempDir string) (string, error) {
	f, err := os.CreateTemp(tempDir, "utuputki-standby-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create standby image: %w", err)
	}
	if _, err := f.Write(standbyPNG); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write standby image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write standby image: %w", err)
	}
	return f.Name(), nil
}

func (r *VLCRenderer) OnEndReached(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = fn
}

func (r *VLCRenderer) Play(path string) error {
	r.log.Info("Playing", "path", path)
	return r.spawn([]string{"--play-and-exit", path}, true)
}

func (r *VLCRenderer) PlayStandby() error {
	r.log.Debug("Showing standby image")
	return r.spawn([]string{"--loop", "--image-duration", "-1", r.standbyPath}, false)
}

// spawn replaces the current session with a new player process. When notify
// is set, the process exiting on its own fires the end-reached callback.
func (r *VLCRenderer) spawn(extra []string, notify bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()

	args := append(append([]string{}, r.baseArgs...), extra...)
	cmd := exec.Command(r.binary, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.binary, err)
	}

	s := &vlcSession{cmd: cmd}
	r.current = s
	go r.reap(s, notify)

	return nil
}

func (r *VLCRenderer) reap(s *vlcSession, notify bool) {
	err := s.cmd.Wait()

	r.mu.Lock()
	if r.current != s {
		r.mu.Unlock()
		return
	}
	r.current = nil
	killed := s.killed
	onEnd := r.onEnd
	r.mu.Unlock()

	if err != nil && !killed {
		r.log.Warn("Player process exited abnormally", "error", err)
	}
	if notify && !killed && onEnd != nil {
		onEnd()
	}
}

func (r *VLCRenderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

func (r *VLCRenderer) stopLocked() {
	if r.current == nil {
		return
	}
	r.current.killed = true
	if err := r.current.cmd.Process.Kill(); err != nil {
		r.log.Warn("Failed to kill player process", "error", err)
	}
	r.current = nil
}

// Close stops playback and removes the standby image from the temp dir.
func (r *VLCRenderer) Close() {
	r.Stop()
	if err := os.Remove(r.standbyPath); err != nil {
		r.log.Warn("Failed to remove standby image", "error", err)
	}
}
