// Utuputki is a shared jukebox: clients submit video URLs over HTTP, the
// server downloads them and plays them in order on the local output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vheinola/utuputki/internal/config"
	"github.com/vheinola/utuputki/internal/constants"
	"github.com/vheinola/utuputki/internal/fetcher"
	"github.com/vheinola/utuputki/internal/httpapp"
	"github.com/vheinola/utuputki/internal/jukebox"
	"github.com/vheinola/utuputki/internal/logger"
	"github.com/vheinola/utuputki/internal/pipeline"
	"github.com/vheinola/utuputki/internal/player"
	"github.com/vheinola/utuputki/internal/store"
)

func main() {
	configPath := flag.String("config", constants.DefaultConfigFile, "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	if cfg.Global.SetCoreUlimit {
		if err := raiseCoreLimit(); err != nil {
			log.Warn("Failed to raise core dump limit", "error", err)
		}
	}

	reExec, err := run(cfg, log)
	if err != nil {
		log.Error("Fatal error", "error", err)
		os.Exit(1)
	}
	if reExec {
		restart(log)
	}
}

func run(cfg *config.Config, log *logger.Logger) (bool, error) {
	cacheDir, err := pipeline.CheckDirectory(cfg.Downloader.CacheDir)
	if err != nil {
		return false, fmt.Errorf("cache directory: %w", err)
	}
	tempDir, err := pipeline.CheckDirectory(cfg.Downloader.TempDir)
	if err != nil {
		return false, fmt.Errorf("temp directory: %w", err)
	}
	cfg.Downloader.CacheDir = cacheDir
	cfg.Downloader.TempDir = tempDir

	db, err := store.New(store.Options{
		File:    cfg.Database.File,
		Reverse: cfg.Database.Reverse,
		Logger:  log,
	})
	if err != nil {
		return false, err
	}
	defer db.Close()

	fetch, err := fetcher.NewYTDLP(fetcher.YTDLPOptions{
		Downloader: cfg.Downloader,
		Logger:     log,
	})
	if err != nil {
		return false, err
	}

	renderer, err := player.NewVLCRenderer(player.VLCOptions{
		Player:  cfg.Player,
		TempDir: tempDir,
		Logger:  log,
	})
	if err != nil {
		return false, err
	}
	defer renderer.Close()

	jb := jukebox.New(jukebox.Options{
		DB:            db,
		ClientTimeout: cfg.ClientTimeout(),
		Logger:        log,
	})
	pipe := pipeline.New(pipeline.Options{
		Fetcher:    fetch,
		Updater:    jb,
		Store:      db,
		CacheDir:   cacheDir,
		Downloader: cfg.Downloader,
		Logger:     log,
	})
	loop := player.NewLoop(player.LoopOptions{
		Renderer: renderer,
		Source:   jb,
		CacheDir: cacheDir,
		Logger:   log,
	})
	jb.Bind(pipe, loop)

	if err := pipe.Start(); err != nil {
		return false, err
	}

	srv, err := httpapp.New(cfg.WebServer, jb, log)
	if err != nil {
		pipe.Stop(true)
		return false, err
	}
	srvErr := srv.Start()

	var srvFailed atomic.Bool
	go func() {
		if err, ok := <-srvErr; ok && err != nil {
			log.Error("Web server failed", "error", err)
			srvFailed.Store(true)
			loop.Shutdown(true)
		}
	}()

	state := watchSignals(log, loop, pipe)

	// Playback occupies the main goroutine until shutdown.
	loop.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Warn("Web server shutdown failed", "error", err)
	}

	pipe.Stop(state.immediate.Load())

	if srvFailed.Load() {
		return false, errors.New("web server failed")
	}
	return state.reExec.Load(), nil
}

type shutdownState struct {
	reExec    atomic.Bool
	immediate atomic.Bool
}

// watchSignals handles SIGINT/SIGTERM as shutdown and SIGHUP as shutdown
// followed by restart. The first signal is orderly: the current video plays
// to its end and the fetch queues drain. A second signal cuts everything off.
func watchSignals(log *logger.Logger, loop *player.Loop, pipe *pipeline.Pipeline) *shutdownState {
	state := &shutdownState{}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		count := 0
		for sig := range sigCh {
			immediate := count > 0
			count++

			if sig == syscall.SIGHUP {
				state.reExec.Store(true)
			}
			if immediate {
				state.immediate.Store(true)
				log.Info("Shutting down immediately", "signal", sig)
				pipe.Stop(true)
			} else {
				log.Info("Shutting down", "signal", sig)
			}
			loop.Shutdown(immediate)
		}
	}()

	return state
}

// restart replaces the process with a fresh copy of itself, keeping the
// arguments and environment. Used to pick up a new binary or config on
// SIGHUP without dropping the database.
func restart(log *logger.Logger) {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	log.Info("Restarting", "exe", exe)
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		log.Error("Restart failed", "error", err)
		os.Exit(1)
	}
}

// raiseCoreLimit lifts the soft core dump limit to the hard limit so crashes
// leave something to debug.
func raiseCoreLimit() error {
	var rl unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_CORE, &rl); err != nil {
		return fmt.Errorf("getrlimit: %w", err)
	}
	if rl.Max == 0 {
		return errors.New("hard core limit is 0")
	}
	rl.Cur = rl.Max
	if err := unix.Setrlimit(unix.RLIMIT_CORE, &rl); err != nil {
		return fmt.Errorf("setrlimit: %w", err)
	}
	return nil
}
