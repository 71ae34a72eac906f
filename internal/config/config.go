// Package config loads the application configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/vheinola/utuputki/internal/constants"
)

// Config holds all application configuration, grouped the way the config
// file is sectioned.
type Config struct {
	Database   Database   `toml:"database"`
	Downloader Downloader `toml:"downloader"`
	Player     Player     `toml:"player"`
	WebServer  WebServer  `toml:"webserver"`
	Global     Global     `toml:"global"`
	Log        Log        `toml:"log"`
}

type Database struct {
	File string `toml:"file"`
	// Reverse enables PRAGMA reverse_unordered_selects, a debug aid that
	// flushes out accidental reliance on unordered select order.
	Reverse bool `toml:"reverse"`
}

type Downloader struct {
	MaxLength          int    `toml:"maxlength"`   // seconds, 0 = unlimited
	MaxFileSize        int64  `toml:"maxfilesize"` // bytes, 0 = unlimited
	MaxWidth           int    `toml:"maxwidth"`
	MaxHeight          int    `toml:"maxheight"`
	MaxFPS             int    `toml:"maxfps"`
	MaxAudioBitrate    int    `toml:"maxaudiobitrate"`
	MaxVideoBitrate    int    `toml:"maxvideobitrate"`
	ExtensionWhitelist string `toml:"extensionWhitelist"`
	VCodec             string `toml:"vcodec"`
	CacheDir           string `toml:"cacheDir"`
	TempDir            string `toml:"tempDir"`
	MaxMetadataAge     int    `toml:"maxmetadataage"` // seconds
	Verbose            bool   `toml:"verbose"`
}

type Player struct {
	Fullscreen      bool   `toml:"fullscreen"`
	NormalizeVolume bool   `toml:"normalizeVolume"`
	AudioDevice     string `toml:"audioDevice"`
	VLCLogLevel     string `toml:"vlcLogLevel"`
}

type WebServer struct {
	Port int `toml:"port"`
	// NumThreads, WebsocketPingPong and WebSocketTimeoutMS are accepted for
	// config-file compatibility; the Go server pools a goroutine per
	// connection and no websocket push is implemented.
	NumThreads           int      `toml:"numThreads"`
	ACL                  string   `toml:"acl"`
	KeepAlive            bool     `toml:"keepAlive"`
	KeepAliveTimeoutMS   int      `toml:"keepAliveTimeoutMS"`
	WebsocketPingPong    bool     `toml:"websocketPingPong"`
	WebSocketTimeoutMS   int      `toml:"webSocketTimeoutMS"`
	ClientTimeoutSeconds int      `toml:"clientTimeoutSeconds"`
	Forwarders           []string `toml:"forwarders"`
	Debug                bool     `toml:"debug"`
}

type Global struct {
	SetCoreUlimit bool `toml:"setcoreulimit"`
}

type Log struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text, json
}

// Default returns the configuration used when keys are absent from the file.
func Default() *Config {
	return &Config{
		Database: Database{
			File: constants.DefaultDBFile,
		},
		Downloader: Downloader{
			CacheDir:       constants.DefaultCacheDir,
			TempDir:        constants.DefaultTempDir,
			MaxMetadataAge: int(constants.DefaultMetadataMaxAge / time.Second),
		},
		Player: Player{
			Fullscreen:      true,
			NormalizeVolume: true,
			VLCLogLevel:     constants.DefaultVLCLogLevel,
		},
		WebServer: WebServer{
			Port:                 constants.DefaultPort,
			NumThreads:           50,
			KeepAlive:            true,
			ClientTimeoutSeconds: int(constants.DefaultClientTimeout / time.Second),
		},
		Global: Global{
			SetCoreUlimit: true,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the TOML config at path on top of the defaults. A missing file
// is not an error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Database.File == "" {
		errors = append(errors, "database.file cannot be empty")
	}

	if c.Downloader.CacheDir == "" {
		errors = append(errors, "downloader.cacheDir cannot be empty")
	}
	if c.Downloader.TempDir == "" {
		errors = append(errors, "downloader.tempDir cannot be empty")
	}
	if c.Downloader.MaxLength < 0 {
		errors = append(errors, fmt.Sprintf("downloader.maxlength must not be negative, got: %d", c.Downloader.MaxLength))
	}
	if c.Downloader.MaxMetadataAge < 0 {
		errors = append(errors, fmt.Sprintf("downloader.maxmetadataage must not be negative, got: %d", c.Downloader.MaxMetadataAge))
	}

	if c.WebServer.Port < 1 || c.WebServer.Port > 65535 {
		errors = append(errors, fmt.Sprintf("webserver.port must be between 1 and 65535, got: %d", c.WebServer.Port))
	}
	if c.WebServer.ClientTimeoutSeconds <= 0 {
		errors = append(errors, fmt.Sprintf("webserver.clientTimeoutSeconds must be positive, got: %d", c.WebServer.ClientTimeoutSeconds))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		errors = append(errors, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got: %s", c.Log.Level))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Log.Format] {
		errors = append(errors, fmt.Sprintf("log.format must be one of: text, json, got: %s", c.Log.Format))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// ClientTimeout is webserver.clientTimeoutSeconds as a duration.
func (c *Config) ClientTimeout() time.Duration {
	return time.Duration(c.WebServer.ClientTimeoutSeconds) * time.Second
}

// MetadataMaxAge is downloader.maxmetadataage as a duration.
func (c *Config) MetadataMaxAge() time.Duration {
	return time.Duration(c.Downloader.MaxMetadataAge) * time.Second
}
