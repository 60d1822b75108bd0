package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	EnvFileName = ".env"

	defaultListen                = ":8080"
	defaultShutdownTimeout       = 5 * time.Second
	defaultFFmpegPath            = "ffmpeg"
	defaultBitrateKbps           = 128
	defaultChunkSize             = 32 * 1024
	defaultBufferChunks          = 1
	defaultReferenceURL          = "https://speed.hetzner.de/100MB.bin"
	defaultResponseHeaderTimeout = 30 * time.Second
	defaultMaxConnsPerHost       = 200

	envPort       = "PORT"
	envListen     = "LISTEN"
	envRedisURL   = "REDIS_URL"
	envLogLevel   = "LOG_LEVEL"
	envFFmpegPath = "FFMPEG_PATH"
	envProbeURL   = "PROBE_URL"
)

var ErrBadConfig = errors.New("bad config")

type TransferConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	BufferChunks int `yaml:"buffer_chunks"`
	// Zero means transfers are not limited in time.
	MaxDuration time.Duration `yaml:"max_duration"`
}

type TranscodeConfig struct {
	FFmpegPath  string `yaml:"ffmpeg_path"`
	BitrateKbps int    `yaml:"bitrate_kbps"`
}

type ProbeConfig struct {
	ReferenceURL string `yaml:"reference_url"`
}

type UpstreamConfig struct {
	ResponseHeaderTimeout time.Duration `yaml:"response_header_timeout"`
	MaxConnsPerHost       int           `yaml:"max_conns_per_host"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type Config struct {
	Listen          string          `yaml:"listen"`
	LogLevel        string          `yaml:"log_level"`
	RedisURL        string          `yaml:"redis_url"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	Transfer        TransferConfig  `yaml:"transfer"`
	Transcode       TranscodeConfig `yaml:"transcode"`
	Probe           ProbeConfig     `yaml:"probe"`
	Upstream        UpstreamConfig  `yaml:"upstream"`
	CORS            CORSConfig      `yaml:"cors"`
}

func (c *Config) SetDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}

	if c.LogLevel == "" {
		c.LogLevel = LogLevelInfo
	}

	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}

	if c.Transfer.ChunkSize <= 0 {
		c.Transfer.ChunkSize = defaultChunkSize
	}

	if c.Transfer.BufferChunks <= 0 {
		c.Transfer.BufferChunks = defaultBufferChunks
	}

	if c.Transcode.FFmpegPath == "" {
		c.Transcode.FFmpegPath = defaultFFmpegPath
	}

	if c.Transcode.BitrateKbps <= 0 {
		c.Transcode.BitrateKbps = defaultBitrateKbps
	}

	if c.Probe.ReferenceURL == "" {
		c.Probe.ReferenceURL = defaultReferenceURL
	}

	if c.Upstream.ResponseHeaderTimeout <= 0 {
		c.Upstream.ResponseHeaderTimeout = defaultResponseHeaderTimeout
	}

	if c.Upstream.MaxConnsPerHost <= 0 {
		c.Upstream.MaxConnsPerHost = defaultMaxConnsPerHost
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"*"}
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrBadConfig, c.LogLevel)
	}

	if c.Transfer.MaxDuration < 0 {
		return fmt.Errorf("%w: negative transfer.max_duration", ErrBadConfig)
	}

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("%w: listen %q: %v", ErrBadConfig, c.Listen, err)
	}

	return nil
}

// applyEnv overrides file values with the process environment. LISTEN wins
// over PORT.
func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envListen); ok && v != "" {
		c.Listen = v
	} else if v, ok := os.LookupEnv(envPort); ok && v != "" {
		c.Listen = ":" + v
	}

	if v, ok := os.LookupEnv(envRedisURL); ok {
		c.RedisURL = v
	}

	if v, ok := os.LookupEnv(envLogLevel); ok && v != "" {
		c.LogLevel = strings.ToLower(v)
	}

	if v, ok := os.LookupEnv(envFFmpegPath); ok && v != "" {
		c.Transcode.FFmpegPath = v
	}

	if v, ok := os.LookupEnv(envProbeURL); ok && v != "" {
		c.Probe.ReferenceURL = v
	}
}

// Load reads the YAML file at path, applies environment overrides and
// defaults. A missing file is not an error.
func Load(fsys afero.Fs, path string) (*Config, error) {
	cfg := &Config{}

	content, err := afero.ReadFile(fsys, path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadEnv sets variables from a dotenv file without overriding ones that are
// already present in the environment.
func LoadEnv(fsys afero.Fs, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("cannot open env file %s: %w", path, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("cannot parse env file %s: %w", path, err)
	}

	for k, v := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}

		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("cannot set %s: %w", k, err)
		}
	}

	return nil
}

func MustLoad(path string) *Config {
	fsys := afero.NewOsFs()

	if err := LoadEnv(fsys, EnvFileName); err != nil {
		panic(err)
	}

	cfg, err := Load(fsys, path)
	if err != nil {
		panic(err)
	}

	return cfg
}
