package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Audio    AudioConfig   `yaml:"audio"`
	VAD      VADConfig     `yaml:"vad"`
	Whisper  WhisperConfig `yaml:"whisper"`
	Output   OutputConfig  `yaml:"output"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Tray     TrayConfig    `yaml:"tray"`
}

type AudioConfig struct {
	Device          string `yaml:"device"` // "default" or an ID/name from -list-devices
	SampleRate      uint   `yaml:"sample_rate"`
	Channels        uint   `yaml:"channels"`
	FramesPerBuffer uint   `yaml:"frames_per_buffer"`
	Mode            string `yaml:"mode"` // "auto", "callback" or "blocking"
}

type VADConfig struct {
	TriggerDBFS   float64 `yaml:"trigger_dbfs"`
	TriggerFrames int     `yaml:"trigger_frames"`
	ReleaseFrames int     `yaml:"release_frames"`
}

type WhisperConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Model     string `yaml:"model"`      // "base.en", "small.en", etc.
	ModelPath string `yaml:"model_path"` // overrides Model when set
	Language  string `yaml:"language"`   // "auto", "en", etc.
	Threads   int    `yaml:"threads"`
	Download  bool   `yaml:"download"`
}

type OutputConfig struct {
	Clipboard   bool `yaml:"clipboard"` // copy each transcript to the clipboard
	Capitalize  bool `yaml:"capitalize"`
	AppendSpace bool `yaml:"append_space"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // e.g. ":9464"; empty disables the endpoint
}

type TrayConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Device:          "default",
			SampleRate:      16000,
			Channels:        1,
			FramesPerBuffer: 512,
			Mode:            "auto",
		},
		VAD: VADConfig{
			TriggerDBFS:   -35.0,
			TriggerFrames: 10,
			ReleaseFrames: 20,
		},
		Whisper: WhisperConfig{
			Enabled:  true,
			Model:    "base.en",
			Language: "auto",
			Threads:  0, // Auto-detect
			Download: true,
		},
		Output: OutputConfig{
			Capitalize: true,
		},
	}
}

// Load reads the config at path (or the platform default when path is
// empty), applies .env and EVA_* overrides and validates the result. A
// missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decode(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}

	applyEnv(cfg, os.Getenv)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates it.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	return nil
}

// applyEnv overlays EVA_* environment variables. getenv is injected so tests
// don't have to touch the process environment.
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("EVA_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("EVA_AUDIO_DEVICE"); v != "" {
		cfg.Audio.Device = v
	}
	if v := getenv("EVA_WHISPER_MODEL"); v != "" {
		cfg.Whisper.ModelPath = v
	}
}

var validModes = []string{"auto", "callback", "blocking"}

var validLevels = []string{"trace", "debug", "info", "warn", "error"}

// Validate checks that cfg is coherent and returns every problem found.
func Validate(cfg *Config) error {
	var errs []error

	if !contains(validLevels, strings.ToLower(cfg.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: %s", cfg.LogLevel, strings.Join(validLevels, ", ")))
	}
	if cfg.Audio.SampleRate == 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}
	if cfg.Audio.Channels == 0 {
		errs = append(errs, errors.New("audio.channels must be positive"))
	}
	if cfg.Audio.FramesPerBuffer == 0 {
		errs = append(errs, errors.New("audio.frames_per_buffer must be positive"))
	}
	if !contains(validModes, cfg.Audio.Mode) {
		errs = append(errs, fmt.Errorf("audio.mode %q is invalid; valid values: %s", cfg.Audio.Mode, strings.Join(validModes, ", ")))
	}
	if cfg.VAD.TriggerFrames <= 0 {
		errs = append(errs, errors.New("vad.trigger_frames must be positive"))
	}
	if cfg.VAD.ReleaseFrames < 0 {
		errs = append(errs, errors.New("vad.release_frames must not be negative"))
	}
	if cfg.VAD.TriggerDBFS > 0 {
		errs = append(errs, fmt.Errorf("vad.trigger_dbfs %.1f is above full scale", cfg.VAD.TriggerDBFS))
	}
	if cfg.Whisper.Enabled && cfg.Whisper.Model == "" && cfg.Whisper.ModelPath == "" {
		errs = append(errs, errors.New("whisper.model or whisper.model_path is required when whisper is enabled"))
	}
	if cfg.Whisper.Threads < 0 {
		errs = append(errs, errors.New("whisper.threads must not be negative"))
	}

	return errors.Join(errs...)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Update re-reads the file at path without .env or environment overrides,
// applies fn and writes it back to the same path. Runtime settings such as
// flag or EVA_* overrides never reach the file.
func Update(path string, fn func(*Config)) error {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	f, err := os.Open(path)
	switch {
	case err == nil:
		err = decode(f, cfg)
		f.Close()
		if err != nil {
			return fmt.Errorf("config: parse %q: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("config: open %q: %w", path, err)
	}

	fn(cfg)
	return cfg.Save(path)
}

// Save writes the config to path, or to the platform default when empty.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "eva", "config.yaml")
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, "eva", "models")
}
