// Package config handles application configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	appName        = "speech2text"
	configFileName = "config.json"
)

// Engine names.
const (
	EngineWhisperCLI = "whisper-cli"
	EngineWhisper    = "whisper"
	EngineOpenAI     = "openai"
)

// SampleRate is the only supported capture rate.
const SampleRate = 16000

var (
	engines     = []string{EngineWhisperCLI, EngineWhisper, EngineOpenAI}
	modelSizes  = []string{"tiny", "base", "small", "medium", "large"}
	hotkeyModes = []string{"auto", "raw"}
	logLevels   = []string{"debug", "info", "warn", "error"}
)

// Config represents the application configuration.
type Config struct {
	Hotkey     string `json:"hotkey"`
	HotkeyMode string `json:"hotkey_mode"`

	Language string      `json:"language"`
	BeamSize int         `json:"beam_size"`
	Engine   string      `json:"engine"`
	Model    ModelConfig `json:"model"`
	OpenAI   OpenAI      `json:"openai"`
	VAD      VAD         `json:"vad"`

	SampleRate   int `json:"sample_rate"`
	PasteDelayMS int `json:"paste_delay_ms"`

	LockFile string `json:"lock_file"`
	PIDFile  string `json:"pid_file"`

	HeartbeatInterval Duration `json:"heartbeat_interval"`
	Notifications     bool     `json:"notifications"`

	LogLevel    string `json:"log_level"`
	LogFile     string `json:"log_file"`
	MetricsAddr string `json:"metrics_addr,omitempty"`
}

// ModelConfig locates the whisper model and CLI.
type ModelConfig struct {
	Size         string `json:"size"`
	Dir          string `json:"dir,omitempty"`
	Path         string `json:"path,omitempty"`
	BinPath      string `json:"bin_path,omitempty"`
	AutoDownload bool   `json:"auto_download"`
}

// OpenAI configures the remote transcription engine.
type OpenAI struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// VAD configures the voice-activity filter.
type VAD struct {
	Enabled   bool    `json:"enabled"`
	Threshold float32 `json:"threshold"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotkey:     "ctrl+shift+d",
		HotkeyMode: "auto",
		Language:   "de",
		BeamSize:   5,
		Engine:     EngineWhisperCLI,
		Model: ModelConfig{
			Size:         "small",
			AutoDownload: true,
		},
		VAD: VAD{
			Enabled:   true,
			Threshold: 0.01,
		},
		SampleRate:        SampleRate,
		PasteDelayMS:      100,
		LockFile:          "/tmp/speech2text.lock",
		PIDFile:           "/tmp/speech2text.pid",
		HeartbeatInterval: Duration(30 * time.Second),
		LogLevel:          "info",
		LogFile:           "/tmp/speech2text.log",
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, appName, configFileName), nil
}

// Load loads configuration from the default config file.
// Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, fmt.Errorf("get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path on top of the defaults, so keys
// missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save persists the configuration to the default location.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("get config path: %w", err)
	}
	return c.SaveFile(path)
}

// SaveFile persists the configuration to path.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// 0600: the file may carry an API key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(strings.TrimSpace(c.Hotkey) != "", "hotkey is required")
	check(slices.Contains(hotkeyModes, c.HotkeyMode), "hotkey_mode must be one of %v, got %q", hotkeyModes, c.HotkeyMode)
	check(c.Language != "", "language is required")
	check(c.BeamSize >= 1 && c.BeamSize <= 16, "beam_size must be in [1, 16], got %d", c.BeamSize)
	check(slices.Contains(engines, c.Engine), "engine must be one of %v, got %q", engines, c.Engine)
	check(c.Model.Path != "" || slices.Contains(modelSizes, c.Model.Size),
		"model.size must be one of %v, got %q", modelSizes, c.Model.Size)
	check(c.VAD.Threshold >= 0 && c.VAD.Threshold < 1, "vad.threshold must be in [0, 1), got %v", c.VAD.Threshold)
	check(c.SampleRate == SampleRate, "sample_rate must be %d, got %d", SampleRate, c.SampleRate)
	check(c.PasteDelayMS >= 0 && c.PasteDelayMS <= 5000, "paste_delay_ms must be in [0, 5000], got %d", c.PasteDelayMS)
	check(c.LockFile != "", "lock_file is required")
	check(c.PIDFile != "", "pid_file is required")
	check(c.LockFile != c.PIDFile, "lock_file and pid_file must differ")
	check(c.HeartbeatInterval > 0, "heartbeat_interval must be positive")
	check(slices.Contains(logLevels, strings.ToLower(c.LogLevel)), "log_level must be one of %v, got %q", logLevels, c.LogLevel)

	return errors.Join(errs...)
}

// PasteDelay returns the clipboard settle delay.
func (c *Config) PasteDelay() time.Duration {
	return time.Duration(c.PasteDelayMS) * time.Millisecond
}

// OpenAIKey returns the configured API key, falling back to OPENAI_API_KEY.
func (c *Config) OpenAIKey() string {
	if c.OpenAI.APIKey != "" {
		return c.OpenAI.APIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// Duration is a time.Duration encoded as a string like "30s" in JSON.
// Plain numbers are read as seconds.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}
