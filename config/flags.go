package config

import (
	"flag"
	"slices"
)

// Flags holds command line overrides. Only flags given on the command line
// are applied.
type Flags struct {
	ConfigPath  string
	Language    string
	Model       string
	Engine      string
	Hotkey      string
	LockFile    string
	PIDFile     string
	LogLevel    string
	MetricsAddr string
	Version     bool
	Stop        bool
	WriteConfig bool

	fs *flag.FlagSet
}

// RegisterFlags defines the command line flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "path to config file (default: user config dir)")
	fs.StringVar(&f.Language, "lang", "", "recognition language (default \"de\")")
	fs.StringVar(&f.Model, "model", "", "model size (tiny, base, small, medium, large) or path to a ggml model file")
	fs.StringVar(&f.Engine, "engine", "", "speech engine: whisper-cli, whisper, openai")
	fs.StringVar(&f.Hotkey, "hotkey", "", "toggle chord, e.g. ctrl+shift+d")
	fs.StringVar(&f.LockFile, "lock-file", "", "instance lock file")
	fs.StringVar(&f.PIDFile, "pid-file", "", "pid file")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	fs.BoolVar(&f.Version, "version", false, "print version and exit")
	fs.BoolVar(&f.Stop, "stop", false, "stop the running instance and exit")
	fs.BoolVar(&f.WriteConfig, "write-config", false, "write the effective config file and exit")
	return f
}

// Apply copies the explicitly set flags into cfg.
func (f *Flags) Apply(cfg *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "lang":
			cfg.Language = f.Language
		case "model":
			if isModelSize(f.Model) {
				cfg.Model.Size = f.Model
				cfg.Model.Path = ""
			} else {
				cfg.Model.Path = f.Model
			}
		case "engine":
			cfg.Engine = f.Engine
		case "hotkey":
			cfg.Hotkey = f.Hotkey
		case "lock-file":
			cfg.LockFile = f.LockFile
		case "pid-file":
			cfg.PIDFile = f.PIDFile
		case "log-level":
			cfg.LogLevel = f.LogLevel
		case "metrics-addr":
			cfg.MetricsAddr = f.MetricsAddr
		}
	})
}

func isModelSize(s string) bool {
	return slices.Contains(modelSizes, s)
}
