// Package config loads Kotonoha's settings. Precedence, lowest first:
// built-in defaults, the YAML config file, environment variables (and
// .env files), then command-line flags the user actually set.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Speech   SpeechConfig   `mapstructure:"speech"`
	Reminder ReminderConfig `mapstructure:"reminder"`
	Chatter  ChatterConfig  `mapstructure:"chatter"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Voicevox VoicevoxConfig `mapstructure:"voicevox"`
	GPT      GPTConfig      `mapstructure:"gpt"`
	Whisper  WhisperConfig  `mapstructure:"whisper"`
	Log      LogConfig      `mapstructure:"log"`
	UI       UIConfig       `mapstructure:"ui"`
}

// SpeechConfig drives the Mouth's monologue policy and the audio backend.
type SpeechConfig struct {
	MonologueCooldown time.Duration `mapstructure:"monologue_cooldown"`
	SuppressAfterUser time.Duration `mapstructure:"suppress_after_user"`
	Mock              bool          `mapstructure:"mock" env:"MOCK_TTS"`
}

// ReminderConfig drives the due-task scanner and the yes/no question.
type ReminderConfig struct {
	LookaheadDays  int           `mapstructure:"lookahead_days"`
	NotifyCooldown time.Duration `mapstructure:"notify_cooldown"`
	ScanInterval   time.Duration `mapstructure:"scan_interval"`
	AnswerTimeout  time.Duration `mapstructure:"answer_timeout"`
}

// ChatterConfig drives the periodic time announcement.
type ChatterConfig struct {
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`
}

// TasksConfig selects the task store.
type TasksConfig struct {
	File   string `mapstructure:"file" env:"TASK_FILE"`
	Memory bool   `mapstructure:"memory"`
}

// VoicevoxConfig points at the VOICEVOX engine.
type VoicevoxConfig struct {
	URL          string `mapstructure:"url" env:"VOICEVOX_URL"`
	Speaker      int    `mapstructure:"speaker" env:"VOICEVOX_SPEAKER"`
	CacheDir     string `mapstructure:"cache_dir"`
	CacheEntries int    `mapstructure:"cache_entries"`
}

// GPTConfig points at the chat-completions endpoint.
type GPTConfig struct {
	APIKey            string        `mapstructure:"api_key" env:"OPENAI_API_KEY"`
	Endpoint          string        `mapstructure:"endpoint" env:"OPENAI_ENDPOINT"`
	Model             string        `mapstructure:"model" env:"OPENAI_MODEL"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Mock              bool          `mapstructure:"mock" env:"MOCK_OPENAI"`
}

// WhisperConfig enables voice input.
type WhisperConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bin     string `mapstructure:"bin" env:"WHISPER_BIN"`
	Model   string `mapstructure:"model" env:"WHISPER_MODEL"`
}

// LogConfig controls where logs go and how much.
type LogConfig struct {
	File    string `mapstructure:"file"`
	Verbose bool   `mapstructure:"verbose"`
	Quiet   bool   `mapstructure:"quiet"`
}

// UIConfig selects the front end.
type UIConfig struct {
	Plain bool `mapstructure:"plain"`
}

// defaults is flattened into viper so every key exists before the file
// and flags are merged.
var defaults = map[string]any{
	"speech.monologue_cooldown":  3 * time.Minute,
	"speech.suppress_after_user": time.Minute,
	"speech.mock":                false,

	"reminder.lookahead_days":  1,
	"reminder.notify_cooldown": 30 * time.Minute,
	"reminder.scan_interval":   time.Minute,
	"reminder.answer_timeout":  15 * time.Minute,

	"chatter.announce_interval": 5 * time.Minute,

	"tasks.file":   "tasks.json",
	"tasks.memory": false,

	"voicevox.url":           "http://127.0.0.1:50021",
	"voicevox.speaker":       8,
	"voicevox.cache_dir":     ".kotonoha/cache",
	"voicevox.cache_entries": 256,

	"gpt.endpoint":            "https://api.openai.com/v1/chat/completions",
	"gpt.model":               "gpt-3.5-turbo",
	"gpt.requests_per_minute": 30,
	"gpt.timeout":             30 * time.Second,
	"gpt.mock":                false,

	"whisper.enabled": false,
	"whisper.bin":     "whisper-cli",
	"whisper.model":   "models/ggml-base.bin",

	"log.file":    ".kotonoha/kotonoha.log",
	"log.verbose": false,
	"log.quiet":   false,

	"ui.plain": false,
}

// Options tells Load where to look.
type Options struct {
	// File is an explicit config file. Empty searches for kotonoha.yaml
	// in the working directory and $HOME/.kotonoha; not finding one is
	// fine.
	File string
	// DotEnv lists .env files to load. Missing files are skipped.
	// Variables already set in the environment win.
	DotEnv []string
	// Flags holds command-line flags. Only flags the user changed and
	// that appear in FlagKeys override the config.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys.
	FlagKeys map[string]string
}

// Default returns the built-in configuration.
func Default() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	// Defaults are well-formed; decoding them cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load builds the configuration and validates it.
func Load(opts Options) (Config, error) {
	for _, path := range opts.DotEnv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", opts.File, err)
		}
	} else {
		v.SetConfigName("kotonoha")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.kotonoha")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("config: reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if err := applyFlags(&cfg, opts.Flags, opts.FlagKeys); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyFlags decodes the changed flags over cfg. Keys no flag touched are
// left as they are.
func applyFlags(cfg *Config, flags *pflag.FlagSet, keys map[string]string) error {
	if flags == nil || len(keys) == 0 {
		return nil
	}
	fv := viper.New()
	var bindErr error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := keys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = fv.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("config: binding flags: %w", bindErr)
	}
	if err := fv.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: decoding flags: %w", err)
	}
	return nil
}

// Validate rejects settings the rest of the program cannot run with.
func (c Config) Validate() error {
	durations := []struct {
		key string
		d   time.Duration
	}{
		{"speech.monologue_cooldown", c.Speech.MonologueCooldown},
		{"speech.suppress_after_user", c.Speech.SuppressAfterUser},
		{"reminder.notify_cooldown", c.Reminder.NotifyCooldown},
		{"reminder.answer_timeout", c.Reminder.AnswerTimeout},
		{"gpt.timeout", c.GPT.Timeout},
	}
	for _, d := range durations {
		if d.d < 0 {
			return fmt.Errorf("config: %s must not be negative, got %s", d.key, d.d)
		}
	}
	if c.Reminder.ScanInterval <= 0 {
		return fmt.Errorf("config: reminder.scan_interval must be positive, got %s", c.Reminder.ScanInterval)
	}
	if c.Chatter.AnnounceInterval <= 0 {
		return fmt.Errorf("config: chatter.announce_interval must be positive, got %s", c.Chatter.AnnounceInterval)
	}
	if c.Reminder.LookaheadDays < 0 {
		return fmt.Errorf("config: reminder.lookahead_days must not be negative, got %d", c.Reminder.LookaheadDays)
	}
	if c.Voicevox.Speaker < 0 {
		return fmt.Errorf("config: voicevox.speaker must not be negative, got %d", c.Voicevox.Speaker)
	}
	if c.GPT.RequestsPerMinute < 0 {
		return fmt.Errorf("config: gpt.requests_per_minute must not be negative, got %d", c.GPT.RequestsPerMinute)
	}
	if !c.GPT.Mock && c.GPT.APIKey == "" {
		return errors.New("config: OPENAI_API_KEY is not set (set it or enable mock mode with MOCK_OPENAI=1 or --mock-openai)")
	}
	if !c.Tasks.Memory && c.Tasks.File == "" {
		return errors.New("config: tasks.file must not be empty")
	}
	return nil
}
