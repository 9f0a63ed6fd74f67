// Package config loads the grading core's configuration bundle. This
// replaces the teacher's DefraDB-seeded, dynamically-mutable config store
// with a single static Config struct, per the Design Notes instruction to
// restate "global configuration read at import time" as an explicit
// bundle passed into the core on construction — there is no
// package-level config global anywhere in this module; Manager.Get
// returns a value the caller must thread through explicitly.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the full keyed configuration bundle recognized by the core,
// per spec.md §6.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	VLM     VLMConfig     `mapstructure:"vlm"`
	OCR     OCRConfig     `mapstructure:"ocr"`
	Image   ImageConfig   `mapstructure:"image"`
	Merge   MergeConfig   `mapstructure:"merge"`
	Match   MatchConfig   `mapstructure:"match"`
	UUID    UUIDConfig    `mapstructure:"uuid"`
	Debug   DebugConfig   `mapstructure:"debug"`
}

// LLMConfig holds the freeform VLM prompt, loaded as a sequence of lines
// so operators may adjust it without code changes (spec.md §6).
type LLMConfig struct {
	FreeformPrompt []string `mapstructure:"freeform_prompt"`
}

// VLMConfig configures the vision-language model client.
type VLMConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	MaxTokensRetry int    `mapstructure:"max_tokens_retry"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OCRConfig configures the printed/handwriting OCR client.
type OCRConfig struct {
	Endpoint          string         `mapstructure:"endpoint"`
	APIKey            string         `mapstructure:"api_key"`
	SecretKey         string         `mapstructure:"secret_key"`
	Params            map[string]any `mapstructure:"params"`
	PageTimeoutSeconds int           `mapstructure:"page_timeout_seconds"`
	MinConfidence     float64        `mapstructure:"min_confidence"`
}

// ImageConfig configures the preprocessor.
type ImageConfig struct {
	MaxLongSide int `mapstructure:"max_long_side"` // default 3508
	JPEGQuality int `mapstructure:"jpeg_quality"`  // default 85
}

// MergeConfig configures the line builder's section-type-aware merge
// thresholds.
type MergeConfig struct {
	WordThreshold       float64 `mapstructure:"word_threshold"`       // default 0.1
	PhraseThreshold     float64 `mapstructure:"phrase_threshold"`     // default 0.5
	HandwritingThreshold float64 `mapstructure:"handwriting_threshold"` // default 0.4; loaded but not read by lines.Threshold, which gives an unknown section type WordThreshold

}

// MatchConfig configures the fusion matcher.
type MatchConfig struct {
	TextThreshold         float64 `mapstructure:"text_threshold"`          // default 0.6
	PositionMaxDistance   float64 `mapstructure:"position_max_distance"`   // default 100
	ConsistencyThreshold  float64 `mapstructure:"consistency_threshold"`   // default 0.88
}

// UUIDConfig configures the identifier extractor's confidence weighting.
type UUIDConfig struct {
	NumericWeight float64 `mapstructure:"numeric_weight"` // default 0.8
	AlphaWeight   float64 `mapstructure:"alpha_weight"`   // default 0.2
}

// DebugConfig configures optional artifact persistence.
type DebugConfig struct {
	SaveRaw bool `mapstructure:"save_raw"`
}

// Defaults returns the configuration defaults named in spec.md §6.
func Defaults() Config {
	return Config{
		VLM: VLMConfig{
			MaxTokens:      4096,
			MaxTokensRetry: 8192,
			TimeoutSeconds: 180,
		},
		OCR: OCRConfig{
			PageTimeoutSeconds: 30,
			MinConfidence:      0.0,
		},
		Image: ImageConfig{
			MaxLongSide: 3508,
			JPEGQuality: 85,
		},
		Merge: MergeConfig{
			WordThreshold:        0.1,
			PhraseThreshold:      0.5,
			HandwritingThreshold: 0.4,
		},
		Match: MatchConfig{
			TextThreshold:        0.6,
			PositionMaxDistance:  100,
			ConsistencyThreshold: 0.88,
		},
		UUID: UUIDConfig{
			NumericWeight: 0.8,
			AlphaWeight:   0.2,
		},
	}
}

// Manager loads and hot-reloads the configuration bundle from a YAML file
// plus environment overrides, mirroring the teacher's
// internal/config.Manager shape but producing this package's static
// Config rather than writing through a DefraDB-backed Store.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a Manager and loads the initial configuration.
// cfgFile may be empty, in which case a gradecore.yaml in the working
// directory or in $HOME/.gradecore is read if present, on top of the
// defaults and GRADECORE_* environment variables.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{callbacks: make([]func(*Config), 0)}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	defaults := Defaults()
	viper.SetDefault("llm", defaults.LLM)
	viper.SetDefault("vlm", defaults.VLM)
	viper.SetDefault("ocr", defaults.OCR)
	viper.SetDefault("image", defaults.Image)
	viper.SetDefault("merge", defaults.Merge)
	viper.SetDefault("match", defaults.Match)
	viper.SetDefault("uuid", defaults.UUID)

	viper.SetEnvPrefix("GRADECORE")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gradecore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.gradecore")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration bundle (thread-safe). The caller
// owns the returned value and must pass it explicitly into
// grading.NewGrader; nothing in this module reads it from a global.
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback invoked after a successful hot-reload.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of the configuration file.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}
		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string. Manager.load
// does not apply it, so ${...} references in loaded values stay as written.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
