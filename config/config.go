// Package config loads avatarfx configuration and settings presets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opd-ai/avatarfx/av"
	"github.com/opd-ai/avatarfx/av/audio"
	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/av/video"
	"github.com/opd-ai/avatarfx/expression"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. AVATARFX_VIDEO_WIDTH.
const EnvPrefix = "AVATARFX"

// Config holds all application configuration
type Config struct {
	Video      VideoConfig        `mapstructure:"video"`
	Audio      AudioConfig        `mapstructure:"audio"`
	Expression ExpressionConfig   `mapstructure:"expression"`
	Beauty     video.BeautyUpdate `mapstructure:"beauty"`
	Voice      audio.VoiceUpdate  `mapstructure:"voice"`
	Images     map[string]string  `mapstructure:"images"` // emotion key -> resource ref
	Metrics    MetricsConfig      `mapstructure:"metrics"`
	Preset     string             `mapstructure:"preset"`
	LogLevel   string             `mapstructure:"log_level"`
}

// VideoConfig configures the compositor canvas and frame clock
type VideoConfig struct {
	Width     int     `mapstructure:"width"`
	Height    int     `mapstructure:"height"`
	FrameRate float64 `mapstructure:"frame_rate"`
}

// AudioConfig configures the voice pipeline
type AudioConfig struct {
	SampleRate int `mapstructure:"sample_rate"`
	BlockSize  int `mapstructure:"block_size"`
	RingBlocks int `mapstructure:"ring_blocks"`
}

// ExpressionConfig configures expression smoothing and the landmark feed
type ExpressionConfig struct {
	SmoothingFactor float64 `mapstructure:"smoothing_factor"`
	LandmarkURL     string  `mapstructure:"landmark_url"`
}

// MetricsConfig configures the HTTP endpoint and periodic reports
type MetricsConfig struct {
	Listen         string        `mapstructure:"listen"`
	ReportInterval time.Duration `mapstructure:"report_interval"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	s := av.DefaultSessionConfig()
	return &Config{
		Video: VideoConfig{
			Width:     s.Width,
			Height:    s.Height,
			FrameRate: s.FrameRate,
		},
		Audio: AudioConfig{
			SampleRate: s.SampleRate,
			BlockSize:  s.BlockSize,
			RingBlocks: s.RingBlocks,
		},
		Expression: ExpressionConfig{
			SmoothingFactor: s.SmoothingFactor,
			LandmarkURL:     "ws://localhost:8765/landmarks",
		},
		Images: map[string]string{},
		Metrics: MetricsConfig{
			Listen:         ":9464",
			ReportInterval: 10 * time.Second,
		},
		LogLevel: "info",
	}
}

// settingKeys are the partial-update keys that have no default and must
// be bound to the environment explicitly.
var settingKeys = []string{
	"beauty.enabled", "beauty.smoothing", "beauty.brightness", "beauty.contrast", "beauty.whitening",
	"beauty.lipstick.enabled", "beauty.lipstick.color",
	"beauty.eyeshadow.enabled", "beauty.eyeshadow.color",
	"beauty.blush.enabled", "beauty.blush.color",
	"voice.enabled", "voice.pitch_shift", "voice.speed", "voice.robotic", "voice.echo",
}

// Load reads configuration from path, or from avatarfx.yaml in
// $HOME/.avatarfx or the working directory when path is empty, then
// applies AVATARFX_* environment overrides. A missing default file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("avatarfx")
		v.SetConfigType("yaml")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"function": "config.Load",
		}).Debug("No config file found, using defaults")
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "config.Load",
		"file":     v.ConfigFileUsed(),
	}).Info("Configuration loaded")

	return cfg, nil
}

func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("video.width", cfg.Video.Width)
	v.SetDefault("video.height", cfg.Video.Height)
	v.SetDefault("video.frame_rate", cfg.Video.FrameRate)
	v.SetDefault("audio.sample_rate", cfg.Audio.SampleRate)
	v.SetDefault("audio.block_size", cfg.Audio.BlockSize)
	v.SetDefault("audio.ring_blocks", cfg.Audio.RingBlocks)
	v.SetDefault("expression.smoothing_factor", cfg.Expression.SmoothingFactor)
	v.SetDefault("expression.landmark_url", cfg.Expression.LandmarkURL)
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)
	v.SetDefault("metrics.report_interval", cfg.Metrics.ReportInterval)
	v.SetDefault("preset", cfg.Preset)
	v.SetDefault("log_level", cfg.LogLevel)

	for _, key := range settingKeys {
		// BindEnv only fails without a key.
		_ = v.BindEnv(key)
	}
	return v
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".avatarfx"), nil
}

// Level returns the configured log level, falling back to Info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// ImageSet converts the images section to a compositor image set.
func (c *Config) ImageSet() (compositor.ImageSet, error) {
	set := make(compositor.ImageSet, len(c.Images))
	for key, ref := range c.Images {
		e, err := expression.ParseEmotion(strings.ToLower(key))
		if err != nil {
			return nil, fmt.Errorf("images: %w", err)
		}
		set[e] = ref
	}
	return set, nil
}

// SessionConfig builds the av session parameters. Beauty and voice
// sections are applied as partial updates over the defaults, with the
// same clamping as runtime updates.
func (c *Config) SessionConfig() (av.SessionConfig, error) {
	images, err := c.ImageSet()
	if err != nil {
		return av.SessionConfig{}, err
	}

	s := av.DefaultSessionConfig()
	s.Width = c.Video.Width
	s.Height = c.Video.Height
	s.FrameRate = c.Video.FrameRate
	s.SampleRate = c.Audio.SampleRate
	s.BlockSize = c.Audio.BlockSize
	s.RingBlocks = c.Audio.RingBlocks
	s.SmoothingFactor = c.Expression.SmoothingFactor
	s.Images = images
	s.Beauty = video.NewBeautyStore(s.Beauty).Update(c.Beauty)
	s.Voice = audio.NewVoiceStore(s.Voice).Update(c.Voice)
	return s, nil
}
