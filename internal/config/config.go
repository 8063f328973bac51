package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/menta2k/virtual-tryon/pkg/canvas"
	"github.com/menta2k/virtual-tryon/pkg/fit"
	"github.com/menta2k/virtual-tryon/pkg/ingest"
	"github.com/menta2k/virtual-tryon/pkg/pose"
	"github.com/menta2k/virtual-tryon/pkg/render"
)

// EnvPrefix prefixes environment overrides, e.g. TRYON_POSE_BACKEND
const EnvPrefix = "TRYON"

// Pose backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendStatic   = "static"
)

// Config holds the application configuration
type Config struct {
	Ingest  IngestConfig  `json:"ingest" mapstructure:"ingest"`
	Pose    PoseConfig    `json:"pose" mapstructure:"pose"`
	Fit     FitConfig     `json:"fit" mapstructure:"fit"`
	Render  RenderConfig  `json:"render" mapstructure:"render"`
	Garment GarmentConfig `json:"garment" mapstructure:"garment"`
	Output  OutputConfig  `json:"output" mapstructure:"output"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// IngestConfig holds upload limits and the display bound
type IngestConfig struct {
	MaxUploadBytes   int64 `json:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	MaxDisplayWidth  int   `json:"max_display_width" mapstructure:"max_display_width"`
	MaxDisplayHeight int   `json:"max_display_height" mapstructure:"max_display_height"`
}

// PoseConfig selects and tunes the pose-estimation backend
type PoseConfig struct {
	Backend             string  `json:"backend" mapstructure:"backend"`
	URL                 string  `json:"url" mapstructure:"url"`
	Model               string  `json:"model" mapstructure:"model"`
	StaticFile          string  `json:"static_file" mapstructure:"static_file"`
	Timeout             int     `json:"timeout" mapstructure:"timeout"` // seconds
	ConfidenceThreshold float64 `json:"confidence_threshold" mapstructure:"confidence_threshold"`
	SendFormat          string  `json:"send_format" mapstructure:"send_format"`
	SendMaxDim          int     `json:"send_max_dim" mapstructure:"send_max_dim"`
	SendQuality         int     `json:"send_quality" mapstructure:"send_quality"`
}

// FitConfig holds the garment geometry multipliers
type FitConfig struct {
	WidthMultiplier  float64 `json:"width_multiplier" mapstructure:"width_multiplier"`
	HeightMultiplier float64 `json:"height_multiplier" mapstructure:"height_multiplier"`
	VerticalOffset   float64 `json:"vertical_offset" mapstructure:"vertical_offset"`
}

// RenderConfig holds the garment compositing parameters
type RenderConfig struct {
	GarmentAlpha float64 `json:"garment_alpha" mapstructure:"garment_alpha"`
	BlendMode    string  `json:"blend_mode" mapstructure:"blend_mode"`
}

// GarmentConfig locates the garment image
type GarmentConfig struct {
	Source string `json:"source" mapstructure:"source"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Format    string `json:"format" mapstructure:"format"`
	Quality   int    `json:"quality" mapstructure:"quality"`
	Lossless  bool   `json:"lossless" mapstructure:"lossless"`
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`
	Suffix    string `json:"suffix" mapstructure:"suffix"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Ingest: IngestConfig{
			MaxUploadBytes:   ingest.DefaultMaxUploadBytes,
			MaxDisplayWidth:  ingest.DefaultMaxDisplayWidth,
			MaxDisplayHeight: ingest.DefaultMaxDisplayHeight,
		},
		Pose: PoseConfig{
			Backend:             BackendOllama,
			URL:                 "http://localhost:11434",
			Model:               "qwen2.5vl:7b",
			Timeout:             120,
			ConfidenceThreshold: pose.DefaultConfidenceThreshold,
			SendFormat:          "jpg",
			SendMaxDim:          1024,
			SendQuality:         85,
		},
		Fit: FitConfig{
			WidthMultiplier:  fit.DefaultWidthMultiplier,
			HeightMultiplier: fit.DefaultHeightMultiplier,
			VerticalOffset:   fit.DefaultVerticalOffset,
		},
		Render: RenderConfig{
			GarmentAlpha: render.DefaultGarmentAlpha,
			BlendMode:    canvas.BlendMultiply.String(),
		},
		Garment: GarmentConfig{
			Source: "assets/dress.png",
		},
		Output: OutputConfig{
			Format:    "jpg",
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_tryon",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from path (YAML or JSON; empty means defaults only),
// a .env file in the working directory and TRYON_* environment variables, in
// increasing order of precedence.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ingest.max_upload_bytes", d.Ingest.MaxUploadBytes)
	v.SetDefault("ingest.max_display_width", d.Ingest.MaxDisplayWidth)
	v.SetDefault("ingest.max_display_height", d.Ingest.MaxDisplayHeight)

	v.SetDefault("pose.backend", d.Pose.Backend)
	v.SetDefault("pose.url", d.Pose.URL)
	v.SetDefault("pose.model", d.Pose.Model)
	v.SetDefault("pose.static_file", d.Pose.StaticFile)
	v.SetDefault("pose.timeout", d.Pose.Timeout)
	v.SetDefault("pose.confidence_threshold", d.Pose.ConfidenceThreshold)
	v.SetDefault("pose.send_format", d.Pose.SendFormat)
	v.SetDefault("pose.send_max_dim", d.Pose.SendMaxDim)
	v.SetDefault("pose.send_quality", d.Pose.SendQuality)

	v.SetDefault("fit.width_multiplier", d.Fit.WidthMultiplier)
	v.SetDefault("fit.height_multiplier", d.Fit.HeightMultiplier)
	v.SetDefault("fit.vertical_offset", d.Fit.VerticalOffset)

	v.SetDefault("render.garment_alpha", d.Render.GarmentAlpha)
	v.SetDefault("render.blend_mode", d.Render.BlendMode)

	v.SetDefault("garment.source", d.Garment.Source)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.lossless", d.Output.Lossless)
	v.SetDefault("output.output_dir", d.Output.OutputDir)
	v.SetDefault("output.suffix", d.Output.Suffix)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Ingest.MaxUploadBytes < 1 {
		return fmt.Errorf("ingest.max_upload_bytes must be positive")
	}
	if c.Ingest.MaxDisplayWidth < 1 || c.Ingest.MaxDisplayHeight < 1 {
		return fmt.Errorf("ingest.max_display_width and ingest.max_display_height must be positive")
	}

	switch c.Pose.Backend {
	case BackendOllama, BackendLlamaCpp:
		if c.Pose.URL == "" {
			return fmt.Errorf("pose.url is required for the %s backend", c.Pose.Backend)
		}
		if c.Pose.Backend == BackendOllama && c.Pose.Model == "" {
			return fmt.Errorf("pose.model is required for the ollama backend")
		}
	case BackendStatic:
		if c.Pose.StaticFile == "" {
			return fmt.Errorf("pose.static_file is required for the static backend")
		}
	default:
		return fmt.Errorf("pose.backend must be one of %s, %s, %s", BackendOllama, BackendLlamaCpp, BackendStatic)
	}

	// zero is reserved: session options treat it as "use the default"
	if c.Pose.ConfidenceThreshold <= 0 || c.Pose.ConfidenceThreshold >= 1 {
		return fmt.Errorf("pose.confidence_threshold must be in (0, 1)")
	}
	if c.Pose.Timeout < 0 {
		return fmt.Errorf("pose.timeout cannot be negative")
	}
	if c.Pose.SendQuality < 1 || c.Pose.SendQuality > 100 {
		return fmt.Errorf("pose.send_quality must be between 1 and 100")
	}

	if c.Fit.WidthMultiplier <= 0 || c.Fit.HeightMultiplier <= 0 {
		return fmt.Errorf("fit multipliers must be positive")
	}
	if c.Fit.VerticalOffset < 0 || c.Fit.VerticalOffset > 1 {
		return fmt.Errorf("fit.vertical_offset must be between 0 and 1")
	}

	if c.Render.GarmentAlpha <= 0 || c.Render.GarmentAlpha > 1 {
		return fmt.Errorf("render.garment_alpha must be in (0, 1]")
	}
	if _, err := c.Render.Blend(); err != nil {
		return err
	}

	if c.Garment.Source == "" {
		return fmt.Errorf("garment.source is required")
	}

	switch c.Output.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("output.format must be jpg, png or webp")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// Blend parses the configured blend mode
func (r RenderConfig) Blend() (canvas.BlendMode, error) {
	switch strings.ToLower(r.BlendMode) {
	case "multiply":
		return canvas.BlendMultiply, nil
	case "normal", "source-over":
		return canvas.BlendNormal, nil
	}
	return canvas.BlendNormal, fmt.Errorf("render.blend_mode %q is not supported", r.BlendMode)
}

// PoseTimeout returns the backend timeout as a duration
func (c *Config) PoseTimeout() time.Duration {
	return time.Duration(c.Pose.Timeout) * time.Second
}

// IngestOptions converts to the ingest package's config
func (c *Config) IngestOptions() ingest.Config {
	return ingest.Config{
		MaxUploadBytes:   c.Ingest.MaxUploadBytes,
		MaxDisplayWidth:  c.Ingest.MaxDisplayWidth,
		MaxDisplayHeight: c.Ingest.MaxDisplayHeight,
	}
}

// FitOptions converts to the fit package's config
func (c *Config) FitOptions() fit.Config {
	return fit.Config{
		WidthMultiplier:  c.Fit.WidthMultiplier,
		HeightMultiplier: c.Fit.HeightMultiplier,
		VerticalOffset:   c.Fit.VerticalOffset,
	}
}

// RenderOptions converts to the render package's config. The blend mode must
// have passed Validate.
func (c *Config) RenderOptions() render.Config {
	mode, _ := c.Render.Blend()
	return render.Config{GarmentAlpha: c.Render.GarmentAlpha, GarmentBlend: mode}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "virtual-tryon", "config.yaml")
}
