package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/export"
	"github.com/MeKo-Tech/petalscan/internal/logging"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/raster"
	"github.com/MeKo-Tech/petalscan/internal/recognize"
)

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
	validEngines    = []string{recognize.EngineTesseract, recognize.EngineAzure, recognize.EngineNone}
	validStrategies = []string{pipeline.StrategyOCR, pipeline.StrategyText, pipeline.StrategyAuto}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Pipeline: PipelineConfig{
			Zoom:              raster.DefaultZoom,
			Language:          recognize.DefaultLanguage,
			Engine:            recognize.EngineTesseract,
			Strategy:          pipeline.StrategyOCR,
			MinTextLayerChars: pipeline.DefaultMinTextLayerChars,
		},
		Azure: AzureConfig{
			Language: recognize.DefaultAzureLanguage,
		},
		Templates: TemplatesConfig{
			Dir: "data/templates",
		},
		Storage: StorageConfig{
			DBPath:   "data/petalscan.db",
			FilesDir: "data/files",
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			Timeout:         120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Output: OutputConfig{
			Format: export.FormatJSON,
		},
	}
}

// Validate rejects settings the commands cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.Log.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Log.Level, strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, c.Log.Format) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.Log.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Pipeline.Zoom <= 0 {
		return fmt.Errorf("invalid zoom: %v (must be positive)", c.Pipeline.Zoom)
	}
	if !slices.Contains(validEngines, c.Pipeline.Engine) {
		return fmt.Errorf("invalid engine: %s (must be one of: %s)", c.Pipeline.Engine, strings.Join(validEngines, ", "))
	}
	if !slices.Contains(validStrategies, c.Pipeline.Strategy) {
		return fmt.Errorf("invalid strategy: %s (must be one of: %s)", c.Pipeline.Strategy, strings.Join(validStrategies, ", "))
	}
	if c.Pipeline.MinTextLayerChars < 0 {
		return fmt.Errorf("invalid min_text_layer_chars: %d (must not be negative)", c.Pipeline.MinTextLayerChars)
	}
	if c.Pipeline.RecognizeTimeout < 0 {
		return fmt.Errorf("invalid recognize_timeout: %s (must not be negative)", c.Pipeline.RecognizeTimeout)
	}
	if c.Pipeline.Engine == recognize.EngineAzure && (c.Azure.Endpoint == "" || c.Azure.Key == "") {
		return errors.New("azure engine requires azure.endpoint and azure.key")
	}

	if c.Output.Format != "" && !slices.Contains(export.Formats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(export.Formats, ", "))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("invalid max upload size: %d (must be at least 1)", c.Server.MaxUploadMB)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %s (must be positive)", c.Server.Timeout)
	}
	return nil
}

// ToPipelineConfig converts to the pipeline's settings.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Zoom:              c.Pipeline.Zoom,
		Strategy:          c.Pipeline.Strategy,
		MinTextLayerChars: c.Pipeline.MinTextLayerChars,
		Enhance:           c.Pipeline.Enhance,
		ImageItems:        c.Pipeline.ImageItems,
		TempDir:           c.Pipeline.TempDir,
	}
}

// ToRecognizeConfig converts to the recognizer settings.
func (c *Config) ToRecognizeConfig() recognize.Config {
	return recognize.Config{
		Engine:        c.Pipeline.Engine,
		Language:      c.Pipeline.Language,
		Timeout:       c.Pipeline.RecognizeTimeout,
		AzureEndpoint: c.Azure.Endpoint,
		AzureKey:      c.Azure.Key,
		AzureLanguage: c.Azure.Language,
	}
}

// ToLoggingConfig converts to logger settings.
func (c *Config) ToLoggingConfig() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// Address returns host:port for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
