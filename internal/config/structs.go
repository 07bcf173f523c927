//nolint:lll
package config

import "time"

// Config is the complete petalscan configuration. It is loaded from a config
// file, the environment and command-line flags.
type Config struct {
	Log       LogConfig       `mapstructure:"log" yaml:"log" json:"log"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Azure     AzureConfig     `mapstructure:"azure" yaml:"azure" json:"azure"`
	Templates TemplatesConfig `mapstructure:"templates" yaml:"templates" json:"templates"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// PipelineConfig contains extraction pipeline settings.
type PipelineConfig struct {
	Zoom              float64       `mapstructure:"zoom" yaml:"zoom" json:"zoom"`
	Language          string        `mapstructure:"language" yaml:"language" json:"language"`
	Engine            string        `mapstructure:"engine" yaml:"engine" json:"engine"`
	Strategy          string        `mapstructure:"strategy" yaml:"strategy" json:"strategy"`
	MinTextLayerChars int           `mapstructure:"min_text_layer_chars" yaml:"min_text_layer_chars" json:"min_text_layer_chars"`
	Enhance           bool          `mapstructure:"enhance" yaml:"enhance" json:"enhance"`
	RecognizeTimeout  time.Duration `mapstructure:"recognize_timeout" yaml:"recognize_timeout" json:"recognize_timeout"`
	ImageItems        bool          `mapstructure:"image_items" yaml:"image_items" json:"image_items"`
	TempDir           string        `mapstructure:"temp_dir" yaml:"temp_dir" json:"temp_dir"`
}

// AzureConfig contains Azure Computer Vision credentials.
type AzureConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Key      string `mapstructure:"key" yaml:"key" json:"-"`
	Language string `mapstructure:"language" yaml:"language" json:"language"`
}

// TemplatesConfig locates the supplier template registry.
type TemplatesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	DBPath        string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`
	FilesDir      string `mapstructure:"files_dir" yaml:"files_dir" json:"files_dir"`
	PublicBaseURL string `mapstructure:"public_base_url" yaml:"public_base_url" json:"public_base_url"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" json:"host"`
	Port            int           `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string        `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int           `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// OutputConfig contains CLI output settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	File   string `mapstructure:"file" yaml:"file" json:"file"`
}
