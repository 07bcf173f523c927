package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "petalscan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PETALSCAN"

	// DotEnvFile is loaded into the environment before it is read.
	DotEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance, which is where
// cobra flags are bound.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader on its own viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads defaults, the config file, .env and the environment, then
// validates the result.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithoutValidation is Load without the final validation.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.load("", false)
}

// LoadWithFile is Load with an explicit config file. An empty path searches
// the standard locations.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
	}

	if err := loadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := config.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &config, nil
}

// loadDotEnv exports the variables of path unless they are already set.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.v.GetString(key)
}

// Set sets a value in the configuration.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)

	l.v.SetDefault("pipeline.zoom", d.Pipeline.Zoom)
	l.v.SetDefault("pipeline.language", d.Pipeline.Language)
	l.v.SetDefault("pipeline.engine", d.Pipeline.Engine)
	l.v.SetDefault("pipeline.strategy", d.Pipeline.Strategy)
	l.v.SetDefault("pipeline.min_text_layer_chars", d.Pipeline.MinTextLayerChars)
	l.v.SetDefault("pipeline.enhance", d.Pipeline.Enhance)
	l.v.SetDefault("pipeline.recognize_timeout", d.Pipeline.RecognizeTimeout)
	l.v.SetDefault("pipeline.image_items", d.Pipeline.ImageItems)
	l.v.SetDefault("pipeline.temp_dir", d.Pipeline.TempDir)

	// Registered so AutomaticEnv can see them without a config file.
	l.v.SetDefault("azure.endpoint", d.Azure.Endpoint)
	l.v.SetDefault("azure.key", d.Azure.Key)
	l.v.SetDefault("azure.language", d.Azure.Language)

	l.v.SetDefault("templates.dir", d.Templates.Dir)

	l.v.SetDefault("storage.db_path", d.Storage.DBPath)
	l.v.SetDefault("storage.files_dir", d.Storage.FilesDir)
	l.v.SetDefault("storage.public_base_url", d.Storage.PublicBaseURL)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout", d.Server.Timeout)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)
}

// GenerateDefaultConfigFile writes the defaults as YAML.
func GenerateDefaultConfigFile(filename string) error {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return loader.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the directories searched for petalscan.yaml,
// in order.
func GetConfigSearchPaths() []string {
	paths := []string{".", "config"}

	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, "petalscan"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "petalscan"))
	}

	return append(paths, "/etc/petalscan")
}
