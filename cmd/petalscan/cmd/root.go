// Package cmd implements the petalscan command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/petalscan/internal/config"
	"github.com/MeKo-Tech/petalscan/internal/logging"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/recognize"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/MeKo-Tech/petalscan/internal/templates"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Process logger, configured in PersistentPreRunE.
	logger = zerolog.Nop()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "petalscan",
	Short: "Extract purchase invoices of flower suppliers from PDFs and scans",
	Long: `petalscan reads supplier purchase invoices (multi-page PDFs or photos),
recognizes their Latin and Arabic text and extracts per page the invoice
number, date, salesman, totals and the line-item table.

Reviewed pages can be saved to the local invoice store, and supplier
templates are imported from calibration CSV files.

Examples:
  petalscan extract invoices.pdf
  petalscan extract scans/ --recursive --format xlsx --output review.xlsx
  petalscan template import barcellona.csv --name "Barcellona Flowers"
  petalscan serve --port 8080`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		globalConfig = cfg

		logCfg := cfg.ToLoggingConfig()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			logCfg.Level = "debug"
		}
		logCfg.Output = cmd.ErrOrStderr()
		logger = logging.Setup(logCfg)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is petalscan.yaml in ., ./config, $HOME/.config/petalscan, /etc/petalscan)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, console)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// loadConfig reads the configuration file, the environment and the bound
// flags.
func loadConfig() (*config.Config, error) {
	configLoader = config.NewLoader()
	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return cfg, nil
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg, err := loadConfig()
		if err != nil {
			d := config.DefaultConfig()
			return &d
		}
		globalConfig = cfg
	}
	return globalConfig
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// Helpers copying changed flags over configuration values.

func overrideString(cmd *cobra.Command, flag string, target *string) {
	if cmd.Flags().Changed(flag) {
		*target, _ = cmd.Flags().GetString(flag)
	}
}

func overrideInt(cmd *cobra.Command, flag string, target *int) {
	if cmd.Flags().Changed(flag) {
		*target, _ = cmd.Flags().GetInt(flag)
	}
}

func overrideFloat64(cmd *cobra.Command, flag string, target *float64) {
	if cmd.Flags().Changed(flag) {
		*target, _ = cmd.Flags().GetFloat64(flag)
	}
}

func overrideBool(cmd *cobra.Command, flag string, target *bool) {
	if cmd.Flags().Changed(flag) {
		*target, _ = cmd.Flags().GetBool(flag)
	}
}

// addPipelineFlags registers the flags shared by extract and serve.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("zoom", 2, "PDF render zoom factor")
	cmd.Flags().String("engine", recognize.EngineTesseract, "recognition engine (tesseract, azure, none)")
	cmd.Flags().String("strategy", pipeline.StrategyOCR, "page text source (ocr, text, auto)")
	cmd.Flags().String("language", recognize.DefaultLanguage, "tesseract language hint")
	cmd.Flags().Bool("enhance", false, "boost contrast before recognition")
	cmd.Flags().Bool("image-items", false, "parse the item table of single images")
}

// pipelineConfig applies the pipeline flags to a copy of the configuration
// and validates it.
func pipelineConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := *GetConfig()
	overrideFloat64(cmd, "zoom", &cfg.Pipeline.Zoom)
	overrideString(cmd, "engine", &cfg.Pipeline.Engine)
	overrideString(cmd, "strategy", &cfg.Pipeline.Strategy)
	overrideString(cmd, "language", &cfg.Pipeline.Language)
	overrideBool(cmd, "enhance", &cfg.Pipeline.Enhance)
	overrideBool(cmd, "image-items", &cfg.Pipeline.ImageItems)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// buildPipeline constructs the extraction pipeline. The text strategy never
// needs an engine, so none is created for it.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	b := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithLogger(logger)

	if cfg.Pipeline.Strategy != pipeline.StrategyText {
		rec, err := recognize.New(cfg.ToRecognizeConfig())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s recognizer: %w", cfg.Pipeline.Engine, err)
		}
		b.WithRecognizer(rec)
	}
	return b.Build()
}

func openRegistry(cfg *config.Config) (*templates.Registry, error) {
	return templates.NewRegistry(cfg.Templates.Dir, logger)
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Storage.DBPath, logger)
}

func openFileStore(cfg *config.Config) (*store.FileStore, error) {
	return store.NewFileStore(cfg.Storage.FilesDir, cfg.Storage.PublicBaseURL)
}
