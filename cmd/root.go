package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/filewise/filewise/internal/ai"
	"github.com/filewise/filewise/internal/output"
	"github.com/filewise/filewise/internal/pipeline"
	"github.com/filewise/filewise/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "filewise",
	Short: "filewise - AI-assisted file categorization and renaming",
	Long: `filewise processes directories of files through an AI pipeline:
each file is categorized, given a descriptive name, and optionally
validated. Batches survive interruption and can be resumed, and user
feedback on suggestions is tracked per category.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/filewise/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "filewise")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("FILEWISE")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "filewise")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "filewise.db"))
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	viper.SetDefault("models.categorize", "")
	viper.SetDefault("models.name", "")
	viper.SetDefault("models.validate", "")
	viper.SetDefault("processing.parallel_files", pipeline.DefaultConcurrency)
	viper.SetDefault("processing.enable_validation", false)
	viper.SetDefault("processing.validation_retry_count", 3)
	viper.SetDefault("organize.enabled", false)
	viper.SetDefault("organize.base_dir", "")
	viper.SetDefault("feedback.retention_days", 0)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// Store is initialized lazily so config/version commands run without a db.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newProvider creates an AI provider from config/env. Returns an error when
// no API key is configured, since every pipeline stage needs one.
func newProvider() (ai.Provider, error) {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no Anthropic API key configured: set anthropic.api_key or ANTHROPIC_API_KEY")
	}

	cfg := ai.ModelConfig{
		Default:    viper.GetString("anthropic.model"),
		Categorize: viper.GetString("models.categorize"),
		Name:       viper.GetString("models.name"),
		Validate:   viper.GetString("models.validate"),
	}
	return ai.NewClient(apiKey, cfg), nil
}

// newProcessor builds a pipeline processor from config.
func newProcessor() (*pipeline.Processor, error) {
	provider, err := newProvider()
	if err != nil {
		return nil, err
	}

	cfg := pipeline.DefaultConfig()
	cfg.EnableValidation = viper.GetBool("processing.enable_validation")
	cfg.ValidationRetryCount = viper.GetInt("processing.validation_retry_count")
	return pipeline.NewProcessor(provider, cfg), nil
}

func concurrencyFromConfig() int {
	n := viper.GetInt("processing.parallel_files")
	if n < 1 {
		return pipeline.DefaultConcurrency
	}
	return n
}
