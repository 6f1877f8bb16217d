package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "filewise"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage filewise configuration.

Running bare 'filewise config' is the same as 'filewise config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# filewise configuration
# See: filewise config show (for effective values and sources)

# SQLite database path (default: ~/.config/filewise/filewise.db)
# db_path: {{ .DBPath }}

# Anthropic API
anthropic:
  # API key (or set ANTHROPIC_API_KEY)
  api_key: ""

  # Default model for every pipeline stage
  model: "{{ .Model }}"

# Per-stage model overrides. Empty means use anthropic.model.
models:
  categorize: ""
  name: ""
  validate: ""

# Processing
processing:
  # Files processed concurrently (default: {{ .ParallelFiles }})
  parallel_files: {{ .ParallelFiles }}

  # Run the validation stage after naming (default: false)
  enable_validation: {{ .EnableValidation }}

  # Naming attempts before giving up on validation (default: {{ .ValidationRetryCount }})
  validation_retry_count: {{ .ValidationRetryCount }}

# Organizing renamed files into per-category directories
organize:
  enabled: {{ .OrganizeEnabled }}

  # Category directories are created under this path. Empty keeps files
  # next to where they started.
  base_dir: "{{ .OrganizeBaseDir }}"

# Feedback retention in days. 0 keeps records forever.
feedback:
  retention_days: {{ .RetentionDays }}
`

type configTemplateData struct {
	DBPath               string
	Model                string
	ParallelFiles        int
	EnableValidation     bool
	ValidationRetryCount int
	OrganizeEnabled      bool
	OrganizeBaseDir      string
	RetentionDays        int
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		DBPath:               viper.GetString("db_path"),
		Model:                viper.GetString("anthropic.model"),
		ParallelFiles:        viper.GetInt("processing.parallel_files"),
		EnableValidation:     viper.GetBool("processing.enable_validation"),
		ValidationRetryCount: viper.GetInt("processing.validation_retry_count"),
		OrganizeEnabled:      viper.GetBool("organize.enabled"),
		OrganizeBaseDir:      viper.GetString("organize.base_dir"),
		RetentionDays:        viper.GetInt("feedback.retention_days"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "db_path", EnvVar: "FILEWISE_DB_PATH"},
	{Key: "anthropic.api_key", EnvVar: "FILEWISE_ANTHROPIC_API_KEY"},
	{Key: "anthropic.model", EnvVar: "FILEWISE_ANTHROPIC_MODEL"},
	{Key: "models.categorize", EnvVar: "FILEWISE_MODELS_CATEGORIZE"},
	{Key: "models.name", EnvVar: "FILEWISE_MODELS_NAME"},
	{Key: "models.validate", EnvVar: "FILEWISE_MODELS_VALIDATE"},
	{Key: "processing.parallel_files", EnvVar: "FILEWISE_PROCESSING_PARALLEL_FILES"},
	{Key: "processing.enable_validation", EnvVar: "FILEWISE_PROCESSING_ENABLE_VALIDATION"},
	{Key: "processing.validation_retry_count", EnvVar: "FILEWISE_PROCESSING_VALIDATION_RETRY_COUNT"},
	{Key: "organize.enabled", EnvVar: "FILEWISE_ORGANIZE_ENABLED"},
	{Key: "organize.base_dir", EnvVar: "FILEWISE_ORGANIZE_BASE_DIR"},
	{Key: "feedback.retention_days", EnvVar: "FILEWISE_FEEDBACK_RETENTION_DAYS"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Key == "anthropic.api_key" && val != "" {
			val = "(set)"
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-34s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set — set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'filewise config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
