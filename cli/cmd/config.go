package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage configuration including viewing, setting, and validating settings.`,
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View current configuration",
	Long:  `Display the current configuration from all sources (config file, environment variables, flags).`,
	RunE:  runConfigView,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long:  `Get a configuration value. The key uses dot notation (e.g., store.type).`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  `Set a configuration value in the config file. The key uses dot notation (e.g., store.type).`,
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Long:  `Create a new configuration file with default values.`,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for correctness and completeness.`,
	RunE:  runConfigValidate,
}

var configForce bool

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configViewCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite existing config file")
}

func runConfigView(cmd *cobra.Command, args []string) error {
	config := viper.AllSettings()
	maskSensitiveValues(config)

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if viper.ConfigFileUsed() != "" {
		fmt.Printf("# config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Println("# config file: none found (defaults and environment)")
	}
	fmt.Print(string(data))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := args[0]

	if !viper.IsSet(key) {
		return fmt.Errorf("configuration key not set: %s", key)
	}

	value := viper.Get(key)
	if isSensitiveConfigKey(key) {
		value = "[REDACTED]"
	}
	fmt.Printf("%v\n", value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	if !isValidConfigKey(key) {
		return fmt.Errorf("unknown configuration key: %s (see 'rubeen config view' for valid keys)", key)
	}

	configFile := getConfigFilePath()
	if err := ensureConfigDir(configFile); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Load what is on disk, not the merged view, so only explicit settings
	// end up in the file
	config := make(map[string]interface{})
	if data, err := os.ReadFile(configFile); err == nil {
		if err = yaml.Unmarshal(data, &config); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}

	setNestedKey(config, key, convertStringValue(value))

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s in %s\n", key, configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := getConfigFilePath()

	if fileExists(configFile) && !configForce {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configFile)
	}

	if err := ensureConfigDir(configFile); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	config := map[string]interface{}{
		"store": map[string]interface{}{
			"type": "filesystem",
			"path": ".",
		},
		"encryption": map[string]interface{}{
			"iterations":          0,
			"obfuscate_key_files": false,
			"bind_artifacts":      false,
		},
		"audit": map[string]interface{}{
			"enabled": false,
			"type":    "file",
			"options": map[string]interface{}{
				"file_path": "rubeen-audit.log",
			},
		},
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err = os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created %s\n", configFile)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	problems := validateConfiguration()

	if len(problems) == 0 {
		fmt.Println("Configuration is valid.")
		return nil
	}

	fmt.Println("Configuration problems:")
	for _, p := range problems {
		fmt.Printf("  - %s\n", p)
	}
	return fmt.Errorf("%d configuration problem(s) found", len(problems))
}

func validateConfiguration() []string {
	var problems []string

	storeType := strings.ToLower(viper.GetString("store.type"))
	switch storeType {
	case "filesystem", "file":
	case "s3":
		if viper.GetString("store.s3.bucket") == "" {
			problems = append(problems, "S3 bucket is required when using the S3 store (store.s3.bucket)")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid store type: %s (must be filesystem or s3)", storeType))
	}

	if iterations := viper.GetInt("encryption.iterations"); iterations != 0 && iterations < 100000 {
		problems = append(problems, fmt.Sprintf("encryption.iterations too low: %d (minimum 100000, or 0 for default)", iterations))
	}

	if viper.GetBool("audit.enabled") {
		auditType := viper.GetString("audit.type")
		switch auditType {
		case "file":
			if viper.GetString("audit.options.file_path") == "" {
				problems = append(problems, "audit file path is required when using file audit (audit.options.file_path)")
			}
		case "syslog":
		default:
			problems = append(problems, fmt.Sprintf("invalid audit type: %s (must be file or syslog)", auditType))
		}
	}

	return problems
}
