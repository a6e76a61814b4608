package cmd

import (
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	rubeen "github.com/RubeOS-packages/RubeEn"
	"github.com/RubeOS-packages/RubeEn/audit"
	"github.com/RubeOS-packages/RubeEn/persist"
)

var (
	cfgFile    string
	passphrase string
	sealer     *rubeen.Sealer
	store      persist.Store
	cliContext *CLIContext
)

type CLIContext struct {
	UserID    string
	SessionID string
	Source    string // hostname
	StartTime time.Time
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rubeen",
	Short: "Password-based file encryption for RubeOS artifacts",
	Long: `Encrypt and decrypt files with a passphrase, either directly or through a
random file key wrapped into a portable key file. Encryption uses
AES-256-GCM with PBKDF2-derived keys; artifacts can be kept on the local
filesystem or in S3-compatible object storage.`,
	PersistentPreRunE: initializeSealer,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if sealer != nil {
			return sealer.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags - consistent with config file structure
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rubeen.yaml)")
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "passphrase (or use RUBEEN_PASSPHRASE env var)")
	rootCmd.PersistentFlags().StringP("store-path", "p", "", "path to artifact storage")
	rootCmd.PersistentFlags().String("store-type", "", "storage backend type (filesystem, s3)")
	rootCmd.PersistentFlags().Int("iterations", 0, "PBKDF2 iteration count (0 = default)")
	rootCmd.PersistentFlags().Bool("obfuscate", false, "base64-wrap key file records")
	rootCmd.PersistentFlags().Bool("bind", false, "bind envelope and key file cryptographically")

	bindFlagOrPanic("passphrase", "passphrase")
	bindFlagOrPanic("store.path", "store-path")
	bindFlagOrPanic("store.type", "store-type")
	bindFlagOrPanic("encryption.iterations", "iterations")
	bindFlagOrPanic("encryption.obfuscate_key_files", "obfuscate")
	bindFlagOrPanic("encryption.bind_artifacts", "bind")

	// Audit flags
	rootCmd.PersistentFlags().Bool("audit", false, "enable audit logging")
	rootCmd.PersistentFlags().String("audit-type", "", "audit logger type (file, syslog)")
	rootCmd.PersistentFlags().String("audit-file", "", "audit log file path")

	bindFlagOrPanic("audit.enabled", "audit")
	bindFlagOrPanic("audit.type", "audit-type")
	bindFlagOrPanic("audit.options.file_path", "audit-file")

	// S3 flags (for direct CLI usage)
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3 endpoint URL")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket name")
	rootCmd.PersistentFlags().String("s3-prefix", "", "S3 key prefix")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key ID")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret access key")
	rootCmd.PersistentFlags().Bool("s3-use-ssl", true, "Use SSL for S3 connections")

	bindFlagOrPanic("store.s3.endpoint", "s3-endpoint")
	bindFlagOrPanic("store.s3.region", "s3-region")
	bindFlagOrPanic("store.s3.bucket", "s3-bucket")
	bindFlagOrPanic("store.s3.prefix", "s3-prefix")
	bindFlagOrPanic("store.s3.access_key_id", "s3-access-key")
	bindFlagOrPanic("store.s3.secret_access_key", "s3-secret-key")
	bindFlagOrPanic("store.s3.use_ssl", "s3-use-ssl")
}

func bindFlagOrPanic(configKey, flagName string) {
	if err := viper.BindPFlag(configKey, rootCmd.PersistentFlags().Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flagName, err))
	}
}

func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/rubeen")

		viper.SetConfigType("yaml")
		viper.SetConfigName(".rubeen")
	}

	viper.SetEnvPrefix("RUBEEN")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
		// Config file not found is OK - we'll use defaults and env vars
	} else {
		if os.Getenv("DEBUG") == "true" {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

func setDefaults() {
	viper.SetDefault("store.type", "filesystem")
	viper.SetDefault("store.path", ".")

	viper.SetDefault("encryption.iterations", 0)
	viper.SetDefault("encryption.obfuscate_key_files", false)
	viper.SetDefault("encryption.bind_artifacts", false)

	// S3 defaults
	viper.SetDefault("store.s3.region", "us-east-1")
	viper.SetDefault("store.s3.prefix", "rubeen/")
	viper.SetDefault("store.s3.use_ssl", true)

	// Audit defaults
	viper.SetDefault("audit.enabled", false)
	viper.SetDefault("audit.type", "file")
	viper.SetDefault("audit.options.file_path", "rubeen-audit.log")
}

// commandNeedsPassphrase reports whether a command performs key derivation.
// Inspection, listing and deletion work on artifacts without decrypting.
func commandNeedsPassphrase(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "encrypt", "decrypt", "keygen":
		return true
	}
	return false
}

func initializeSealer(cmd *cobra.Command, args []string) error {
	// Skip initialization for commands that never touch artifacts
	switch cmd.Name() {
	case "help", "completion", "__complete", "config", "view", "get", "set", "init", "validate":
		return nil
	}

	passphrase = viper.GetString("passphrase")
	if passphrase == "" {
		passphrase = os.Getenv("RUBEEN_PASSPHRASE")
	}
	if passphrase == "" && commandNeedsPassphrase(cmd) {
		return fmt.Errorf("passphrase is required. Use --passphrase flag or RUBEEN_PASSPHRASE environment variable")
	}

	cliContext = &CLIContext{
		UserID:    getCurrentUser(),
		SessionID: uuid.New().String(),
		Source:    getHostname(),
		StartTime: time.Now(),
	}

	var err error
	store, err = createStore(viper.GetString("store.type"))
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}

	sealer, err = rubeen.New(rubeen.Options{
		Iterations:        viper.GetInt("encryption.iterations"),
		Agent:             fmt.Sprintf("RubeOS/rubeen-cli (%s)", cliContext.UserID),
		ObfuscateKeyFiles: viper.GetBool("encryption.obfuscate_key_files"),
		BindArtifacts:     viper.GetBool("encryption.bind_artifacts"),
		AuditConfig:       auditConfigFromViper(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	return nil
}

func auditConfigFromViper() *audit.Config {
	if !viper.GetBool("audit.enabled") {
		return nil
	}
	return &audit.Config{
		Enabled: true,
		Agent:   fmt.Sprintf("RubeOS/rubeen-cli (%s)", cliContext.UserID),
		Type:    audit.ConfigType(viper.GetString("audit.type")),
		Options: map[string]interface{}{
			"file_path": viper.GetString("audit.options.file_path"),
		},
		LogLevel: viper.GetString("audit.log_level"),
	}
}

func createStore(storeType string) (persist.Store, error) {
	switch strings.ToLower(storeType) {
	case "filesystem", "file":
		return persist.NewFileSystemStore(viper.GetString("store.path"))

	case "s3":
		s3Config := persist.S3Config{
			Endpoint:        viper.GetString("store.s3.endpoint"),
			AccessKeyID:     viper.GetString("store.s3.access_key_id"),
			SecretAccessKey: viper.GetString("store.s3.secret_access_key"),
			Bucket:          viper.GetString("store.s3.bucket"),
			KeyPrefix:       viper.GetString("store.s3.prefix"),
			UseSSL:          viper.GetBool("store.s3.use_ssl"),
			Region:          viper.GetString("store.s3.region"),
		}

		if err := validateS3Config(s3Config); err != nil {
			return nil, fmt.Errorf("invalid S3 configuration: %w", err)
		}

		return persist.NewS3Store(s3Config)

	default:
		return nil, fmt.Errorf("unsupported store type: %s. Supported types: filesystem, s3", storeType)
	}
}

func validateS3Config(config persist.S3Config) error {
	var missing []string

	if config.Bucket == "" {
		missing = append(missing, "store.s3.bucket")
	}
	if config.Region == "" {
		missing = append(missing, "store.s3.region")
	}

	hasAccessKey := config.AccessKeyID != ""
	hasSecretKey := config.SecretAccessKey != ""

	if hasAccessKey && !hasSecretKey {
		missing = append(missing, "store.s3.secret_access_key")
	}
	if !hasAccessKey && hasSecretKey {
		missing = append(missing, "store.s3.access_key_id")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}

// getCurrentUser retrieves the username of the currently logged-in user.
// It returns "unknown_user" if the user cannot be determined.
func getCurrentUser() string {
	currentUser, err := user.Current()
	if err != nil {
		// This can happen in restricted environments (e.g., scratch Docker
		// images without /etc/passwd)
		envUser := os.Getenv("USER")
		if envUser != "" {
			return envUser
		}
		return "unknown_user"
	}
	return currentUser.Username
}

// getHostname retrieves the hostname of the machine.
// It returns "unknown_host" if the hostname cannot be determined.
func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown_host"
	}
	return hostname
}
