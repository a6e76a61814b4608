package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RubeOS-packages/RubeEn/persist"
)

func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rubeen.yaml")
}

func ensureConfigDir(configFile string) error {
	dir := filepath.Dir(configFile)
	return os.MkdirAll(dir, 0700)
}

func isValidConfigKey(key string) bool {
	validKeys := []string{
		"store.type",
		"store.path",
		"store.s3.endpoint",
		"store.s3.bucket",
		"store.s3.region",
		"store.s3.prefix",
		"store.s3.access_key_id",
		"store.s3.secret_access_key",
		"store.s3.use_ssl",
		"encryption.iterations",
		"encryption.obfuscate_key_files",
		"encryption.bind_artifacts",
		"audit.enabled",
		"audit.type",
		"audit.options.file_path",
	}

	for _, validKey := range validKeys {
		if key == validKey {
			return true
		}
	}
	return false
}

// convertStringValue converts CLI string input to the value type the config
// file should carry.
func convertStringValue(value string) interface{} {
	if value == "true" || value == "false" {
		return value == "true"
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// setNestedKey writes a dot-notation key into a nested config map, creating
// intermediate maps as needed.
func setNestedKey(config map[string]interface{}, key string, value interface{}) {
	parts := strings.Split(key, ".")

	current := config
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// isSensitiveConfigKey checks if a configuration key contains sensitive data
func isSensitiveConfigKey(key string) bool {
	sensitiveKeys := []string{"passphrase", "password", "secret", "key", "token", "auth"}
	lowerKey := strings.ToLower(key)

	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// maskSensitiveValues recursively masks sensitive values in configuration
func maskSensitiveValues(config map[string]interface{}) {
	for key, value := range config {
		if isSensitiveConfigKey(key) {
			config[key] = "[REDACTED]"
		} else if nested, ok := value.(map[string]interface{}); ok {
			maskSensitiveValues(nested)
		}
	}
}

// promptConfirmation prompts the user for yes/no confirmation
func promptConfirmation(message string) bool {
	fmt.Printf("%s (y/N): ", message)
	var response string
	fmt.Scanln(&response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

// fileExists checks if a file exists
func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}

func keyFileExt() string {
	return persist.KeyFileExt
}

// formatBytes renders a byte count human-readable.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
