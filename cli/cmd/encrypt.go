package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	rubeen "github.com/RubeOS-packages/RubeEn"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt [file]",
	Short: "Encrypt a file",
	Long: `Encrypt a file under the configured passphrase and save the resulting
artifacts to the store.

In password mode (the default) the output is a single self-contained
envelope. In key mode a random file key is generated, the envelope is
encrypted under it, and the key is wrapped under the passphrase into a
companion key file saved next to the envelope.`,
	Args: cobra.ExactArgs(1),
	RunE: runEncrypt,
}

var (
	encryptMode string
	encryptName string
)

func init() {
	rootCmd.AddCommand(encryptCmd)

	encryptCmd.Flags().StringVarP(&encryptMode, "mode", "m", "password", "encryption mode (password, key)")
	encryptCmd.Flags().StringVarP(&encryptName, "name", "n", "", "artifact name (default: input file basename)")
}

func runEncrypt(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	plaintext, err := readInput(inputPath)
	if err != nil {
		return err
	}

	name := encryptName
	if name == "" {
		name = filepath.Base(inputPath)
	}
	if name == "-" {
		return fmt.Errorf("artifact name is required when reading from stdin (use --name)")
	}

	switch encryptMode {
	case "password":
		envelope, err := sealer.EncryptDirect(plaintext, passphrase)
		if err != nil {
			return fmt.Errorf("encryption failed: %w", err)
		}
		if err = store.SaveEnvelope(name, envelope); err != nil {
			return fmt.Errorf("failed to save envelope: %w", err)
		}
		fmt.Printf("Encrypted %s (%s -> %s)\n", name, formatBytes(int64(len(plaintext))), formatBytes(int64(len(envelope))))

	case "key":
		key, err := sealer.GenerateFileKey()
		if err != nil {
			return fmt.Errorf("key generation failed: %w", err)
		}
		defer key.Destroy()

		envelope, err := sealer.EncryptWithKey(plaintext, key)
		if err != nil {
			return fmt.Errorf("encryption failed: %w", err)
		}

		keyFileText, err := sealer.ExportWrappedKey(key, passphrase, rubeen.NewKeyMetadata(name, ""))
		if err != nil {
			return fmt.Errorf("key wrapping failed: %w", err)
		}

		if err = store.SaveEnvelope(name, envelope); err != nil {
			return fmt.Errorf("failed to save envelope: %w", err)
		}
		if err = store.SaveKeyFile(name, keyFileText); err != nil {
			return fmt.Errorf("failed to save key file: %w", err)
		}
		fmt.Printf("Encrypted %s with file key %s (%s -> %s + key file)\n",
			name, key.ID(), formatBytes(int64(len(plaintext))), formatBytes(int64(len(envelope))))

	default:
		return fmt.Errorf("unknown mode: %s (must be password or key)", encryptMode)
	}

	return nil
}

// readInput reads the file at path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := readAllStdin()
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
