package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rubeen "github.com/RubeOS-packages/RubeEn"
	"github.com/RubeOS-packages/RubeEn/persist"
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt [name]",
	Short: "Decrypt an artifact",
	Long: `Decrypt an artifact from the store and write the plaintext to a file or
stdout.

When a companion key file exists for the artifact the key-wrap path is
used: the file key is unwrapped with the passphrase first, then the
envelope is decrypted with it. Otherwise the envelope is treated as
password-direct.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecrypt,
}

var decryptOutput string

func init() {
	rootCmd.AddCommand(decryptCmd)

	decryptCmd.Flags().StringVarP(&decryptOutput, "output", "o", "", "output file (default: stdout)")
}

func runDecrypt(cmd *cobra.Command, args []string) error {
	name := args[0]

	envelope, err := store.LoadEnvelope(name)
	if err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return fmt.Errorf("no envelope named %s in the store", name)
		}
		return fmt.Errorf("failed to load envelope: %w", err)
	}

	hasKeyFile, err := store.KeyFileExists(name)
	if err != nil {
		return fmt.Errorf("failed to check for key file: %w", err)
	}

	var plaintext []byte
	if hasKeyFile {
		keyFileText, err := store.LoadKeyFile(name)
		if err != nil {
			return fmt.Errorf("failed to load key file: %w", err)
		}
		plaintext, _, err = sealer.ImportKeyAndDecrypt(envelope, keyFileText, passphrase)
		if err != nil {
			return decryptError(err)
		}
	} else {
		plaintext, err = sealer.DecryptDirect(envelope, passphrase)
		if err != nil {
			return decryptError(err)
		}
	}

	if decryptOutput == "" || decryptOutput == "-" {
		_, err = os.Stdout.Write(plaintext)
		return err
	}

	if err = os.WriteFile(decryptOutput, plaintext, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", decryptOutput, err)
	}
	fmt.Fprintf(os.Stderr, "Decrypted %s -> %s (%s)\n", name, decryptOutput, formatBytes(int64(len(plaintext))))
	return nil
}

// decryptError rewrites taxonomy errors into actionable CLI messages.
func decryptError(err error) error {
	switch {
	case errors.Is(err, rubeen.ErrAuthenticationFailed):
		return fmt.Errorf("decryption failed: wrong passphrase or corrupted artifact")
	case errors.Is(err, rubeen.ErrMalformedEnvelope):
		return fmt.Errorf("decryption failed: not a valid envelope")
	case errors.Is(err, rubeen.ErrMalformedKeyFile):
		return fmt.Errorf("decryption failed: not a valid key file")
	default:
		return fmt.Errorf("decryption failed: %w", err)
	}
}
