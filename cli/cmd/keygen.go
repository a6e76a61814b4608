package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	rubeen "github.com/RubeOS-packages/RubeEn"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen [name]",
	Short: "Generate a wrapped file key",
	Long: `Generate a fresh random file key, wrap it under the passphrase and save
the key file to the store. The key can later be used to encrypt by
importing it, or handed to another party who knows the passphrase.`,
	Args: cobra.ExactArgs(1),
	RunE: runKeygen,
}

var keygenFilename string

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenFilename, "for-file", "", "record the intended filename in the key file metadata")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	name := args[0]

	key, err := sealer.GenerateFileKey()
	if err != nil {
		return fmt.Errorf("key generation failed: %w", err)
	}
	defer key.Destroy()

	keyFileText, err := sealer.ExportWrappedKey(key, passphrase, rubeen.NewKeyMetadata(keygenFilename, ""))
	if err != nil {
		return fmt.Errorf("key wrapping failed: %w", err)
	}

	if err = store.SaveKeyFile(name, keyFileText); err != nil {
		return fmt.Errorf("failed to save key file: %w", err)
	}

	fmt.Printf("Generated file key %s -> %s%s\n", key.ID(), name, keyFileExt())
	return nil
}
