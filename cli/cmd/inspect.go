package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	rubeen "github.com/RubeOS-packages/RubeEn"
	"github.com/RubeOS-packages/RubeEn/internal/crypto"
	"github.com/RubeOS-packages/RubeEn/persist"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [name]",
	Short: "Show artifact details without decrypting",
	Long: `Display what is known about an artifact without a passphrase: envelope
size and checksum, and the plaintext metadata block of the companion key
file (creation time, agent, key ID) when one exists.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectJSON bool

type artifactReport struct {
	Name           string              `json:"name"`
	EnvelopeSize   int64               `json:"envelope_size,omitempty"`
	EnvelopeSHA256 string              `json:"envelope_sha256,omitempty"`
	MaxPlaintext   int64               `json:"max_plaintext_size,omitempty"`
	Mode           string              `json:"mode"`
	KeyMetadata    *rubeen.KeyMetadata `json:"key_metadata,omitempty"`
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output in JSON format")
}

func runInspect(cmd *cobra.Command, args []string) error {
	name := args[0]
	report := artifactReport{Name: name, Mode: "password"}

	envelope, err := store.LoadEnvelope(name)
	switch {
	case err == nil:
		report.EnvelopeSize = int64(len(envelope))
		report.EnvelopeSHA256 = crypto.CalculateChecksum(envelope)
	case errors.Is(err, persist.ErrNotFound):
		// Key file may still exist on its own (keygen output)
	default:
		return fmt.Errorf("failed to load envelope: %w", err)
	}

	hasKeyFile, err := store.KeyFileExists(name)
	if err != nil {
		return fmt.Errorf("failed to check for key file: %w", err)
	}
	if hasKeyFile {
		report.Mode = "key"
		keyFileText, err := store.LoadKeyFile(name)
		if err != nil {
			return fmt.Errorf("failed to load key file: %w", err)
		}
		meta, err := rubeen.ReadKeyFileMetadata(keyFileText)
		if err != nil {
			return fmt.Errorf("unreadable key file: %w", err)
		}
		report.KeyMetadata = meta
	}

	if envelope == nil && !hasKeyFile {
		return fmt.Errorf("no artifact named %s in the store", name)
	}

	// The plaintext is exactly the envelope minus the mode's fixed overhead
	if envelope != nil {
		overhead := rubeen.DirectOverhead
		if hasKeyFile {
			overhead = rubeen.KeyedOverhead
		}
		if len(envelope) >= overhead {
			report.MaxPlaintext = int64(len(envelope) - overhead)
		}
	}

	if inspectJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Name:\t%s\n", report.Name)
	fmt.Fprintf(w, "Mode:\t%s\n", report.Mode)
	if report.EnvelopeSize > 0 || report.EnvelopeSHA256 != "" {
		fmt.Fprintf(w, "Envelope size:\t%s\n", formatBytes(report.EnvelopeSize))
		fmt.Fprintf(w, "Plaintext size:\t%s\n", formatBytes(report.MaxPlaintext))
		fmt.Fprintf(w, "SHA-256:\t%s\n", report.EnvelopeSHA256)
	} else {
		fmt.Fprintf(w, "Envelope:\t(none)\n")
	}
	if meta := report.KeyMetadata; meta != nil {
		if meta.KeyID != "" {
			fmt.Fprintf(w, "Key ID:\t%s\n", meta.KeyID)
		}
		if meta.Filename != "" {
			fmt.Fprintf(w, "Original file:\t%s\n", meta.Filename)
		}
		if meta.Agent != "" {
			fmt.Fprintf(w, "Created by:\t%s\n", meta.Agent)
		}
		if meta.Timestamp != 0 {
			fmt.Fprintf(w, "Created at:\t%s\n", meta.CreatedAt().Format(time.RFC3339))
		}
	}
	return nil
}
