package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RubeOS-packages/RubeEn/audit"
)

var (
	auditJSONOutput   bool
	auditSince        string
	auditUntil        string
	auditAction       string
	auditKeyID        string
	auditLimit        int
	auditFailuresOnly bool
	auditKeyOpsOnly   bool
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query audit logs",
	Long: `Query the audit trail of encryption operations.

Examples:
  # All recent events
  rubeen audit query --audit --audit-file rubeen-audit.log

  # Failed decryptions in the last 24 hours
  rubeen audit query --failures-only --action decrypt_direct --since "$(date -d '24 hours ago' -Iseconds)"

  # Everything that touched a specific file key
  rubeen audit query --key-id 7f0c7a2e-...`,
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query audit events with filters",
	RunE:  runAuditQuery,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd)

	auditQueryCmd.Flags().BoolVar(&auditJSONOutput, "json", false, "output in JSON format")
	auditQueryCmd.Flags().StringVar(&auditSince, "since", "", "events after this time (RFC3339)")
	auditQueryCmd.Flags().StringVar(&auditUntil, "until", "", "events before this time (RFC3339)")
	auditQueryCmd.Flags().StringVar(&auditAction, "action", "", "filter by action name")
	auditQueryCmd.Flags().StringVar(&auditKeyID, "key-id", "", "filter by file key ID")
	auditQueryCmd.Flags().IntVar(&auditLimit, "limit", 100, "maximum events to return")
	auditQueryCmd.Flags().BoolVar(&auditFailuresOnly, "failures-only", false, "only failed operations")
	auditQueryCmd.Flags().BoolVar(&auditKeyOpsOnly, "key-operations", false, "only operations that touched key material")
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	logger, err := audit.NewLogger(&audit.Config{
		Enabled: true,
		Type:    audit.FileAuditType,
		Options: map[string]interface{}{
			"file_path": viper.GetString("audit.options.file_path"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer logger.Close()

	options := audit.QueryOptions{
		Action:        auditAction,
		KeyID:         auditKeyID,
		Limit:         auditLimit,
		KeyOperations: auditKeyOpsOnly,
	}

	if auditSince != "" {
		since, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return fmt.Errorf("invalid --since time: %w", err)
		}
		options.Since = &since
	}
	if auditUntil != "" {
		until, err := time.Parse(time.RFC3339, auditUntil)
		if err != nil {
			return fmt.Errorf("invalid --until time: %w", err)
		}
		options.Until = &until
	}
	if auditFailuresOnly {
		failed := false
		options.Success = &failed
	}

	result, err := logger.Query(options)
	if err != nil {
		return fmt.Errorf("audit query failed: %w", err)
	}

	if auditJSONOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(result.Events) == 0 {
		fmt.Println("No matching audit events.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "TIME\tACTION\tOK\tKEY ID\tERROR")
	for _, event := range result.Events {
		ok := "yes"
		if !event.Success {
			ok = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			event.Timestamp.Format(time.RFC3339), event.Action, ok, event.KeyID, event.Error)
	}
	w.Flush()

	fmt.Printf("\n%d of %d events shown (%d total in log)\n",
		len(result.Events), result.Filtered, result.TotalCount)
	if result.HasMore {
		fmt.Println("More events available; raise --limit to see them.")
	}
	return nil
}
