package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RubeOS-packages/RubeEn/persist"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts in the store",
	Long:  "List all encrypted artifacts in the configured store, with sizes and whether a companion key file exists.",
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete an artifact",
	Long:  "Permanently delete an artifact's envelope and key file from the store.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var (
	listJSON    bool
	deleteForce bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)

	listCmd.Flags().BoolVar(&listJSON, "json", false, "output in JSON format")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "delete without confirmation")
}

func runList(cmd *cobra.Command, args []string) error {
	artifacts, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list artifacts: %w", err)
	}

	if listJSON {
		data, err := json.MarshalIndent(artifacts, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(artifacts) == 0 {
		fmt.Println("No artifacts in the store.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED\tKEY FILE")
	for _, a := range artifacts {
		keyFile := "-"
		if a.HasKeyFile {
			keyFile = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			a.Name, formatBytes(a.Size), a.ModifiedAt.Format(time.RFC3339), keyFile)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if !deleteForce {
		if !promptConfirmation(fmt.Sprintf("Delete artifact %s and its key file?", name)) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Delete(name); err != nil {
		if errors.Is(err, persist.ErrNotFound) {
			return fmt.Errorf("no artifact named %s in the store", name)
		}
		return fmt.Errorf("failed to delete: %w", err)
	}

	fmt.Printf("Deleted %s\n", name)
	return nil
}
