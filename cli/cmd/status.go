package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and protection status",
	Long:  "Display information about the configured store and the memory protection level in effect.",
	RunE:  showStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func showStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("RubeEn Status")
	fmt.Println("=============")

	fmt.Printf("Memory Protection: %s\n", sealer.MemoryProtectionLevel())

	fmt.Printf("Store Type: %s\n", store.GetType())
	if err := store.Ping(); err != nil {
		fmt.Printf("Store: UNREACHABLE - %v\n", err)
	} else {
		fmt.Println("Store: reachable")
	}

	artifacts, err := store.List()
	if err != nil {
		fmt.Printf("Artifacts: ERROR - %v\n", err)
	} else {
		withKeys := 0
		for _, a := range artifacts {
			if a.HasKeyFile {
				withKeys++
			}
		}
		fmt.Printf("Artifacts: %d (%d with key files)\n", len(artifacts), withKeys)
	}

	if store.GetType() == "filesystem" {
		fmt.Printf("Store Path: %s\n", viper.GetString("store.path"))
	}

	return nil
}
