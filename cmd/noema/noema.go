// Package noemacmder
package noemacmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/poucet/noema-sub001/cmd/noema/config"
	gccmder "github.com/poucet/noema-sub001/cmd/noema/gc"
	initcmder "github.com/poucet/noema-sub001/cmd/noema/init"
	statuscmder "github.com/poucet/noema-sub001/cmd/noema/status"
	versioncmder "github.com/poucet/noema-sub001/cmd/version"
)

const noemaLongDesc string = `Noema is the persistence core for branching conversations and documents.

Inspect and maintain a noema store using:
  noema init      Initialize a local .noema/ directory
  noema status    Show store contents and the active workspace
  noema gc        Sweep unreferenced content blocks
  noema config    Manage persistent configuration`

const noemaShortDesc string = "Noema - versioned conversation store"

func NewNoemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "noema",
		Short: noemaShortDesc,
		Long:  noemaLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .noema/ directory location")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(gccmder.NewGCCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
