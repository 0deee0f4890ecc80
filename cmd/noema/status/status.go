// Package statuscmder provides the status command for displaying the store
// contents and active workspace of the local .noema directory.
package statuscmder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/poucet/noema-sub001/pkg/cliui"
	"github.com/poucet/noema-sub001/pkg/config"
	"github.com/poucet/noema-sub001/pkg/dotdir"
	"github.com/poucet/noema-sub001/pkg/storage/backend"
)

const statusLongDesc string = `Show the current state of the noema store.

Reads the local .noema/ directory (or ~/.noema/) to display entity counts
and the active workspace: which conversation, view, and document the next
session resumes.

Examples:
  noema status`

const statusShortDesc string = "Show store contents and active workspace"

type StatusCommander struct {
	configDir string
}

func NewStatusCmd() *cobra.Command {
	cmder := &StatusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run(cmd.Context())
		},
	}

	return cmd
}

func (c *StatusCommander) run(ctx context.Context) error {
	manager := dotdir.NewManager()
	dir, err := manager.Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving noema directory: %w", err)
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	driver, err := backend.Open(ctx, cfg, dir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer driver.Close()

	if err := driver.Ping(ctx); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}

	conversations, err := driver.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}
	documents, err := driver.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("listing documents: %w", err)
	}
	collections, err := driver.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	fmt.Printf("\n  %s %s\n\n", cliui.KeyStyle.Render("Store:"), cliui.DimStyle.Render(dir))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Conversations:"), cliui.NameStyle.Render(strconv.Itoa(len(conversations))))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Documents:    "), cliui.NameStyle.Render(strconv.Itoa(len(documents))))
	fmt.Printf("  %s  %s\n\n", cliui.KeyStyle.Render("Collections:  "), cliui.NameStyle.Render(strconv.Itoa(len(collections))))

	state, err := manager.LoadWorkspaceState(c.configDir)
	if err != nil {
		return fmt.Errorf("loading workspace state: %w", err)
	}

	if state == nil {
		fmt.Printf("  %s No active workspace. Next session starts fresh.\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Conversation:"), cliui.IDStyle.Render(state.ConversationID))
	fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("View:        "), cliui.IDStyle.Render(state.ViewID))
	if state.DocumentID != "" {
		fmt.Printf("  %s  %s\n", cliui.KeyStyle.Render("Document:    "), cliui.IDStyle.Render(state.DocumentID))
	}
	fmt.Println()

	return nil
}
