package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lunevo/bidwire/internal/store"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the push channel and print state changes as they land",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rootOpts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := c.LoadProjects(ctx); err != nil {
				return err
			}

			c.Store().SubscribeToChanges(func(change store.Change) {
				if change.BidID == "" {
					if project, ok := c.Store().GetProject(change.ProjectID); ok {
						fmt.Printf("project %s -> %s\n", project.ID, project.Status)
					}
					return
				}
				if bid, ok := c.Store().GetBid(change.BidID); ok {
					fmt.Printf("bid %s on project %s -> %s\n", bid.ID, bid.ProjectID, bid.Status)
				}
			})
			c.OnNotification(func(message string) {
				fmt.Printf("*** %s\n", message)
			})

			counts := c.Dashboard()
			fmt.Printf("watching as %s: %d open, %d in progress\n", rootOpts.UserID, counts.OpenProjects, counts.InProgressProjects)

			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
