package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lunevo/bidwire/internal/client"
	"github.com/lunevo/bidwire/internal/transport"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ServerURL string
	UserID    string
	Verbose   bool
}

// NewRootCommand creates the root command for the bidwire CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bidwire",
		Short: "bidwire - freelance marketplace negotiation client",
		Long: `A command-line client for the bidwire marketplace server.

Clients post projects and decide on bids; freelancers propose, respond to
counter-offers and withdraw. The watch command follows the push channel and
prints every change to the local entity store as it is reconciled.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.UserID == "" {
				return fmt.Errorf("--user is required")
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "http://localhost:8080", "marketplace server URL")
	cmd.PersistentFlags().StringVarP(&opts.UserID, "user", "u", "", "user id (required)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewProjectsCommand(opts))
	cmd.AddCommand(NewCreateProjectCommand(opts))
	cmd.AddCommand(NewBidsCommand(opts))
	cmd.AddCommand(NewProposeCommand(opts))
	cmd.AddCommand(NewAcceptCommand(opts))
	cmd.AddCommand(NewRejectCommand(opts))
	cmd.AddCommand(NewCounterCommand(opts))
	cmd.AddCommand(NewRespondCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// newClient builds a negotiation client for the session described by the
// global flags.
func newClient(opts *RootOptions) (*client.NegotiationClient, error) {
	logger := log.New(os.Stderr, "bidwire: ", log.LstdFlags)
	if !opts.Verbose {
		logger.SetOutput(io.Discard)
	}
	adapter, err := transport.NewAdapter(transport.Config{
		ServerURL: opts.ServerURL,
		UserID:    opts.UserID,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return client.New(adapter, logger), nil
}
