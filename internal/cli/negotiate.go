package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lunevo/bidwire/internal/client"
	"github.com/lunevo/bidwire/internal/models"
)

// NewProposeCommand creates the propose command.
func NewProposeCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		amount   float64
		days     int
		proposal string
	)

	cmd := &cobra.Command{
		Use:   "propose <projectId>",
		Short: "Propose a bid on an open project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			bid, err := c.Propose(cmd.Context(), args[0], amount, days, proposal)
			if err != nil {
				return describeOutcome(err)
			}
			fmt.Printf("bid %s submitted (%s)\n", bid.ID, bid.Status)
			return nil
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "bid amount (required)")
	cmd.Flags().IntVar(&days, "days", 0, "delivery time in days (required)")
	cmd.Flags().StringVar(&proposal, "proposal", "", "proposal text, at least 50 characters (required)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("days")
	_ = cmd.MarkFlagRequired("proposal")

	return cmd
}

// NewAcceptCommand creates the accept command.
func NewAcceptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <projectId> <bidId>",
		Short: "Accept a bid, assign the project and reject the other bids",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := refreshedClient(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			if err := c.Accept(cmd.Context(), args[0], args[1]); err != nil {
				return describeOutcome(err)
			}
			fmt.Printf("bid %s accepted\n", args[1])
			return printBids(c, args[0], false)
		},
	}
}

// NewRejectCommand creates the reject command.
func NewRejectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <projectId> <bidId>",
		Short: "Reject a bid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := refreshedClient(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			if err := c.Reject(cmd.Context(), args[0], args[1]); err != nil {
				return describeOutcome(err)
			}
			fmt.Printf("bid %s rejected\n", args[1])
			return nil
		},
	}
}

// NewCounterCommand creates the counter command.
func NewCounterCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		amount  float64
		days    int
		message string
	)

	cmd := &cobra.Command{
		Use:   "counter <projectId> <bidId>",
		Short: "Send a counter-offer against a pending bid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := refreshedClient(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			if err := c.Counter(cmd.Context(), args[0], args[1], amount, days, message); err != nil {
				return describeOutcome(err)
			}
			fmt.Printf("counter-offer sent on bid %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().Float64Var(&amount, "amount", 0, "counter-offer amount (required)")
	cmd.Flags().IntVar(&days, "days", 0, "counter-offer delivery time in days (required)")
	cmd.Flags().StringVar(&message, "message", "", "message to the freelancer, 10-500 characters (required)")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("days")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

// NewRespondCommand creates the respond command.
func NewRespondCommand(rootOpts *RootOptions) *cobra.Command {
	var decline bool

	cmd := &cobra.Command{
		Use:   "respond <projectId> <bidId>",
		Short: "Accept or decline a counter-offer on your bid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := refreshedClient(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			if err := c.RespondToCounter(cmd.Context(), args[1], !decline); err != nil {
				return describeOutcome(err)
			}
			if decline {
				fmt.Printf("counter-offer on bid %s declined, original terms stand\n", args[1])
			} else {
				fmt.Printf("counter-offer on bid %s accepted, terms updated; awaiting the client's final accept\n", args[1])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&decline, "decline", false, "decline the counter-offer instead of accepting it")
	return cmd
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <projectId> <bidId>",
		Short: "Withdraw your bid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := refreshedClient(cmd, rootOpts, args[0])
			if err != nil {
				return err
			}
			if err := c.Withdraw(cmd.Context(), args[1]); err != nil {
				return describeOutcome(err)
			}
			fmt.Printf("bid %s withdrawn\n", args[1])
			return nil
		},
	}
}

// refreshedClient builds a client and primes its store with the project the
// command is about to mutate. One-shot commands start from an empty cache.
func refreshedClient(cmd *cobra.Command, rootOpts *RootOptions, projectId string) (*client.NegotiationClient, error) {
	c, err := newClient(rootOpts)
	if err != nil {
		return nil, err
	}
	if err := c.RefreshProject(cmd.Context(), projectId); err != nil {
		return nil, err
	}
	return c, nil
}

// describeOutcome rewords the one error a user cannot act on directly: a
// timed-out command whose outcome is unknown.
func describeOutcome(err error) error {
	if models.IsKind(err, models.KindUnknown) {
		return fmt.Errorf("%w\nthe command may still have been applied; re-run 'bids' to see the current state", err)
	}
	return err
}

func printBids(c *client.NegotiationClient, projectId string, byAmount bool) error {
	sortBy := client.SortByCreated
	if byAmount {
		sortBy = client.SortByAmount
	}
	for _, bid := range c.BidTable(projectId, sortBy) {
		fmt.Printf("%s  %-10s  %8.2f  %3dd  freelancer=%s", bid.ID, bid.Status, bid.Amount, bid.DeliveryTimeDays, bid.FreelancerID)
		if bid.CounterOffer != nil {
			fmt.Printf("  counter=%.2f/%dd", bid.CounterOffer.Amount, bid.CounterOffer.DeliveryTimeDays)
		}
		if bid.CounterOfferAccepted {
			fmt.Print("  counter-accepted")
		}
		if bid.CounterOfferRejected {
			fmt.Print("  counter-declined")
		}
		fmt.Println()
	}
	return nil
}
