package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lunevo/bidwire/internal/models"
)

// NewProjectsCommand creates the projects command.
func NewProjectsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			if err := c.LoadProjects(cmd.Context()); err != nil {
				return err
			}
			for _, project := range c.Store().Projects() {
				fmt.Printf("%s  %-10s  %8.2f  %s  client=%s", project.ID, project.Status, project.Budget, project.Title, project.ClientID)
				if project.AssignedFreelancerID != "" {
					fmt.Printf("  assigned=%s", project.AssignedFreelancerID)
				}
				fmt.Println()
			}
			return nil
		},
	}
}

// NewCreateProjectCommand creates the create-project command.
func NewCreateProjectCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		title    string
		budget   float64
		deadline string
	)

	cmd := &cobra.Command{
		Use:   "create-project",
		Short: "Create a new open project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var parsedDeadline time.Time
			if deadline != "" {
				var err error
				parsedDeadline, err = time.Parse("2006-01-02", deadline)
				if err != nil {
					return fmt.Errorf("invalid deadline %q, expected YYYY-MM-DD", deadline)
				}
			}

			c, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			project, err := c.CreateProject(cmd.Context(), models.ProjectRequest{
				Title:    title,
				Budget:   budget,
				Deadline: parsedDeadline,
				ClientID: rootOpts.UserID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created project %s (%s)\n", project.ID, project.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "project title (required)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "project budget (required)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("budget")

	return cmd
}

// NewBidsCommand creates the bids command.
func NewBidsCommand(rootOpts *RootOptions) *cobra.Command {
	var sortByAmount bool

	cmd := &cobra.Command{
		Use:   "bids <projectId>",
		Short: "List the bids on a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			if err := c.RefreshProject(cmd.Context(), args[0]); err != nil {
				return err
			}
			return printBids(c, args[0], sortByAmount)
		},
	}

	cmd.Flags().BoolVar(&sortByAmount, "by-amount", false, "sort by amount instead of creation time")
	return cmd
}
