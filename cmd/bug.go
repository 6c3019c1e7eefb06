package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/bugs/internal/models"
	"github.com/joescharf/bugs/internal/validate"
)

var (
	bugListStatus string

	bugTitle       string
	bugDescription string
	bugStatus      string
)

var bugListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List bugs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun(cmd.Context(), bugListStatus)
	},
}

var bugShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single bug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugShowRun(cmd.Context(), args[0])
	},
}

var bugAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Report a new bug",
	Example: `  bugs add --title "Login fails" --desc "500 after submitting the form"
  bugs add --title "Slow dashboard" --desc "Takes 10s to load" --status in-progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugAddRun(cmd.Context(), models.BugInput{
			Title:       bugTitle,
			Description: bugDescription,
			Status:      models.BugStatus(bugStatus),
		})
	},
}

var bugUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a bug's title, description or status",
	Long: `Update a bug. Fields that are not given keep their current value.

  bugs update 01J... --status resolved`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugUpdateRun(cmd.Context(), args[0], models.BugInput{
			Title:       bugTitle,
			Description: bugDescription,
			Status:      models.BugStatus(bugStatus),
		})
	},
}

var bugDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a bug",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugDeleteRun(cmd.Context(), args[0])
	},
}

func init() {
	bugListCmd.Flags().StringVar(&bugListStatus, "status", "", "Filter by status (open, in-progress, resolved)")

	for _, c := range []*cobra.Command{bugAddCmd, bugUpdateCmd} {
		c.Flags().StringVarP(&bugTitle, "title", "t", "", "Bug title")
		c.Flags().StringVarP(&bugDescription, "desc", "d", "", "Bug description")
		c.Flags().StringVarP(&bugStatus, "status", "s", "", "Status (open, in-progress, resolved)")
	}

	rootCmd.AddCommand(bugListCmd, bugShowCmd, bugAddCmd, bugUpdateCmd, bugDeleteCmd)
}

func bugListRun(ctx context.Context, status string) error {
	if status != "" && !validate.Status(status) {
		return fmt.Errorf("invalid status %q (want open, in-progress or resolved)", status)
	}

	bugs, err := newClient().ListBugs(ctx)
	if err != nil {
		return err
	}

	if status != "" {
		filtered := bugs[:0]
		for _, b := range bugs {
			if string(b.Status) == status {
				filtered = append(filtered, b)
			}
		}
		bugs = filtered
	}

	return ui.BugTable(bugs, time.Now())
}

func bugShowRun(ctx context.Context, id string) error {
	bug, err := newClient().GetBug(ctx, id)
	if err != nil {
		return err
	}
	ui.BugDetail(bug)
	return nil
}

func bugAddRun(ctx context.Context, in models.BugInput) error {
	bug, err := newClient().CreateBug(ctx, in)
	if err != nil {
		return err
	}
	ui.Success("Reported bug %s: %s", bug.ID, bug.Title)
	return nil
}

func bugUpdateRun(ctx context.Context, id string, in models.BugInput) error {
	if in.Title == "" && in.Description == "" && in.Status == "" {
		return fmt.Errorf("nothing to update: pass --title, --desc or --status")
	}

	c := newClient()
	current, err := c.GetBug(ctx, id)
	if err != nil {
		return err
	}
	if in.Title == "" {
		in.Title = current.Title
	}
	if in.Description == "" {
		in.Description = current.Description
	}
	if in.Status == "" {
		in.Status = current.Status
	}

	bug, err := c.UpdateBug(ctx, id, in)
	if err != nil {
		return err
	}
	ui.Success("Updated bug %s (%s)", bug.ID, bug.Status)
	return nil
}

func bugDeleteRun(ctx context.Context, id string) error {
	if err := newClient().DeleteBug(ctx, id); err != nil {
		return err
	}
	ui.Success("Bug deleted: %s", id)
	return nil
}
