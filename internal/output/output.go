package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/bugs/internal/models"
)

// UI provides colored output and respects verbose mode.
type UI struct {
	Verbose bool
	Out     io.Writer
	ErrOut  io.Writer
}

// New creates a UI with default stdout/stderr writers.
func New() *UI {
	return &UI{
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

var (
	infoPrefix    = color.New(color.FgHiBlue).Sprint("i")
	successPrefix = color.New(color.FgHiGreen).Sprint("✓")
	warningPrefix = color.New(color.FgHiYellow).Sprint("⚠")
	errorPrefix   = color.New(color.FgHiRed).Sprint("✗")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  →")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	bold          = color.New(color.Bold).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// StatusColor returns the string colored by bug status.
func StatusColor(status string) string {
	switch strings.ToLower(status) {
	case string(models.BugStatusOpen):
		return red(status)
	case string(models.BugStatusInProgress):
		return yellow(status)
	case string(models.BugStatusResolved):
		return green(status)
	default:
		return status
	}
}

// Age formats the time since t in a short human form like "3h" or "2d".
func Age(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func (u *UI) Info(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", infoPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Success(format string, a ...any) {
	fmt.Fprintf(u.Out, "%s %s\n", successPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Warning(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", warningPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) Error(format string, a ...any) {
	fmt.Fprintf(u.ErrOut, "%s %s\n", errorPrefix, fmt.Sprintf(format, a...))
}

func (u *UI) VerboseLog(format string, a ...any) {
	if u.Verbose {
		fmt.Fprintf(u.Out, "%s %s\n", verbosePrefix, fmt.Sprintf(format, a...))
	}
}

// Table creates a new tablewriter configured with consistent styling.
func (u *UI) Table(headers []string) *tablewriter.Table {
	table := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	table.Header(headers)
	return table
}

// BugTable renders bugs as an ID/Status/Title/Age table. An empty list
// prints "No bugs reported." instead.
func (u *UI) BugTable(bugs []*models.Bug, now time.Time) error {
	if len(bugs) == 0 {
		fmt.Fprintln(u.Out, "No bugs reported.")
		return nil
	}

	table := u.Table([]string{"ID", "Status", "Title", "Age"})
	for _, b := range bugs {
		if err := table.Append([]string{
			b.ID,
			StatusColor(string(b.Status)),
			truncate(b.Title, 60),
			Age(b.CreatedAt, now),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// BugDetail prints every field of a single bug.
func (u *UI) BugDetail(b *models.Bug) {
	fmt.Fprintf(u.Out, "%s\n", bold(b.Title))
	fmt.Fprintf(u.Out, "  ID:          %s\n", b.ID)
	fmt.Fprintf(u.Out, "  Status:      %s\n", StatusColor(string(b.Status)))
	fmt.Fprintf(u.Out, "  Created:     %s\n", b.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(u.Out, "  Updated:     %s\n", b.UpdatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(u.Out, "\n%s\n", b.Description)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
