package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/joescharf/codelens/internal/models"
)

// UI provides colored output and respects verbose/dry-run modes.
type UI struct {
	Verbose bool
	DryRun  bool
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
	successPrefix = color.New(color.FgHiGreen).Sprint("\u2713")
	warningPrefix = color.New(color.FgHiYellow).Sprint("\u26a0")
	errorPrefix   = color.New(color.FgHiRed).Sprint("\u2717")
	verbosePrefix = color.New(color.FgHiBlue).Sprint("  \u2192")
	cyan          = color.New(color.FgHiCyan).SprintFunc()
	green         = color.New(color.FgHiGreen).SprintFunc()
	yellow        = color.New(color.FgHiYellow).SprintFunc()
	red           = color.New(color.FgHiRed).SprintFunc()
	boldRed       = color.New(color.FgHiRed, color.Bold).SprintFunc()
)

// Cyan returns a cyan-colored string.
func Cyan(s string) string { return cyan(s) }

// Green returns a green-colored string.
func Green(s string) string { return green(s) }

// Yellow returns a yellow-colored string.
func Yellow(s string) string { return yellow(s) }

// Red returns a red-colored string.
func Red(s string) string { return red(s) }

// SeverityColor returns the severity name colored by how serious it is.
func SeverityColor(sev models.Severity) string {
	s := string(sev)
	switch sev {
	case models.SeverityCritical:
		return boldRed(s)
	case models.SeverityHigh:
		return red(s)
	case models.SeverityMedium:
		return yellow(s)
	case models.SeverityLow, models.SeverityInfo:
		return cyan(s)
	case models.SeverityNone:
		return green(s)
	default:
		return s
	}
}

// HealthColor returns a component status colored green, yellow or red.
func HealthColor(status string) string {
	switch strings.ToLower(status) {
	case "healthy", "ok", "running":
		return green(status)
	case "degraded":
		return yellow(status)
	default:
		return red(status)
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

func (u *UI) DryRunMsg(format string, a ...any) {
	if u.DryRun {
		u.Warning("[DRY-RUN] "+format, a...)
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

// aspectTitles are the section headings used by Review.
var aspectTitles = map[models.Aspect]string{
	models.AspectSyntax:         "Syntax",
	models.AspectSecurity:       "Security",
	models.AspectPerformance:    "Performance",
	models.AspectStyle:          "Style",
	models.AspectBestPractices:  "Best practices",
	models.AspectCommentQuality: "Comments",
}

// Review prints a summary line, one findings table covering every aspect and
// the explanations, if any.
func (u *UI) Review(r *models.AggregatedReview) {
	sum := r.Summary
	fmt.Fprintf(u.Out, "%s  %d chars  %d issue(s)  severity %s  %.1fs\n",
		cyan(sum.Language), sum.CodeLength, sum.TotalIssues,
		SeverityColor(r.SeverityLevel), r.ProcessingTimeSeconds)
	if r.RequiresHumanReview {
		u.Warning("Human review recommended")
	}
	for _, w := range r.Warnings {
		u.Warning("%s", w)
	}

	if sum.TotalIssues > 0 {
		fmt.Fprintln(u.Out)
		table := u.Table([]string{"ASPECT", "SEVERITY", "LOCATION", "DESCRIPTION"})
		for _, a := range models.Aspects {
			for _, f := range r.FindingsFor(a) {
				_ = table.Append([]string{aspectTitles[a], SeverityColor(f.Severity), f.Location, f.Description})
			}
		}
		_ = table.Render()
	} else {
		u.Success("No issues found")
	}

	if len(r.Explanations) > 0 {
		fmt.Fprintln(u.Out)
		for _, e := range r.Explanations {
			fmt.Fprintf(u.Out, "%s %s\n", cyan(e.Topic+":"), e.Explanation)
		}
	}
	for _, s := range r.ImprovementSuggestions {
		u.VerboseLog("%s: %s", s.Title, s.Description)
	}
}
