// Package tui provides the CLI presentation layer.
// Simple, streaming, no complex TUI - just clean prompts and output.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

// PrintHeader prints the banner at the top of a run.
func PrintHeader(version string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("  CASEFLOW") + mutedStyle.Render(" v"+version))
	fmt.Println(mutedStyle.Render("  Process state reconstruction for in-flight cases"))
	fmt.Println()
}

// RunReport summarizes a completed reconstruction run.
type RunReport struct {
	RunID        string
	Events       int
	CasesSeen    int
	CasesDropped int
	OutputPath   string
	Duration     time.Duration
}

// PrintRunReport prints the post-run summary.
func PrintRunReport(report *RunReport) {
	fmt.Println()
	fmt.Println(successStyle.Render("  ✓ RECONSTRUCTION COMPLETE"))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Run:"), titleStyle.Render(report.RunID))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Events:"), titleStyle.Render(formatNumber(int64(report.Events))))
	fmt.Printf("  %s %s %s\n",
		mutedStyle.Render("Cases:"),
		titleStyle.Render(formatNumber(int64(report.CasesSeen))),
		mutedStyle.Render(fmt.Sprintf("(%d dropped at an end event)", report.CasesDropped)))
	if report.OutputPath != "" {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Output:"), codeStyle.Render(report.OutputPath))
	}
	if report.Duration > 0 {
		throughput := float64(report.CasesSeen) / report.Duration.Seconds()
		fmt.Printf("  %s %s %s\n",
			mutedStyle.Render("Time:"),
			titleStyle.Render(formatDuration(report.Duration)),
			mutedStyle.Render(fmt.Sprintf("(%s cases/sec)", formatNumber(int64(throughput)))))
	}
	fmt.Println()
}

// PrintModelInfo prints a short summary of the loaded inputs.
func PrintModelInfo(activities, flows, nodes, edges int) {
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))
	fmt.Printf("  %s %s activities, %s flows\n",
		mutedStyle.Render("Model:"),
		titleStyle.Render(formatNumber(int64(activities))),
		titleStyle.Render(formatNumber(int64(flows))))
	fmt.Printf("  %s %s markings, %s edges\n",
		mutedStyle.Render("Graph:"),
		titleStyle.Render(formatNumber(int64(nodes))),
		titleStyle.Render(formatNumber(int64(edges))))
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))
}

// PrintWatchEvent prints a single line for a watch-triggered run.
func PrintWatchEvent(path string, report *RunReport, err error) {
	stamp := mutedStyle.Render(time.Now().Format("15:04:05"))
	if err != nil {
		fmt.Printf("  %s %s %s: %v\n", stamp, accentStyle.Render("✗"), path, err)
		return
	}
	fmt.Printf("  %s %s %s %s\n",
		stamp,
		successStyle.Render("✓"),
		path,
		mutedStyle.Render(fmt.Sprintf("%d cases in %s", report.CasesSeen, formatDuration(report.Duration))))
}

// PrintError prints an error line.
func PrintError(msg string) {
	fmt.Println(accentStyle.Render("  ✗ " + msg))
}

// ClearLine clears the current line.
func ClearLine() {
	fmt.Print("\r\033[K")
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar over the case count.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
