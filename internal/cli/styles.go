package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sanixdarker/strapisource/internal/source"
)

// Styles defines the summary styling.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the default styling.
func DefaultStyles() Styles {
	accent := lipgloss.Color("#00ff41")
	muted := lipgloss.Color("#666666")
	text := lipgloss.Color("#e0e0e0")
	border := lipgloss.Color("#333333")

	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),

		Header: lipgloss.NewStyle().
			Foreground(text).
			Bold(true).
			Padding(0, 1),

		Cell: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),

		Muted: lipgloss.NewStyle().
			Foreground(muted),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff4444")).
			Padding(0, 1),

		Success: lipgloss.NewStyle().
			Foreground(accent),

		Border: lipgloss.NewStyle().
			Foreground(border),
	}
}

// renderSummary writes one table row per content type followed by the
// errors of failed types.
func renderSummary(w io.Writer, rep *source.SyncReport, styles Styles) {
	failed := make(map[int]bool)
	rows := make([][]string, 0, len(rep.Collections))
	for i, c := range rep.Collections {
		kind := "collection"
		if c.Single {
			kind = "single"
		}
		status := "ok"
		if c.Err != nil || c.Failed > 0 {
			status = "failed"
			failed[i] = true
		}
		rows = append(rows, []string{
			c.Label,
			kind,
			c.NodeType,
			strconv.Itoa(c.Fetched),
			strconv.Itoa(c.Created),
			strconv.Itoa(c.Updated),
			strconv.FormatInt(c.Deleted, 10),
			status,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.Border).
		Headers("TYPE", "KIND", "NODE TYPE", "FETCHED", "CREATED", "UPDATED", "DELETED", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.Header
			case failed[row]:
				return styles.Error
			}
			return styles.Cell
		})

	fmt.Fprintln(w, styles.Title.Render("Sync summary"))
	fmt.Fprintln(w, t.Render())

	for _, c := range rep.Collections {
		if c.Err != nil {
			fmt.Fprintln(w, styles.Error.Render(fmt.Sprintf("%s: %v", c.Label, c.Err)))
		} else if c.Failed > 0 {
			fmt.Fprintln(w, styles.Error.Render(fmt.Sprintf("%s: %d entities failed", c.Label, c.Failed)))
		}
	}

	done := fmt.Sprintf("done in %s", rep.Duration.Round(time.Millisecond))
	if rep.Failed() {
		fmt.Fprintln(w, styles.Muted.Render(done))
		return
	}
	fmt.Fprintln(w, styles.Success.Render(done))
}
