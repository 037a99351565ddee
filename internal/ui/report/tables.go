package report

import (
	"fmt"
	"strings"
	"time"

	"snippethost/internal/data/history"
	"snippethost/internal/engine/registry"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Padding(0, 1)
)

// RenderLibraries draws one row per parser binding, and one row with an empty
// parser column for libraries that have none.
func RenderLibraries(libs []registry.LibraryInfo) string {
	if len(libs) == 0 {
		return "No libraries loaded.\n"
	}

	rows := make([][]string, 0, len(libs))
	for _, lib := range libs {
		if len(lib.Parsers) == 0 {
			rows = append(rows, []string{lib.Path, lib.Description, "", ""})
			continue
		}
		for _, p := range lib.Parsers {
			rows = append(rows, []string{lib.Path, lib.Description, p.Name, p.Description})
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("LIBRARY", "DESCRIPTION", "PARSER", "PARSER DESCRIPTION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	return titleStyle.Render(fmt.Sprintf("Libraries (%d)", len(libs))) + "\n" + t.Render() + "\n"
}

// RenderHistory draws parse runs in the order given.
func RenderHistory(runs []history.Run) string {
	if len(runs) == 0 {
		return "No parse runs recorded.\n"
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := "ok"
		if !run.Success {
			status = "failed"
		}
		rows = append(rows, []string{
			run.CreatedAt.Local().Format(time.DateTime),
			status,
			run.Parser,
			run.Input,
			fmt.Sprintf("%d", run.ScopeCount),
			run.Duration.Round(time.Microsecond).String(),
			run.Error,
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WHEN", "STATUS", "PARSER", "INPUT", "SCOPES", "DURATION", "ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(runs) {
				if runs[row].Success {
					return successStyle
				}
				return failureStyle
			}
			return cellStyle
		})

	return titleStyle.Render(fmt.Sprintf("Recent parse runs (%d)", len(runs))) + "\n" + t.Render() + "\n"
}

// HistoryTSV renders runs as tab-separated values for scripting.
func HistoryTSV(runs []history.Run) string {
	var buf strings.Builder
	buf.WriteString("ID\tCreatedAt\tLibrary\tParser\tInput\tSuccess\tScopes\tDurationMs\tError\n")
	for _, run := range runs {
		buf.WriteString(fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%t\t%d\t%.3f\t%s\n",
			run.ID,
			run.CreatedAt.UTC().Format(time.RFC3339Nano),
			run.Library,
			run.Parser,
			run.Input,
			run.Success,
			run.ScopeCount,
			float64(run.Duration)/float64(time.Millisecond),
			strings.ReplaceAll(run.Error, "\t", " "),
		))
	}
	return buf.String()
}
