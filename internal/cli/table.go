package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/alexander-akhmetov/mat/internal/domain"
)

// StatusTable renders work items as a bordered table. Colors follow the
// renderer's detected profile, so a non-terminal writer gets plain text.
func StatusTable(out io.Writer, items []*domain.WorkItem) string {
	r := lipgloss.NewRenderer(out)

	headerStyle := r.NewStyle().Bold(true).Foreground(lipgloss.Color(strconv.Itoa(colorMagenta))).Padding(0, 1)
	cellStyle := r.NewStyle().Padding(0, 1)
	statusStyles := map[domain.Status]lipgloss.Style{
		domain.StatusCompleted:  cellStyle.Foreground(lipgloss.Color(strconv.Itoa(colorGreen))),
		domain.StatusFailed:     cellStyle.Foreground(lipgloss.Color(strconv.Itoa(colorRed))),
		domain.StatusBlocked:    cellStyle.Foreground(lipgloss.Color(strconv.Itoa(colorYellow))),
		domain.StatusInProgress: cellStyle.Foreground(lipgloss.Color(strconv.Itoa(colorCyan))),
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color(strconv.Itoa(colorDim)))).
		Headers("ID", "PRIORITY", "STATUS", "TITLE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(items) {
				if s, ok := statusStyles[items[row].Status]; ok {
					return s
				}
			}
			return cellStyle
		})

	for _, item := range items {
		t.Row(item.ID, formatPriority(item.Priority), item.Status.String(), item.Title)
	}
	return t.Render()
}

func formatPriority(p int) string {
	if p == domain.DefaultPriority {
		return "-"
	}
	return fmt.Sprintf("%d", p)
}
