package command

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"pomodoro/internal/delivery"
	"pomodoro/internal/notification"
	"pomodoro/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = cellStyle.Foreground(lipgloss.Color("2"))
	failStyle   = cellStyle.Foreground(lipgloss.Color("1"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// RenderList draws the live notifications as of now.
func RenderList(ns []notification.Notification, now time.Time, showPercentage bool) string {
	headers := []string{
		"id", "work_remaining (min)", "break_remaining (min)",
		"start_at", "expired_at (work)", "expired_at (break)", "description",
	}
	if showPercentage {
		headers = append(headers, "percentage")
	}
	t := newTable(headers...)
	for _, n := range ns {
		row := []string{
			strconv.Itoa(int(n.ID)),
			notification.FormatRemaining(n.WorkMinutes, n.WorkRemaining(now)),
			notification.FormatRemaining(n.BreakMinutes, n.BreakRemaining(now)),
			notification.FormatTime(n.StartAt()),
			notification.FormatTime(n.WorkExpiresAt),
			notification.FormatTime(n.BreakExpiresAt),
			n.Description,
		}
		if showPercentage {
			row = append(row, fmt.Sprintf("%.2f%%", n.WorkPercentage(now)))
		}
		t.Row(row...)
	}
	return t.String()
}

// RenderHistory draws archived notifications, newest first as the store returns them.
func RenderHistory(arch []store.Archived) string {
	t := newTable("id", "work_time", "break_time", "started_at", "expired_at (work)", "expired_at (break)", "description")
	for _, a := range arch {
		t.Row(
			strconv.Itoa(int(a.ID)),
			strconv.Itoa(int(a.WorkMinutes)),
			strconv.Itoa(int(a.BreakMinutes)),
			notification.FormatTime(a.StartAt()),
			notification.FormatTime(a.WorkExpiresAt),
			notification.FormatTime(a.BreakExpiresAt),
			a.Description,
		)
	}
	return t.String()
}

// RenderReport draws one row per channel with O for success and X for failure.
func RenderReport(rep delivery.Report) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("result", "type", "reason").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0 && row < len(rep.Outcomes) && rep.Outcomes[row].OK():
				return okStyle
			case col == 0 || col == 2:
				return failStyle
			}
			return cellStyle
		})
	for _, o := range rep.Outcomes {
		mark := "O"
		if !o.OK() {
			mark = "X"
		}
		t.Row(mark, o.Channel, o.Reason())
	}
	return t.String()
}
