package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"media-studio/internal/models"
	"media-studio/internal/studio"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    60,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

var indicatorGlyph = map[studio.Indicator]string{
	studio.IndicatorPending:   "…",
	studio.IndicatorCompleted: "✓",
	studio.IndicatorFailed:    "✗",
}

func renderJobsTable(rows []studio.Row) string {
	if len(rows) == 0 {
		return "No jobs yet."
	}
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			shortID(r.JobID),
			indicatorGlyph[r.Indicator] + " " + r.Label,
			r.AssetName,
			rowDetail(r),
			formatAge(r.CreatedAt, time.Now()),
		})
	}
	return renderTable(
		[]string{"Job", "Status", "Asset", "Detail", "Created"},
		out,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
	)
}

// rowDetail is the single free-text column: music subtext while pending, the
// result link once done, the reason on failure.
func rowDetail(r studio.Row) string {
	switch r.Indicator {
	case studio.IndicatorCompleted:
		return r.ResultURL
	case studio.IndicatorFailed:
		return r.ErrorText
	}
	if r.Subtext != "" {
		return "♪ " + r.Subtext
	}
	return ""
}

func renderWatchFrame(snap studio.Snapshot, rows []studio.Row, interval time.Duration) string {
	var b strings.Builder
	switch {
	case !snap.Loaded && snap.Err == nil:
		b.WriteString("Loading jobs…\n")
	default:
		b.WriteString(renderJobsTable(rows))
		b.WriteString("\n")
	}
	if !snap.FetchedAt.IsZero() {
		fmt.Fprintf(&b, "Updated %s (poll #%d, every %s). Press Enter to refresh, Ctrl-C to quit.\n",
			snap.FetchedAt.Format("15:04:05"), snap.Seq, interval)
	}
	if snap.Err != nil {
		fmt.Fprintf(&b, "warning: %v; showing last known jobs\n", snap.Err)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderJobDetail(job models.Job, row studio.Row) string {
	lines := [][]string{
		{"ID", job.ID},
		{"Status", indicatorGlyph[row.Indicator] + " " + row.Label},
		{"Source", job.RequestImagePath},
		{"Thumbnail", row.Thumbnail},
		{"Prompt", job.RequestPrompt},
		{"Music", yesNo(job.IncludeMusic)},
	}
	if row.Subtext != "" {
		lines = append(lines, []string{"Music prompt", row.Subtext})
	}
	if row.ResultURL != "" {
		lines = append(lines, []string{"Result", row.ResultURL})
	}
	if row.ErrorText != "" {
		lines = append(lines, []string{"Error", row.ErrorText})
	}
	if row.Degraded != nil {
		lines = append(lines, []string{"Warning", row.Degraded.Error()})
	}
	lines = append(lines,
		[]string{"Created", job.CreatedAt.Local().Format(time.RFC1123)},
		[]string{"Updated", job.UpdatedAt.Local().Format(time.RFC1123)},
	)
	return renderTable([]string{"Field", "Value"}, lines, nil)
}

func jobsOf(jobs ...models.Job) []models.Job { return jobs }

func shortID(id string) string {
	return studio.JobHandle{ID: id}.ShortID()
}

func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return t.Local().Format("2006-01-02")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
