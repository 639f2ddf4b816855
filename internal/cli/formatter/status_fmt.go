package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/alexanderramin/chapterwise/internal/app"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/export"
)

const statusProgressBarWidth = 12

// FormatStatus renders the dashboard: one row per subject, then the
// composite, named bars and sync health.
func FormatStatus(resp *app.StatusResponse) string {
	var b strings.Builder

	twoPapers := resp.Level.HasPaperTwo()
	headers := []string{"SUBJECT", "PROGRESS", "P1"}
	if twoPapers {
		headers = append(headers, "P2")
	}
	headers = append(headers, "CHAPTERS")

	rows := make([][]string, 0, len(resp.Subjects))
	for _, s := range resp.Subjects {
		name := s.Name
		if s.Icon != "" {
			name = s.Icon + " " + name
		}
		row := []string{
			Bold(name),
			RenderProgress(s.Progress.Overall, statusProgressBarWidth),
			Percent(s.Progress.P1),
		}
		if twoPapers {
			row = append(row, Percent(s.Progress.P2))
		}
		row = append(row, Dim(humanize.Comma(int64(len(s.Chapters)))))
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		b.WriteString(Dim("No subjects yet. Run `chapterwise init --preset <id>` or `chapterwise subject add`.") + "\n")
	} else {
		b.WriteString(RenderTable(headers, rows, 2, 3))
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", Bold("Overall"), RenderProgress(resp.Composite.Composite, statusProgressBarWidth)))
	for _, bar := range resp.Bars {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			StyleBlue.Render(bar.Bar.Name),
			RenderProgress(bar.Value, statusProgressBarWidth),
			Dim(fmt.Sprintf("(%d subjects)", bar.Subjects))))
	}

	b.WriteString("\n")
	b.WriteString(FormatSync(resp.Sync) + "\n")
	return RenderBox(fmt.Sprintf("Progress · %s", levelLabel(resp.Level)), b.String())
}

// FormatSync renders the one-line sync summary.
func FormatSync(v app.SyncView) string {
	parts := []string{PhaseBadge(v.Phase)}
	if v.PendingWrites {
		parts = append(parts, StyleYellow.Render("saving…"))
	}
	if v.UnsyncedData || v.UnsyncedConfig {
		parts = append(parts, StyleRed.Render("unsynced changes"))
	}
	if v.SuppressedTotal > 0 {
		parts = append(parts, Dim(fmt.Sprintf("%s remote updates held back", humanize.Comma(int64(v.SuppressedTotal)))))
	}
	if v.LastError != "" {
		parts = append(parts, StyleRed.Render(Truncate(v.LastError, 60)))
	}
	return strings.Join(parts, Dim(" · "))
}

// FormatSubject renders the chapter grid of one subject: a row per chapter
// with a status cell per item. Notes are listed below with their age.
func FormatSubject(s app.SubjectView, now time.Time) string {
	var b strings.Builder
	headers := []string{"CH", "CHAPTER", "PAPER"}
	for _, it := range s.Items {
		headers = append(headers, strings.ToUpper(Truncate(it.Name, 8)))
	}
	headers = append(headers, "DONE")

	type noteLine struct {
		key  domain.EntryKey
		note string
		at   *time.Time
	}
	var notes []noteLine

	rows := make([][]string, 0, len(s.Chapters))
	for _, ch := range s.Chapters {
		row := []string{Dim(string(ch.ID)), Truncate(ch.Name, 32), fmt.Sprintf("%d", ch.Paper)}
		for _, c := range ch.Cells {
			cell := StatusCell(c.Status)
			if c.Note != "" {
				cell += StyleBlue.Render("*")
				notes = append(notes, noteLine{key: c.Key, note: c.Note, at: c.ModifiedAt})
			}
			row = append(row, cell)
		}
		row = append(row, Percent(ch.Progress))
		rows = append(rows, row)
	}
	right := make([]int, 0, len(s.Items)+1)
	for i := range s.Items {
		right = append(right, 3+i)
	}
	right = append(right, 3+len(s.Items))
	b.WriteString(RenderTable(headers, rows, right...))

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s  %s %s",
		Bold("Overall"), RenderProgress(s.Progress.Overall, statusProgressBarWidth),
		Dim("P1"), Percent(s.Progress.P1)))
	if s.Progress.P2 > 0 || hasPaperTwo(s) {
		b.WriteString(fmt.Sprintf("  %s %s", Dim("P2"), Percent(s.Progress.P2)))
	}
	b.WriteString("\n")

	if len(notes) > 0 {
		b.WriteString("\n" + Header("Notes") + "\n")
		for _, n := range notes {
			age := ""
			if n.at != nil {
				age = Dim(" (" + RelativeTime(*n.at, now) + ")")
			}
			b.WriteString(fmt.Sprintf("%s %s%s\n", StyleBlue.Render(n.key.ChapterID+"/"+n.key.ItemKey), n.note, age))
		}
	}
	return RenderBox(s.Name, b.String())
}

func hasPaperTwo(s app.SubjectView) bool {
	for _, ch := range s.Chapters {
		if ch.Paper == 2 {
			return true
		}
	}
	return false
}

// FormatSubjectList renders the configured subjects with their item lists.
func FormatSubjectList(subjects []app.SubjectView) string {
	rows := make([][]string, 0, len(subjects))
	for _, s := range subjects {
		rows = append(rows, []string{
			StyleBlue.Render(s.ID),
			Bold(s.Name),
			humanize.Comma(int64(len(s.Chapters))),
			strings.Join(domain.ItemKeys(s.Items), ", "),
		})
	}
	return RenderTable([]string{"KEY", "NAME", "CHAPTERS", "ITEMS"}, rows, 2)
}

// FormatReportSummary describes a written export.
func FormatReportSummary(r export.Report, path string, size int) string {
	return fmt.Sprintf("%s %s %s\n",
		StyleGreen.Render("✔"),
		fmt.Sprintf("Exported %d subjects to %s", len(r.Subjects), Bold(path)),
		Dim("("+humanize.Bytes(uint64(size))+")"))
}

func levelLabel(l domain.AcademicLevel) string {
	if l == "" {
		return string(domain.LevelHSC)
	}
	return string(l)
}
