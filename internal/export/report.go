// Package export renders progress reports as CSV, XLSX or PDF.
package export

import (
	"fmt"
	"time"

	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/progress"
)

// ItemValue is one item's average within a subject.
type ItemValue struct {
	Key   string
	Name  string
	Value float64
}

// SubjectRow summarizes one subject.
type SubjectRow struct {
	ID       string
	Name     string
	Chapters int
	Progress progress.Result
	Items    []ItemValue
}

// Report is a point-in-time summary of a user's progress.
type Report struct {
	GeneratedAt time.Time
	Level       domain.AcademicLevel
	Items       []domain.TrackableItem
	Subjects    []SubjectRow
	Composite   progress.Composite
	Bars        []progress.BarValue
}

// BuildReport computes every subject's progress plus the composite and bars.
// Subjects are listed in key order.
func BuildReport(data domain.UserData, settings domain.Settings, at time.Time) Report {
	r := Report{
		GeneratedAt: at,
		Level:       settings.AcademicLevel,
		Items:       progress.AllItems(settings),
		Composite:   progress.GlobalComposite(data, settings),
		Bars:        progress.Bars(data, settings),
	}
	for _, id := range settings.Syllabus.SortedKeys() {
		subj := settings.Syllabus[id]
		items := settings.ItemsFor(id)
		row := SubjectRow{
			ID:       id,
			Name:     settings.DisplayName(id, subj.Name),
			Chapters: len(subj.Chapters),
			Progress: progress.Calculate(id, domain.ItemKeys(items), data, settings.WeightsFor(id), items, settings.Syllabus),
		}
		for _, it := range items {
			v, _ := progress.SubjectItem(id, it.Key, data, settings)
			row.Items = append(row.Items, ItemValue{Key: it.Key, Name: settings.DisplayName(it.Key, it.Name), Value: v})
		}
		r.Subjects = append(r.Subjects, row)
	}
	return r
}

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

const (
	colSubject = "Subject"
	colOverall = "Overall"
	colPaper1  = "Paper 1"
	colPaper2  = "Paper 2"
)

func pct(v float64) string { return fmt.Sprintf("%.1f", v) }

// Table flattens the report into one row per subject followed by a
// composite row. Item columns follow Items; a subject that does not track an
// item leaves its cell empty. SSC reports omit the paper 2 column.
func (r Report) Table() Dataset {
	headers := []string{colSubject, colOverall, colPaper1}
	if r.Level.HasPaperTwo() {
		headers = append(headers, colPaper2)
	}
	itemCols := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		itemCols = append(itemCols, it.Name)
	}
	headers = append(headers, itemCols...)

	ds := Dataset{Headers: headers}
	for _, s := range r.Subjects {
		row := map[string]string{
			colSubject: s.Name,
			colOverall: pct(s.Progress.Overall),
			colPaper1:  pct(s.Progress.P1),
			colPaper2:  pct(s.Progress.P2),
		}
		for _, iv := range s.Items {
			for i, it := range r.Items {
				if it.Key == iv.Key {
					row[itemCols[i]] = pct(iv.Value)
				}
			}
		}
		ds.Rows = append(ds.Rows, row)
	}

	total := map[string]string{colSubject: "Composite", colOverall: pct(r.Composite.Composite)}
	for i, it := range r.Items {
		if e, ok := r.Composite.Breakdown[it.Key]; ok {
			total[itemCols[i]] = pct(e.Val)
		}
	}
	ds.Rows = append(ds.Rows, total)
	return ds
}
