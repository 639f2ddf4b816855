package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/alexanderramin/chapterwise/internal/clock"
	"github.com/alexanderramin/chapterwise/internal/domain"
	"github.com/alexanderramin/chapterwise/internal/store"
)

// DefaultWriteDelay is the quiet period before a debounced write is sent.
const DefaultWriteDelay = 500 * time.Millisecond

// WriteResultFunc observes every persisted or failed write.
type WriteResultFunc func(doc DocKind, userID string, err error)

// Writer debounces progress and settings writes per user over a backend.
type Writer struct {
	progress *Debouncer[domain.UserData]
	settings *Debouncer[domain.Settings]
}

func NewWriter(backend store.Backend, clk clock.Clock, delay time.Duration, onResult WriteResultFunc) *Writer {
	report := func(doc DocKind) ResultFunc {
		return func(userID string, err error) {
			if onResult != nil {
				onResult(doc, userID, err)
			}
		}
	}
	return &Writer{
		progress: NewDebouncer[domain.UserData](clk, delay, backend.SaveProgress, report(DocProgress)),
		settings: NewDebouncer[domain.Settings](clk, delay, backend.SaveSettings, report(DocSettings)),
	}
}

// Delay returns the shared quiet period.
func (w *Writer) Delay() time.Duration { return w.progress.Delay() }

func (w *Writer) ScheduleProgress(userID string, data domain.UserData) {
	w.progress.Schedule(userID, data)
}

func (w *Writer) ScheduleSettings(userID string, settings domain.Settings) {
	w.settings.Schedule(userID, settings)
}

// Flush sends both pending documents for userID now.
func (w *Writer) Flush(ctx context.Context, userID string) error {
	return errors.Join(w.progress.Flush(ctx, userID), w.settings.Flush(ctx, userID))
}

// FlushAll sends every pending document.
func (w *Writer) FlushAll(ctx context.Context) error {
	return errors.Join(w.progress.FlushAll(ctx), w.settings.FlushAll(ctx))
}

// Cancel drops both pending documents for userID.
func (w *Writer) Cancel(userID string) {
	w.progress.Cancel(userID)
	w.settings.Cancel(userID)
}

// Pending reports whether userID has any unsent document.
func (w *Writer) Pending(userID string) bool {
	return w.progress.Pending(userID) || w.settings.Pending(userID)
}
