package extract

import (
	"time"

	"github.com/rs/zerolog"
)

// Observer receives structured progress events from a pipeline run. Events
// fire between generation calls; implementations should not block.
type Observer interface {
	BatchStarted(index, total int, batch PageBatch)
	BatchDecoded(index int, strategy string, pairs int, elapsed time.Duration)
	BatchFailed(index int, err error)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) BatchStarted(int, int, PageBatch)             {}
func (NopObserver) BatchDecoded(int, string, int, time.Duration) {}
func (NopObserver) BatchFailed(int, error)                       {}

// LogObserver emits pipeline events through zerolog.
type LogObserver struct {
	Log zerolog.Logger
}

func (o LogObserver) BatchStarted(index, total int, batch PageBatch) {
	o.Log.Info().
		Int("batch", index).
		Int("batches", total).
		Int("page_start", batch.Start).
		Int("page_end", batch.End).
		Int("chars", len(batch.Text)).
		Msg("extraction batch started")
}

func (o LogObserver) BatchDecoded(index int, strategy string, pairs int, elapsed time.Duration) {
	o.Log.Info().
		Int("batch", index).
		Str("strategy", strategy).
		Int("pairs", pairs).
		Dur("elapsed", elapsed).
		Msg("extraction batch decoded")
}

func (o LogObserver) BatchFailed(index int, err error) {
	o.Log.Warn().
		Int("batch", index).
		Err(err).
		Msg("extraction batch failed")
}
