package leakjournal

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/typedevent/pkg/typedevent"
	"github.com/randalmurphal/typedevent/pkg/typedevent/observability"
)

// FinalizedHandler is the handler type Watch attaches to HandlerFinalized.
type FinalizedHandler[S, A any] = typedevent.Handler[*typedevent.WeakEvent[S, A], typedevent.FinalizationNotice[S, A]]

// Watch records every handler reclaimed from ev into store.
//
// The returned handler is attached to ev.HandlerFinalized(); detach it to
// stop recording. Save failures are logged to logger (which may be nil) and
// otherwise dropped.
func Watch[S, A any](ev *typedevent.WeakEvent[S, A], store Store, logger *slog.Logger) (*FinalizedHandler[S, A], error) {
	h := typedevent.NewHandler(
		func(_ context.Context, src *typedevent.WeakEvent[S, A], n typedevent.FinalizationNotice[S, A]) error {
			rec := Record{
				ID:          uuid.New().String(),
				EventID:     src.ID(),
				EventName:   src.Name(),
				Handler:     n.HandlerName,
				ReclaimedAt: n.ReclaimedAt,
			}
			if err := store.Save(rec); err != nil {
				observability.LogJournalError(logger, n.HandlerName, "save", err)
				return err
			}
			return nil
		},
		typedevent.WithHandlerName("leakjournal"),
	)

	if err := ev.HandlerFinalized().Attach(h); err != nil {
		return nil, err
	}
	return h, nil
}
