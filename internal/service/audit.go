package service

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/jjatencia/exorawebipad/internal/model"
	"github.com/jjatencia/exorawebipad/internal/repository"
)

// audit writes a local event. Failures are logged; they never fail the
// workflow that produced the event.
func audit(ctx context.Context, repo repository.EventRepository, lg *log.Logger, ev model.Event, details any) {
	if repo == nil {
		return
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			ev.Details = string(b)
		}
	}
	if err := repo.Create(context.WithoutCancel(ctx), &ev); err != nil && lg != nil {
		lg.Printf("[audit] write %s event: %v", ev.EventType, err)
	}
}

func discardLogger(lg *log.Logger) *log.Logger {
	if lg != nil {
		return lg
	}
	return log.New(io.Discard, "", 0)
}
