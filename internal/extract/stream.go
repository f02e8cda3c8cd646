package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/spherical/order-ocr/internal/domain"
)

// Stream runs Process in the background and reports it as events: start,
// one page_complete per page in order, then exactly one complete or error.
// The channel is closed after the terminal event. Sends block until the
// consumer reads or ctx is done.
func (s *Service) Stream(ctx context.Context, path string) <-chan domain.StreamEvent {
	eventCh := make(chan domain.StreamEvent)

	go func() {
		defer close(eventCh)

		emit := func(ev domain.StreamEvent) bool {
			ev.Timestamp = time.Now()
			select {
			case eventCh <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit(domain.StreamEvent{Type: domain.EventStart, Payload: fmt.Sprintf("Starting extraction of %s", path)}) {
			return
		}

		doc, err := s.Process(ctx, path, func(current, total int) {
			emit(domain.StreamEvent{
				Type:       domain.EventPageComplete,
				PageNumber: current,
				TotalPages: total,
				Payload:    fmt.Sprintf("Completed page %d of %d", current, total),
			})
		})
		if err != nil {
			emit(domain.StreamEvent{Type: domain.EventError, Err: err, Payload: err.Error()})
			return
		}

		emit(domain.StreamEvent{
			Type:       domain.EventComplete,
			TotalPages: doc.TotalPages,
			Document:   doc,
			Payload: fmt.Sprintf("Extraction complete: %d pages, %d items",
				doc.TotalPages, doc.TotalItems()),
		})
	}()

	return eventCh
}
