package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/support-relay/relay/internal/domain"
)

// EntityClass names a batch of records flushed together.
type EntityClass string

const (
	ClassTickets    EntityClass = "tickets"
	ClassModerators EntityClass = "moderators"
)

// Backend durably stores ticket and moderator records. Each ticket is an
// independent record keyed by id so a failed write affects one ticket only.
type Backend interface {
	LoadTickets(ctx context.Context) ([]domain.Ticket, error)
	SaveTickets(ctx context.Context, tickets []domain.Ticket) error
	LoadModerators(ctx context.Context) ([]domain.Moderator, error)
	SaveModerators(ctx context.Context, moderators []domain.Moderator) error
	Ping(ctx context.Context) error
	Close() error
}

// RecordError reports a write failure confined to a single ticket record.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("ticket %s: %v", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// failedRecords lists the ticket ids named by err. ok is false when any part
// of err is not tied to a single record.
func failedRecords(err error) (ids []string, ok bool) {
	errs := []error{err}
	if joined, isJoin := err.(interface{ Unwrap() []error }); isJoin {
		errs = joined.Unwrap()
	}
	for _, e := range errs {
		var rec *RecordError
		if !errors.As(e, &rec) {
			return nil, false
		}
		ids = append(ids, rec.ID)
	}
	return ids, true
}
