package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/support-relay/relay/internal/domain"
	"github.com/support-relay/relay/internal/observability"
)

// DefaultDebounce is the delay between the first pending mutation and its flush.
const DefaultDebounce = 300 * time.Millisecond

const flushTimeout = 10 * time.Second

// TicketSource supplies point-in-time copies of tickets to persist.
type TicketSource interface {
	Snapshot(ids []string) []domain.Ticket
	SnapshotAll() []domain.Ticket
}

// ModeratorSource supplies the moderator identities to persist.
type ModeratorSource interface {
	All() []domain.Moderator
}

// Scheduler is the write side used by services after each mutation.
type Scheduler interface {
	MarkTicket(id string)
	ScheduleFlush(class EntityClass)
}

// FlusherDependencies bundles collaborators for the flusher.
type FlusherDependencies struct {
	Backend    Backend
	Tickets    TicketSource
	Moderators ModeratorSource
	Clock      clockwork.Clock
	Debounce   time.Duration
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Flusher coalesces mutations into at most one pending write per entity class.
// Failed writes keep their records dirty so the next flush retries them.
type Flusher struct {
	backend    Backend
	tickets    TicketSource
	moderators ModeratorSource
	clock      clockwork.Clock
	delay      time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics

	mu           sync.Mutex
	timers       map[EntityClass]clockwork.Timer
	dirtyTickets map[string]struct{}
	allTickets   bool
	modsDirty    bool

	// serializes physical writes so batches land in order
	writeMu sync.Mutex
}

// NewFlusher constructs a flusher.
func NewFlusher(deps FlusherDependencies) *Flusher {
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	delay := deps.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flusher{
		backend:      deps.Backend,
		tickets:      deps.Tickets,
		moderators:   deps.Moderators,
		clock:        clock,
		delay:        delay,
		logger:       logger,
		metrics:      deps.Metrics,
		timers:       make(map[EntityClass]clockwork.Timer),
		dirtyTickets: make(map[string]struct{}),
	}
}

// MarkTicket records a mutated ticket and schedules a ticket flush.
func (f *Flusher) MarkTicket(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirtyTickets[id] = struct{}{}
	f.scheduleLocked(ClassTickets)
}

// ScheduleFlush marks the whole class dirty and schedules a flush for it.
func (f *Flusher) ScheduleFlush(class EntityClass) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch class {
	case ClassTickets:
		f.allTickets = true
	case ClassModerators:
		f.modsDirty = true
	default:
		return
	}
	f.scheduleLocked(class)
}

func (f *Flusher) scheduleLocked(class EntityClass) {
	if _, pending := f.timers[class]; pending {
		return
	}
	f.timers[class] = f.clock.AfterFunc(f.delay, func() {
		defer f.FlushOnPanic()

		f.mu.Lock()
		delete(f.timers, class)
		f.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := f.flush(ctx, class); err != nil {
			f.logger.Error("scheduled flush failed", zap.String("class", string(class)), zap.Error(err))
		}
	})
}

// Pending reports whether a flush is scheduled for the class.
func (f *Flusher) Pending(class EntityClass) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.timers[class]
	return ok
}

// FlushNow cancels pending timers and synchronously writes everything dirty.
// It is used on shutdown and after fatal errors.
func (f *Flusher) FlushNow(ctx context.Context) error {
	f.mu.Lock()
	for class, timer := range f.timers {
		timer.Stop()
		delete(f.timers, class)
	}
	f.mu.Unlock()

	return errors.Join(
		f.flush(ctx, ClassTickets),
		f.flush(ctx, ClassModerators),
	)
}

// FlushOnPanic must be deferred directly at the top of a goroutine. It writes
// pending state before a panic terminates the process and then re-panics.
// A nil flusher only re-panics.
func (f *Flusher) FlushOnPanic() {
	r := recover()
	if r == nil {
		return
	}
	if f != nil {
		f.logger.Error("fatal error, flushing state", zap.Any("panic", r))
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		if err := f.FlushNow(ctx); err != nil {
			f.logger.Error("emergency flush failed", zap.Error(err))
		}
		cancel()
	}
	panic(r)
}

func (f *Flusher) flush(ctx context.Context, class EntityClass) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	switch class {
	case ClassTickets:
		return f.flushTickets(ctx)
	case ClassModerators:
		return f.flushModerators(ctx)
	}
	return fmt.Errorf("unknown entity class %q", class)
}

func (f *Flusher) flushTickets(ctx context.Context) error {
	f.mu.Lock()
	all := f.allTickets
	ids := make([]string, 0, len(f.dirtyTickets))
	for id := range f.dirtyTickets {
		ids = append(ids, id)
	}
	f.allTickets = false
	f.dirtyTickets = make(map[string]struct{})
	f.mu.Unlock()

	if !all && len(ids) == 0 {
		return nil
	}
	var snapshot []domain.Ticket
	if all {
		snapshot = f.tickets.SnapshotAll()
	} else {
		snapshot = f.tickets.Snapshot(ids)
	}

	err := f.backend.SaveTickets(ctx, snapshot)
	f.metrics.RecordFlush(string(ClassTickets), len(snapshot), err)
	if err != nil {
		f.mu.Lock()
		if failed, ok := failedRecords(err); ok {
			ids = failed
		} else if all {
			f.allTickets = true
		}
		for _, id := range ids {
			f.dirtyTickets[id] = struct{}{}
		}
		f.mu.Unlock()
		return fmt.Errorf("save tickets: %w", err)
	}
	f.logger.Debug("tickets flushed", zap.Int("count", len(snapshot)))
	return nil
}

func (f *Flusher) flushModerators(ctx context.Context) error {
	f.mu.Lock()
	dirty := f.modsDirty
	f.modsDirty = false
	f.mu.Unlock()

	if !dirty {
		return nil
	}
	mods := f.moderators.All()
	err := f.backend.SaveModerators(ctx, mods)
	f.metrics.RecordFlush(string(ClassModerators), len(mods), err)
	if err != nil {
		f.mu.Lock()
		f.modsDirty = true
		f.mu.Unlock()
		return fmt.Errorf("save moderators: %w", err)
	}
	f.logger.Debug("moderators flushed", zap.Int("count", len(mods)))
	return nil
}

// LoadInto populates the registries from the backend at startup.
func LoadInto(ctx context.Context, backend Backend, tickets interface{ Load([]domain.Ticket) }, moderators interface{ Load([]domain.Moderator) }) (int, int, error) {
	ts, err := backend.LoadTickets(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load tickets: %w", err)
	}
	mods, err := backend.LoadModerators(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("load moderators: %w", err)
	}
	tickets.Load(ts)
	moderators.Load(mods)
	return len(ts), len(mods), nil
}
