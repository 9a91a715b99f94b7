// Package archive moves finished challenges from the hot store to cold
// storage. A challenge is in one of two states: collecting (raw guess events
// accumulate in the hot store) or finalized (round stats are frozen and raw
// events live only in cold storage). The transition is one-way and is only
// recorded after the archived batch is confirmed durable, so a crash at any
// point leaves the events still in the hot store and the transition
// re-runnable.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eraguess/eraguess/internal/adapters/coldstore"
	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	"github.com/eraguess/eraguess/internal/domain/guesses"
	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
	"github.com/eraguess/eraguess/pkg/metrics"
)

const defaultPrefix = "challenges"

// Archiver performs the collecting-to-finalized transition and the
// post-finalization delta flushes.
type Archiver struct {
	store      hotstore.Store
	archive    coldstore.Archive
	aggregator *guesses.Aggregator
	prefix     string
	logger     logger.Logger
}

// Option applies a configuration option to the Archiver.
type Option func(*Archiver)

// WithPrefix sets the object key prefix used in cold storage.
func WithPrefix(prefix string) Option {
	return func(a *Archiver) {
		if prefix != "" {
			a.prefix = prefix
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Archiver) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Archiver over the given stores.
func New(store hotstore.Store, arch coldstore.Archive, agg *guesses.Aggregator, opts ...Option) *Archiver {
	a := &Archiver{
		store:      store,
		archive:    arch,
		aggregator: agg,
		prefix:     defaultPrefix,
		logger:     logger.Get().Named("archive"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Finalize runs the full collecting-to-finalized transition for date:
// recompute round stats from the complete event set, write the initial batch
// to cold storage, delete exactly the archived events, then mark the
// challenge finalized. Each step is idempotent, so a crashed run is safely
// repeated from the top.
//
// Returns ErrStaleState when the challenge is already finalized, or when
// another finalizer won the race to the initial batch key: in both cases the
// caller's snapshot must not be deleted, and any events it held are picked up
// by a later delta flush.
func (a *Archiver) Finalize(ctx context.Context, date string) error {
	ch, err := a.store.GetChallenge(ctx, date)
	if err != nil {
		return err
	}
	if ch.RoundStatsFinalized {
		return ErrStaleState
	}

	if err := a.aggregator.Recompute(ctx, date); err != nil {
		return err
	}

	events, err := a.store.ListGuesses(ctx, date)
	if err != nil {
		return err
	}

	if len(events) > 0 {
		body, err := coldstore.EncodeBatch(events)
		if err != nil {
			return err
		}
		key := coldstore.InitialKey(a.prefix, date)
		if err := a.archive.Put(ctx, key, body); err != nil {
			// Another writer already created the initial batch, so this
			// snapshot was never stored. Abort without deleting anything;
			// the events left behind drain through the next delta flush.
			if errors.Is(err, coldstore.ErrObjectExists) {
				return fmt.Errorf("%w: initial batch written by another finalizer", ErrStaleState)
			}
			return err
		}
		if err := a.store.DeleteGuesses(ctx, date, eventIDs(events)); err != nil {
			return err
		}
		metrics.RecordArchivedEvents(len(events))
		a.logger.Info(ctx, "archived initial batch",
			logger.String("date", date),
			logger.String("key", key),
			logger.Int("events", len(events)),
		)
	}

	if err := a.store.MarkFinalized(ctx, date); err != nil {
		return err
	}
	metrics.RecordChallengeFinalized()
	a.logger.Info(ctx, "challenge finalized", logger.String("date", date))
	return nil
}

// ArchiveDeltas flushes events that arrived after finalization. It snapshots
// the pending events, writes them under a timestamped delta key, and deletes
// only the snapshotted events, so appends racing the flush survive for the
// next one. Round stats are left untouched: the frozen curves describe the
// challenge as of finalization.
func (a *Archiver) ArchiveDeltas(ctx context.Context, date string) error {
	events, err := a.store.ListGuesses(ctx, date)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	body, err := coldstore.EncodeBatch(events)
	if err != nil {
		return err
	}
	key := coldstore.DeltaKey(a.prefix, date, time.Now())
	if err := a.archive.Put(ctx, key, body); err != nil {
		return err
	}
	if err := a.store.DeleteGuesses(ctx, date, eventIDs(events)); err != nil {
		return err
	}

	metrics.RecordDeltaBatchArchived()
	metrics.RecordArchivedEvents(len(events))
	a.logger.Info(ctx, "archived delta batch",
		logger.String("date", date),
		logger.String("key", key),
		logger.Int("events", len(events)),
	)
	return nil
}

func eventIDs(events []model.RawGuessEvent) []string {
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
	}
	return ids
}
