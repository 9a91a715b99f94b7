package hotstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
	"github.com/eraguess/eraguess/pkg/metrics"
)

// Key layout. Challenge documents and guess events live under separate
// prefixes so each can be scanned independently.
const (
	challengePrefix = "challenge/"
	guessPrefix     = "guess/"
)

// Default store configuration constants.
const (
	defaultPath       = "data/hotstore"
	defaultMaxRetries = 16
)

// BadgerStore implements Store on an embedded BadgerDB. Badger transactions
// run under serializable snapshot isolation: a commit that raced a
// conflicting write fails with ErrConflict, and the mutation is retried on a
// fresh snapshot. That retry loop is what makes ApplyScore's
// increment-or-create atomic without any find-then-insert window.
type BadgerStore struct {
	db         *badger.DB
	path       string
	inMemory   bool
	syncWrites bool
	maxRetries int
	logger     logger.Logger
}

// Option applies a configuration option to the BadgerStore.
type Option func(*BadgerStore)

// WithPath sets the on-disk directory for the store.
func WithPath(path string) Option {
	return func(s *BadgerStore) {
		if path != "" {
			s.path = path
		}
	}
}

// WithInMemory toggles in-memory mode (no disk persistence). Used by tests.
func WithInMemory(inMemory bool) Option {
	return func(s *BadgerStore) {
		s.inMemory = inMemory
	}
}

// WithSyncWrites toggles synchronous writes for durability.
func WithSyncWrites(sync bool) Option {
	return func(s *BadgerStore) {
		s.syncWrites = sync
	}
}

// WithMaxRetries bounds the commit-conflict retry loop.
func WithMaxRetries(n int) Option {
	return func(s *BadgerStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *BadgerStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewBadgerStore opens the store with configuration options.
func NewBadgerStore(opts ...Option) (*BadgerStore, error) {
	s := &BadgerStore{
		path:       defaultPath,
		syncWrites: true,
		maxRetries: defaultMaxRetries,
		logger:     logger.Get().Named("hotstore"),
	}
	for _, opt := range opts {
		opt(s)
	}

	badgerOpts := badger.DefaultOptions(s.path).
		WithInMemory(s.inMemory).
		WithSyncWrites(s.syncWrites).
		WithLogger(&badgerLogger{log: s.logger})
	if s.inMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open hot store: %w", err)
	}
	s.db = db
	return s, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger adapts the project logger to badger's Logger interface.
type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(context.Background(), strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func challengeKey(date string) []byte {
	return []byte(challengePrefix + date)
}

func guessKey(date, id string) []byte {
	return []byte(guessPrefix + date + "/" + id)
}

// getChallengeTxn loads and decodes a challenge inside txn.
func getChallengeTxn(txn *badger.Txn, date string) (model.Challenge, error) {
	item, err := txn.Get(challengeKey(date))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Challenge{}, ErrNotFound
	}
	if err != nil {
		return model.Challenge{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var ch model.Challenge
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ch)
	}); err != nil {
		return model.Challenge{}, fmt.Errorf("decode challenge %s: %w", date, err)
	}
	return ch, nil
}

func setChallengeTxn(txn *badger.Txn, ch model.Challenge) error {
	body, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("encode challenge %s: %w", ch.Date, err)
	}
	return txn.Set(challengeKey(ch.Date), body)
}

// updateWithRetry runs fn in a read-write transaction, retrying commit
// conflicts on a fresh snapshot up to maxRetries times.
func (s *BadgerStore) updateWithRetry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	start := time.Now()
	defer func() {
		metrics.RecordHotStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			metrics.RecordHotStoreConflictRetry()
			continue
		}
		return err
	}
	metrics.RecordErrorByComponent("hotstore", "conflict_retries_exhausted")
	return fmt.Errorf("%w: commit conflict retries exhausted", ErrUnavailable)
}

// CreateChallenge implements Store.CreateChallenge.
func (s *BadgerStore) CreateChallenge(ctx context.Context, ch model.Challenge) error {
	date, err := model.ParseDate(ch.Date)
	if err != nil {
		return fmt.Errorf("create challenge: %w", err)
	}
	ch.Date = date
	return s.updateWithRetry(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(challengeKey(date)); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return setChallengeTxn(txn, ch)
	})
}

// GetChallenge implements Store.GetChallenge.
func (s *BadgerStore) GetChallenge(ctx context.Context, date string) (model.Challenge, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHotStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	var ch model.Challenge
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		ch, err = getChallengeTxn(txn, date)
		return err
	})
	return ch, err
}

// ApplyScore implements Store.ApplyScore. The whole increment runs in one
// transaction, so a losing concurrent inserter of a brand-new score bucket
// conflicts on commit and retries as an increment.
func (s *BadgerStore) ApplyScore(ctx context.Context, date string, score int) (model.Challenge, error) {
	var out model.Challenge
	err := s.updateWithRetry(ctx, func(txn *badger.Txn) error {
		ch, err := getChallengeTxn(txn, date)
		if err != nil {
			return err
		}
		if !ch.Active {
			return ErrNotFound
		}

		ch.Stats.Completions++
		bumped := false
		for i := range ch.Stats.Distributions {
			if ch.Stats.Distributions[i].Score == score {
				ch.Stats.Distributions[i].Count++
				bumped = true
				break
			}
		}
		if !bumped {
			ch.Stats.Distributions = append(ch.Stats.Distributions, model.ScoreBucket{Score: score, Count: 1})
		}

		if err := setChallengeTxn(txn, ch); err != nil {
			return err
		}
		out = ch
		return nil
	})
	return out, err
}

// SaveDerivedStats implements Store.SaveDerivedStats.
func (s *BadgerStore) SaveDerivedStats(ctx context.Context, date string, avg float64, pd *model.ProcessedDistribution) error {
	return s.updateWithRetry(ctx, func(txn *badger.Txn) error {
		ch, err := getChallengeTxn(txn, date)
		if err != nil {
			return err
		}
		ch.Stats.AverageScore = avg
		ch.Stats.ProcessedDistribution = pd
		return setChallengeTxn(txn, ch)
	})
}

// SaveRoundStats implements Store.SaveRoundStats.
func (s *BadgerStore) SaveRoundStats(ctx context.Context, date string, rounds []model.RoundGuessDistribution) error {
	return s.updateWithRetry(ctx, func(txn *badger.Txn) error {
		ch, err := getChallengeTxn(txn, date)
		if err != nil {
			return err
		}
		ch.Stats.RoundGuessDistributions = rounds
		return setChallengeTxn(txn, ch)
	})
}

// MarkFinalized implements Store.MarkFinalized.
func (s *BadgerStore) MarkFinalized(ctx context.Context, date string) error {
	return s.updateWithRetry(ctx, func(txn *badger.Txn) error {
		ch, err := getChallengeTxn(txn, date)
		if err != nil {
			return err
		}
		ch.RoundStatsFinalized = true
		return setChallengeTxn(txn, ch)
	})
}

// AppendGuess implements Store.AppendGuess.
func (s *BadgerStore) AppendGuess(ctx context.Context, ev model.RawGuessEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode guess event: %w", err)
	}
	return s.updateWithRetry(ctx, func(txn *badger.Txn) error {
		return txn.Set(guessKey(ev.ChallengeDate, ev.ID), body)
	})
}

// ListGuesses implements Store.ListGuesses.
func (s *BadgerStore) ListGuesses(ctx context.Context, date string) ([]model.RawGuessEvent, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHotStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	prefix := []byte(guessPrefix + date + "/")
	var events []model.RawGuessEvent
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 128})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var ev model.RawGuessEvent
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ev)
			}); err != nil {
				return fmt.Errorf("decode guess event: %w", err)
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

// DeleteGuesses implements Store.DeleteGuesses. Deletion is by identity:
// only the named IDs are removed, never a date range, so events staged
// concurrently with an archival snapshot survive.
func (s *BadgerStore) DeleteGuesses(ctx context.Context, date string, ids []string) error {
	start := time.Now()
	defer func() {
		metrics.RecordHotStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	for _, id := range ids {
		key := guessKey(date, id)
		err := txn.Delete(key)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return fmt.Errorf("%w: %w", ErrUnavailable, err)
			}
			txn = s.db.NewTransaction(true)
			err = txn.Delete(key)
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// ListChallengesBefore implements Store.ListChallengesBefore. Challenge keys
// embed ISO dates, so a lexicographic comparison against cutoff is a date
// comparison.
func (s *BadgerStore) ListChallengesBefore(ctx context.Context, cutoff string) ([]model.Challenge, error) {
	start := time.Now()
	defer func() {
		metrics.RecordHotStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	prefix := []byte(challengePrefix)
	limit := []byte(challengePrefix + cutoff)
	var out []model.Challenge
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 32})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if bytes.Compare(it.Item().Key(), limit) >= 0 {
				continue
			}
			var ch model.Challenge
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			}); err != nil {
				return fmt.Errorf("decode challenge: %w", err)
			}
			out = append(out, ch)
		}
		return nil
	})
	return out, err
}

// CountGuesses reports how many raw events are staged across all dates.
// Exposed for operational stats; not part of the Store contract.
func (s *BadgerStore) CountGuesses(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(guessPrefix)})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
