package archive

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/eraguess/eraguess/internal/adapters/coldstore"
	"github.com/eraguess/eraguess/internal/adapters/hotstore"
	"github.com/eraguess/eraguess/internal/domain/guesses"
	"github.com/eraguess/eraguess/internal/domain/model"
	"github.com/eraguess/eraguess/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// memStore is a map-backed hotstore.Store for archival tests.
type memStore struct {
	mu         sync.Mutex
	challenges map[string]model.Challenge
	guesses    map[string][]model.RawGuessEvent
}

func newMemStore() *memStore {
	return &memStore{
		challenges: make(map[string]model.Challenge),
		guesses:    make(map[string][]model.RawGuessEvent),
	}
}

func (m *memStore) CreateChallenge(_ context.Context, ch model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.challenges[ch.Date]; ok {
		return hotstore.ErrAlreadyExists
	}
	m.challenges[ch.Date] = ch
	return nil
}

func (m *memStore) GetChallenge(_ context.Context, date string) (model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[date]
	if !ok {
		return model.Challenge{}, hotstore.ErrNotFound
	}
	return ch, nil
}

func (m *memStore) ApplyScore(_ context.Context, date string, score int) (model.Challenge, error) {
	return model.Challenge{}, nil
}

func (m *memStore) SaveDerivedStats(_ context.Context, date string, avg float64, pd *model.ProcessedDistribution) error {
	return nil
}

func (m *memStore) SaveRoundStats(_ context.Context, date string, rounds []model.RoundGuessDistribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[date]
	if !ok {
		return hotstore.ErrNotFound
	}
	ch.Stats.RoundGuessDistributions = rounds
	m.challenges[date] = ch
	return nil
}

func (m *memStore) MarkFinalized(_ context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[date]
	if !ok {
		return hotstore.ErrNotFound
	}
	ch.RoundStatsFinalized = true
	m.challenges[date] = ch
	return nil
}

func (m *memStore) AppendGuess(_ context.Context, ev model.RawGuessEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guesses[ev.ChallengeDate] = append(m.guesses[ev.ChallengeDate], ev)
	return nil
}

func (m *memStore) ListGuesses(_ context.Context, date string) ([]model.RawGuessEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RawGuessEvent(nil), m.guesses[date]...), nil
}

func (m *memStore) DeleteGuesses(_ context.Context, date string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []model.RawGuessEvent
	for _, ev := range m.guesses[date] {
		if !drop[ev.ID] {
			kept = append(kept, ev)
		}
	}
	m.guesses[date] = kept
	return nil
}

func (m *memStore) ListChallengesBefore(_ context.Context, cutoff string) ([]model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Challenge
	for date, ch := range m.challenges {
		if date < cutoff {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// setFinalized rewinds the stored finalization flag so tests can replay a
// finalizer acting on a state read taken before another writer's MarkFinalized.
func (m *memStore) setFinalized(date string, v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := m.challenges[date]
	ch.RoundStatsFinalized = v
	m.challenges[date] = ch
}

func stageGuesses(store *memStore, date string, count int) {
	ctx := context.Background()
	for i := 0; i < count; i++ {
		_ = store.AppendGuess(ctx, model.RawGuessEvent{
			ID:            date + "-ev-" + string(rune('a'+i)),
			ChallengeDate: date,
			RoundIndex:    i % 5,
			GuessedYear:   1900 + i*10,
			CreatedAt:     time.Now().UTC(),
		})
	}
}

func newTestArchiver(store *memStore, arch coldstore.Archive) *Archiver {
	agg := guesses.NewAggregator(store)
	return New(store, arch, agg)
}

func TestFinalize(t *testing.T) {
	Convey("Given a collecting challenge with staged guesses", t, func() {
		ctx := context.Background()
		store := newMemStore()
		arch := coldstore.NewMemoryArchive()
		archiver := newTestArchiver(store, arch)

		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-20", Active: true}), ShouldBeNil)
		stageGuesses(store, "2026-08-20", 3)

		Convey("When finalizing", func() {
			err := archiver.Finalize(ctx, "2026-08-20")

			Convey("Then the transition should complete", func() {
				So(err, ShouldBeNil)

				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(ch.RoundStatsFinalized, ShouldBeTrue)
			})

			Convey("And the round stats should be frozen from the full event set", func() {
				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(len(ch.Stats.RoundGuessDistributions), ShouldEqual, 3)
			})

			Convey("And the initial batch should be durable in cold storage", func() {
				key := coldstore.InitialKey("challenges", "2026-08-20")
				body, ok := arch.Get(key)
				So(ok, ShouldBeTrue)

				events, derr := coldstore.DecodeBatch(body)
				So(derr, ShouldBeNil)
				So(len(events), ShouldEqual, 3)
			})

			Convey("And the hot store should hold no more staged events", func() {
				left, lerr := store.ListGuesses(ctx, "2026-08-20")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 0)
			})

			Convey("And finalizing again should report stale state", func() {
				So(errors.Is(archiver.Finalize(ctx, "2026-08-20"), ErrStaleState), ShouldBeTrue)
			})
		})

		Convey("When the cold storage write fails", func() {
			injected := errors.New("bucket unavailable")
			arch.FailNext(injected)
			err := archiver.Finalize(ctx, "2026-08-20")

			Convey("Then the error should surface", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, coldstore.ErrPutFailed), ShouldBeTrue)
			})

			Convey("And the challenge should still be collecting", func() {
				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(ch.RoundStatsFinalized, ShouldBeFalse)
			})

			Convey("And no staged event should be lost", func() {
				left, lerr := store.ListGuesses(ctx, "2026-08-20")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 3)
			})

			Convey("And a retry should complete the transition", func() {
				So(archiver.Finalize(ctx, "2026-08-20"), ShouldBeNil)

				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(ch.RoundStatsFinalized, ShouldBeTrue)
				So(arch.Len(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given two finalizers racing on the same challenge", t, func() {
		ctx := context.Background()
		store := newMemStore()
		arch := coldstore.NewMemoryArchive()
		archiver := newTestArchiver(store, arch)

		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-20", Active: true}), ShouldBeNil)
		stageGuesses(store, "2026-08-20", 1)
		So(archiver.Finalize(ctx, "2026-08-20"), ShouldBeNil)

		// Replay the loser: its state read happened before the winner's
		// MarkFinalized, and a late guess landed after the winner's snapshot.
		store.setFinalized("2026-08-20", false)
		So(store.AppendGuess(ctx, model.RawGuessEvent{
			ID:            "2026-08-20-late",
			ChallengeDate: "2026-08-20",
			RoundIndex:    1,
			GuessedYear:   1975,
			CreatedAt:     time.Now().UTC(),
		}), ShouldBeNil)

		Convey("When the losing finalizer attempts the transition", func() {
			err := archiver.Finalize(ctx, "2026-08-20")

			Convey("Then it should report stale state instead of success", func() {
				So(errors.Is(err, ErrStaleState), ShouldBeTrue)
			})

			Convey("And the winner's batch should be untouched", func() {
				body, ok := arch.Get(coldstore.InitialKey("challenges", "2026-08-20"))
				So(ok, ShouldBeTrue)

				events, derr := coldstore.DecodeBatch(body)
				So(derr, ShouldBeNil)
				So(len(events), ShouldEqual, 1)
				So(arch.Len(), ShouldEqual, 1)
			})

			Convey("And the unarchived event should survive in the hot store", func() {
				left, lerr := store.ListGuesses(ctx, "2026-08-20")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 1)
				So(left[0].ID, ShouldEqual, "2026-08-20-late")
			})

			Convey("And a delta flush should then archive it durably", func() {
				So(archiver.ArchiveDeltas(ctx, "2026-08-20"), ShouldBeNil)
				So(arch.Len(), ShouldEqual, 2)

				left, lerr := store.ListGuesses(ctx, "2026-08-20")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a challenge with no staged guesses", t, func() {
		ctx := context.Background()
		store := newMemStore()
		arch := coldstore.NewMemoryArchive()
		archiver := newTestArchiver(store, arch)

		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-20", Active: true}), ShouldBeNil)

		Convey("When finalizing", func() {
			err := archiver.Finalize(ctx, "2026-08-20")

			Convey("Then the challenge should be finalized without writing a batch", func() {
				So(err, ShouldBeNil)
				So(arch.Len(), ShouldEqual, 0)

				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(ch.RoundStatsFinalized, ShouldBeTrue)
			})
		})
	})

	Convey("Given no challenge for the date", t, func() {
		ctx := context.Background()
		archiver := newTestArchiver(newMemStore(), coldstore.NewMemoryArchive())

		Convey("When finalizing", func() {
			err := archiver.Finalize(ctx, "1990-01-01")

			Convey("Then the store's not-found error should surface", func() {
				So(errors.Is(err, hotstore.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestArchiveDeltas(t *testing.T) {
	Convey("Given a finalized challenge with late-arriving guesses", t, func() {
		ctx := context.Background()
		store := newMemStore()
		arch := coldstore.NewMemoryArchive()
		archiver := newTestArchiver(store, arch)

		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-20", Active: true}), ShouldBeNil)
		So(archiver.Finalize(ctx, "2026-08-20"), ShouldBeNil)
		stageGuesses(store, "2026-08-20", 2)

		frozen, _ := store.GetChallenge(ctx, "2026-08-20")

		Convey("When flushing deltas", func() {
			err := archiver.ArchiveDeltas(ctx, "2026-08-20")

			Convey("Then a delta batch should land in cold storage", func() {
				So(err, ShouldBeNil)

				keys := arch.Keys()
				So(len(keys), ShouldEqual, 1)
				So(strings.Contains(keys[0], "/2026-08-20/delta_"), ShouldBeTrue)

				body, ok := arch.Get(keys[0])
				So(ok, ShouldBeTrue)
				events, derr := coldstore.DecodeBatch(body)
				So(derr, ShouldBeNil)
				So(len(events), ShouldEqual, 2)
			})

			Convey("And the flushed events should be gone from the hot store", func() {
				left, lerr := store.ListGuesses(ctx, "2026-08-20")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 0)
			})

			Convey("And the frozen round stats should be untouched", func() {
				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(ch.Stats.RoundGuessDistributions, ShouldResemble, frozen.Stats.RoundGuessDistributions)
			})
		})

		Convey("When an append races the flush", func() {
			// Events staged after the snapshot must survive the delete.
			So(archiver.ArchiveDeltas(ctx, "2026-08-20"), ShouldBeNil)
			_ = store.AppendGuess(ctx, model.RawGuessEvent{
				ID:            "late-arrival",
				ChallengeDate: "2026-08-20",
				RoundIndex:    0,
				GuessedYear:   1960,
			})

			Convey("Then the next flush should pick up the new event", func() {
				So(archiver.ArchiveDeltas(ctx, "2026-08-20"), ShouldBeNil)
				So(arch.Len(), ShouldEqual, 2)
			})
		})

		Convey("When there is nothing to flush", func() {
			So(archiver.ArchiveDeltas(ctx, "2026-08-20"), ShouldBeNil)
			err := archiver.ArchiveDeltas(ctx, "2026-08-20")

			Convey("Then no extra object should be written", func() {
				So(err, ShouldBeNil)
				So(arch.Len(), ShouldEqual, 1)
			})
		})
	})
}

func TestScheduler(t *testing.T) {
	Convey("Given challenges of varying age", t, func() {
		ctx := context.Background()
		store := newMemStore()
		arch := coldstore.NewMemoryArchive()
		archiver := newTestArchiver(store, arch)

		now := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
		sched := NewScheduler(archiver, store,
			WithAgeThresholdDays(2),
			withNow(func() time.Time { return now }),
		)

		// Old and still collecting.
		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-20", Active: true}), ShouldBeNil)
		stageGuesses(store, "2026-08-20", 2)

		// Old and already finalized, with a pending delta.
		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-18", Active: true}), ShouldBeNil)
		So(archiver.Finalize(ctx, "2026-08-18"), ShouldBeNil)
		stageGuesses(store, "2026-08-18", 1)

		// Too recent to sweep.
		So(store.CreateChallenge(ctx, model.Challenge{Date: "2026-08-26", Active: true}), ShouldBeNil)
		stageGuesses(store, "2026-08-26", 4)

		Convey("When running one sweep", func() {
			processed, err := sched.RunSweep(ctx)

			Convey("Then only challenges older than the threshold should be processed", func() {
				So(err, ShouldBeNil)
				So(processed, ShouldEqual, 2)
			})

			Convey("And the collecting challenge should be finalized", func() {
				ch, gerr := store.GetChallenge(ctx, "2026-08-20")
				So(gerr, ShouldBeNil)
				So(ch.RoundStatsFinalized, ShouldBeTrue)

				_, ok := arch.Get(coldstore.InitialKey("challenges", "2026-08-20"))
				So(ok, ShouldBeTrue)
			})

			Convey("And the finalized challenge should have its delta flushed", func() {
				left, lerr := store.ListGuesses(ctx, "2026-08-18")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 0)
			})

			Convey("And the recent challenge should be untouched", func() {
				ch, gerr := store.GetChallenge(ctx, "2026-08-26")
				So(gerr, ShouldBeNil)
				So(ch.RoundStatsFinalized, ShouldBeFalse)

				left, lerr := store.ListGuesses(ctx, "2026-08-26")
				So(lerr, ShouldBeNil)
				So(len(left), ShouldEqual, 4)
			})

			Convey("And a second sweep should find nothing left to flush", func() {
				objects := arch.Len()
				processedAgain, serr := sched.RunSweep(ctx)
				So(serr, ShouldBeNil)
				So(processedAgain, ShouldEqual, 2)
				So(arch.Len(), ShouldEqual, objects)
			})
		})

		Convey("When one challenge fails to archive", func() {
			arch.FailNext(errors.New("bucket unavailable"))
			processed, err := sched.RunSweep(ctx)

			Convey("Then the failure should not block the other challenges", func() {
				So(err, ShouldBeNil)
				So(processed, ShouldEqual, 1)
			})

			Convey("And the failed challenge should be retried by the next sweep", func() {
				processedRetry, serr := sched.RunSweep(ctx)
				So(serr, ShouldBeNil)
				So(processedRetry, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a started scheduler", t, func() {
		store := newMemStore()
		arch := coldstore.NewMemoryArchive()
		sched := NewScheduler(newTestArchiver(store, arch), store,
			WithSweepInterval(time.Hour),
		)

		Convey("When started and stopped", func() {
			sched.Start(context.Background())
			sched.Stop()

			Convey("Then stopping again should be safe", func() {
				So(sched.Stop, ShouldNotPanic)
			})
		})
	})
}
