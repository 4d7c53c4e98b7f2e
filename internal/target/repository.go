package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"ad-routing-service/internal/index"
	"ad-routing-service/internal/storage"
)

const (
	recordsKey        = "target"
	acceptsKeyPrefix  = "target:accepts:"
	acceptsDateFormat = "2006-01-02"
)

// acceptsKey buckets daily counters by UTC calendar day; "today" rolls
// over at UTC midnight and old buckets age out via TTL.
func acceptsKey(now time.Time) string {
	return acceptsKeyPrefix + now.UTC().Format(acceptsDateFormat)
}

// Repository owns the canonical target records and the per-day
// acceptance counters. It performs no field validation; callers
// validate before they get here.
type Repository struct {
	store      storage.Store
	counterTTL time.Duration
	now        func() time.Time
}

func NewRepository(st storage.Store, counterTTL time.Duration) *Repository {
	return &Repository{store: st, counterTTL: counterTTL, now: time.Now}
}

// Create persists the target and populates its index cells in one
// atomic batch. A colliding id gets update semantics: the old record's
// cells are diffed out so no stale cell survives the overwrite. The
// daily counter starts at zero only for a fresh id.
func (r *Repository) Create(ctx context.Context, t *Target) (*Target, error) {
	var oldValues map[string][]string
	fresh := false
	existing, err := r.Get(ctx, t.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		fresh = true
	case err != nil:
		return nil, err
	default:
		oldValues = existing.Accept.Values()
	}

	newValues := t.Accept.Values()
	added, removed := index.Diff(oldValues, newValues)
	if !fresh && existing.Value != t.Value {
		// re-adding refreshes scores on cells the diff left alone
		added = index.CellsFor(newValues)
	}

	blob, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal target %s: %w", t.ID, err)
	}

	err = r.store.Batch(ctx, func(p storage.Pipeline) {
		index.Apply(p, t.ID, t.Value, added, removed)
		p.HSet(recordsKey, t.ID, blob)
		if fresh {
			key := acceptsKey(r.now())
			p.HSet(key, t.ID, []byte("0"))
			p.Expire(key, r.counterTTL)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create target %s: %w", t.ID, err)
	}

	log.Debug().Str("id", t.ID).Float64("value", t.Value).
		Int("cells", len(added)).Bool("fresh", fresh).Msg("target created")
	return t, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Target, error) {
	blob, err := r.store.HGet(ctx, recordsKey, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("target %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	var t Target
	if err := json.Unmarshal(blob, &t); err != nil {
		return nil, &MalformedRecordError{ID: id, Err: err}
	}
	return &t, nil
}

// List returns every stored target in no particular order.
func (r *Repository) List(ctx context.Context) ([]Target, error) {
	records, err := r.store.HGetAll(ctx, recordsKey)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(records))
	for id, blob := range records {
		var t Target
		if err := json.Unmarshal(blob, &t); err != nil {
			return nil, &MalformedRecordError{ID: id, Err: err}
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Update merges the patch into the stored record. When the accept
// predicate or the value changed, index reconciliation rides the same
// atomic batch as the record write.
func (r *Repository) Update(ctx context.Context, id string, patch Patch) (*Target, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldValues := t.Accept.Values()
	acceptTouched, valueTouched := patch.Apply(t)

	blob, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal target %s: %w", id, err)
	}

	err = r.store.Batch(ctx, func(p storage.Pipeline) {
		if acceptTouched || valueTouched {
			newValues := t.Accept.Values()
			added, removed := index.Diff(oldValues, newValues)
			if valueTouched {
				added = index.CellsFor(newValues)
			}
			index.Apply(p, id, t.Value, added, removed)
		}
		p.HSet(recordsKey, id, blob)
	})
	if err != nil {
		return nil, fmt.Errorf("update target %s: %w", id, err)
	}

	log.Debug().Str("id", id).Bool("accept_touched", acceptTouched).Msg("target updated")
	return t, nil
}

// TryAdmit charges one acceptance against the target's daily cap. The
// increment itself is the arbiter: a caller whose increment lands above
// the cap gives the charge back and loses, so admissions never exceed
// maxAcceptsPerDay even under concurrency. A cap of zero never admits.
func (r *Repository) TryAdmit(ctx context.Context, t *Target) (bool, error) {
	if t.MaxAcceptsPerDay <= 0 {
		return false, nil
	}

	key := acceptsKey(r.now())
	n, err := r.store.HIncrBy(ctx, key, t.ID, 1)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := r.store.Expire(ctx, key, r.counterTTL); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("set counter ttl")
		}
	}
	if n > int64(t.MaxAcceptsPerDay) {
		if _, err := r.store.HIncrBy(ctx, key, t.ID, -1); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Accepts reads the target's acceptance count for the current UTC day.
func (r *Repository) Accepts(ctx context.Context, id string) (int64, error) {
	blob, err := r.store.HGet(ctx, acceptsKey(r.now()), id)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(blob), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse accepts counter for %s: %w", id, err)
	}
	return n, nil
}
