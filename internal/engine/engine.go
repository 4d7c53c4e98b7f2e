// Package engine selects the highest-value eligible target for a
// routing query and charges the admission against its daily cap.
package engine

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"ad-routing-service/internal/index"
	"ad-routing-service/internal/storage"
	"ad-routing-service/internal/target"
)

// Attribute names the routing query can supply. A target whose accept
// predicate omits either is unreachable inventory.
const (
	AttrGeoState = "geoState"
	AttrHour     = "hour"
)

const matchKeyPrefix = "route:match:"

// Query carries one concrete value per routing attribute. Hour is the
// UTC hour-of-day (0-23), already extracted from the request timestamp
// by the caller.
type Query struct {
	GeoState string
	Hour     int
}

func (q Query) cells() []index.Cell {
	return []index.Cell{
		{Attr: AttrGeoState, Value: q.GeoState},
		{Attr: AttrHour, Value: strconv.Itoa(q.Hour)},
	}
}

// Engine resolves queries against the attribute index and the target
// repository. It holds no in-process locks; the store's atomicity
// primitives do all coordination.
type Engine struct {
	store storage.Store
	repo  *target.Repository
}

func New(st storage.Store, repo *target.Repository) *Engine {
	return &Engine{store: st, repo: repo}
}

// Select intersects the ranked sets for the query's cells server-side,
// walks the survivors in descending value order, and admits the first
// one under its daily cap. A nil result with nil error means no
// eligible target; that is a routing decision, not a failure.
func (e *Engine) Select(ctx context.Context, q Query) (*target.Target, error) {
	cells := q.cells()
	keys := make([]string, len(cells))
	for i, c := range cells {
		keys[i] = c.RankKey()
	}

	// The temp key embeds a per-call token; sharing a key derived from
	// the query alone would let one caller's cleanup race another's read.
	matchKey := matchKeyPrefix + uuid.NewString()

	n, err := e.store.ZInterStore(ctx, matchKey, keys)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := e.store.Del(context.WithoutCancel(ctx), matchKey); err != nil {
			log.Warn().Err(err).Str("key", matchKey).Msg("drop match key")
		}
	}()
	if n == 0 {
		return nil, nil
	}

	candidates, err := e.store.ZRevRange(ctx, matchKey, 0, -1)
	if err != nil {
		return nil, err
	}

	for _, id := range candidates {
		t, err := e.repo.Get(ctx, id)
		if err != nil {
			// an indexed id must have a record; anything else is corruption
			return nil, err
		}
		ok, err := e.repo.TryAdmit(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			log.Debug().Str("id", t.ID).Float64("value", t.Value).
				Str("geo_state", q.GeoState).Int("hour", q.Hour).Msg("target selected")
			return t, nil
		}
	}
	return nil, nil
}
