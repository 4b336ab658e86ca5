package supports

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/streamql/internal/ast"
	"github.com/roach88/streamql/internal/feature"
	"github.com/roach88/streamql/internal/record"
	"github.com/roach88/streamql/internal/stream"
	"github.com/roach88/streamql/internal/value"
)

const defaultDistinctCacheSize = 1024

// distinctFeature drops output rows already emitted. The key is the
// canonical encoding of the whole projected row, or of the DISTINCT ON
// expressions when present.
//
// The default strategy remembers every key. The bounded (lru) strategy
// remembers the most recent distinctCacheSize keys, so memory stays flat on
// unbounded streams at the cost of re-emitting keys that were evicted.
type distinctFeature struct {
	name    string
	bounded bool
}

func (f distinctFeature) ID() feature.ID { return feature.Distinct.Of(f.name) }

func (f distinctFeature) CreateDistinct(d *ast.Distinct, md *feature.Metadata) (feature.Transformer, error) {
	key := func(_ context.Context, r *record.Record) (string, error) {
		return value.Key(r.Results()), nil
	}
	if d != nil && len(d.On) > 0 {
		mappers, err := feature.CreateMappers(d.On, md)
		if err != nil {
			return nil, err
		}
		key = func(ctx context.Context, r *record.Record) (string, error) {
			vals := make([]any, len(mappers))
			for i, m := range mappers {
				v, err := m(ctx, r)
				if err != nil {
					return "", err
				}
				vals[i] = v
			}
			return value.Key(vals), nil
		}
	}

	newSeen := stream.NewSeenSet
	if f.bounded {
		size := md.SettingInt(feature.SettingDistinctCacheSize, defaultDistinctCacheSize)
		if size <= 0 {
			return nil, feature.Errorf(feature.ErrCodeInvalidArguments, nil, "%s must be positive, got %d", feature.SettingDistinctCacheSize, size)
		}
		newSeen = func() stream.Seen { return newLRUSeen(size) }
	}

	return func(rows stream.Stream[*record.Record]) stream.Stream[*record.Record] {
		return stream.Distinct(rows, key, newSeen)
	}, nil
}

type lruSeen struct {
	cache *lru.Cache[string, struct{}]
}

func newLRUSeen(size int) stream.Seen {
	// lru.New only fails for non-positive sizes, which CreateDistinct rejects.
	cache, _ := lru.New[string, struct{}](size)
	return lruSeen{cache: cache}
}

func (s lruSeen) Add(key string) bool {
	if _, ok := s.cache.Get(key); ok {
		return false
	}
	s.cache.Add(key, struct{}{})
	return true
}
