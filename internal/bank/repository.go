package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/abhisek/adaptest/internal/store"
)

const (
	itemPrefix  = "item/"
	usagePrefix = "usage/"
)

// ItemKey returns the store key of an item.
func ItemKey(topic, id string) string {
	return itemPrefix + topic + "/" + id
}

// UsageKey returns the store key of an item's usage counters.
func UsageKey(id string) string {
	return usagePrefix + id
}

// ErrItemNotFound is returned when an item does not exist in the bank.
var ErrItemNotFound = errors.New("item not found")

// Repository reads and writes items and usage counters in the store.
type Repository struct {
	kv store.KV
}

// NewRepository creates a Repository over kv.
func NewRepository(kv store.KV) *Repository {
	return &Repository{kv: kv}
}

// Save upserts items in a single commit.
func (r *Repository) Save(ctx context.Context, items []Item) error {
	writes := make([]store.Write, 0, len(items))
	for _, it := range items {
		key := ItemKey(it.TopicKey, it.ID)
		var version uint64
		rec, err := r.kv.Get(ctx, key)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return fmt.Errorf("read item %s: %w", it.ID, err)
		default:
			version = rec.Version
		}
		w, err := store.PutJSON(key, it, version)
		if err != nil {
			return err
		}
		writes = append(writes, w)
	}
	if len(writes) == 0 {
		return nil
	}
	if err := r.kv.AtomicCommit(ctx, writes); err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	return nil
}

// Get returns one item.
func (r *Repository) Get(ctx context.Context, topic, id string) (*Item, error) {
	var it Item
	_, err := store.GetJSON(ctx, r.kv, ItemKey(topic, id), &it)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s/%s", ErrItemNotFound, topic, id)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// Query returns the items of a topic ordered by ID.
func (r *Repository) Query(ctx context.Context, topic string, activeOnly bool) ([]Item, error) {
	recs, err := r.kv.Scan(ctx, itemPrefix+topic+"/")
	if err != nil {
		return nil, fmt.Errorf("query topic %s: %w", topic, err)
	}
	return decodeItems(recs, activeOnly)
}

// All returns every item in the bank ordered by topic then ID.
func (r *Repository) All(ctx context.Context) ([]Item, error) {
	recs, err := r.kv.Scan(ctx, itemPrefix)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return decodeItems(recs, false)
}

// Topics returns the distinct topics that have at least one active item.
func (r *Repository) Topics(ctx context.Context) ([]string, error) {
	items, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var topics []string
	for _, it := range items {
		if it.Active && !seen[it.TopicKey] {
			seen[it.TopicKey] = true
			topics = append(topics, it.TopicKey)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// Usage returns the counters of an item, zero if it has none yet.
func (r *Repository) Usage(ctx context.Context, id string) (Usage, error) {
	var u Usage
	_, err := store.GetJSON(ctx, r.kv, UsageKey(id), &u)
	if errors.Is(err, store.ErrNotFound) {
		return Usage{}, nil
	}
	return u, err
}

// UsageWrites reads the current counters of every item in deltas and
// returns version-checked writes that add the deltas. The writes are meant
// to join a larger atomic commit.
func (r *Repository) UsageWrites(ctx context.Context, deltas map[string]Usage) ([]store.Write, error) {
	ids := make([]string, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	writes := make([]store.Write, 0, len(ids))
	for _, id := range ids {
		var cur Usage
		version, err := store.GetJSON(ctx, r.kv, UsageKey(id), &cur)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("read usage %s: %w", id, err)
		}
		w, err := store.PutJSON(UsageKey(id), cur.Add(deltas[id]), version)
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	return writes, nil
}

func decodeItems(recs []store.Record, activeOnly bool) ([]Item, error) {
	items := make([]Item, 0, len(recs))
	for _, rec := range recs {
		var it Item
		if err := json.Unmarshal(rec.Value, &it); err != nil {
			return nil, fmt.Errorf("decode %s: %w", rec.Key, err)
		}
		if activeOnly && !it.Active {
			continue
		}
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].TopicKey != items[j].TopicKey {
			return items[i].TopicKey < items[j].TopicKey
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
