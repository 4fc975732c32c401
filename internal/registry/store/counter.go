package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"syndic/pkg/platform/sentinel"
)

type counterRecord struct {
	Value int64 `json:"value"`
}

// CurrentValue reads a counter without advancing it, creating it at 1 on
// first use. The get-or-insert makes concurrent first readers agree on the
// initial value.
func CurrentValue(ctx context.Context, s KeyedStore, key string) (int64, error) {
	initial, err := json.Marshal(counterRecord{Value: 1})
	if err != nil {
		return 0, err
	}
	committed, _, err := s.GetOrInsert(ctx, key, initial)
	if err != nil {
		return 0, err
	}
	var rec counterRecord
	if err := json.Unmarshal(committed, &rec); err != nil {
		return 0, fmt.Errorf("decode counter %s: %w", key, err)
	}
	return rec.Value, nil
}

// NextValue increments a named counter behind a single-key transaction and
// returns the new value. The counter key is created on first use. This is
// the shared-counter primitive for version numbers that must only ever
// advance; it is process-free state, not a language-level singleton.
func NextValue(ctx context.Context, s KeyedStore, key string) (int64, error) {
	var next int64
	err := s.RunTransaction(ctx, []string{key}, func(tx Tx) error {
		var rec counterRecord
		raw, err := tx.Get(key)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			// first use
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("decode counter %s: %w", key, err)
			}
		}
		rec.Value++
		next = rec.Value
		out, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Put(key, out)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
