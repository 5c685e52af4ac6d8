// Package reconcile aligns local records with an authoritative remote list:
// match by external id, else by a fallback predicate, else create; then
// deactivate local records whose external id the remote no longer reports.
package reconcile

import (
	"context"
	"fmt"
)

// Strategy describes one entity kind. R is the remote record type, L the
// local one.
type Strategy[R, L any] struct {
	// RemoteKey extracts the external id of a remote record.
	RemoteKey func(R) int64
	// LocalKey extracts the external id of a local record, if it has one.
	LocalKey func(L) (int64, bool)
	// Fallback matches a remote record to a local record that has no key
	// match, e.g. by name. Only local records that are not yet claimed and
	// whose own external id is absent from the remote list are offered.
	// Optional.
	Fallback func(R, L) bool
	// Create persists a new local record for r.
	Create func(context.Context, R) (L, error)
	// Update brings l in line with r and reports whether anything changed.
	Update func(context.Context, R, L) (L, bool, error)
	// Active reports whether l takes part in orphan deactivation. Optional;
	// when nil no record is ever deactivated.
	Active func(L) bool
	// Deactivate retires an orphaned local record. Optional.
	Deactivate func(context.Context, L) (L, error)
}

// Failure is a remote record (or orphan) that could not be reconciled.
type Failure struct {
	Key int64
	Err error
}

func (f Failure) Error() string {
	return fmt.Sprintf("external id %d: %v", f.Key, f.Err)
}

// Result of a reconciliation pass.
type Result[L any] struct {
	// Synced holds the local record of every remote record that was
	// reconciled, in remote order.
	Synced      []L
	Created     int
	Updated     int
	Unchanged   int
	Deactivated []L
	Failures    []Failure
}

// Run reconciles remote against local. Remote records with an external id
// match are updated first, so a record renamed in the remote frees its old
// name before fallback matching and creation run for the rest. Failures of
// individual records are collected in the result; the only error returned
// is a cancelled context.
func Run[R, L any](ctx context.Context, s Strategy[R, L], remote []R, local []L) (*Result[L], error) {
	res := &Result[L]{}

	items := append([]L(nil), local...)
	claimed := make([]bool, len(items))
	byKey := make(map[int64]int, len(items))
	for i, l := range items {
		if key, ok := s.LocalKey(l); ok {
			byKey[key] = i
		}
	}

	seen := make(map[int64]bool, len(remote))
	for _, r := range remote {
		seen[s.RemoteKey(r)] = true
	}

	// out holds the synced record of each remote position; handled marks
	// positions that need no second phase.
	out := make([]L, len(remote))
	done := make([]bool, len(remote))
	handled := make([]bool, len(remote))

	update := func(i, idx int, r R, key int64) {
		prev := items[idx]
		l, changed, err := s.Update(ctx, r, prev)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Key: key, Err: err})
			return
		}
		if old, had := s.LocalKey(prev); had && old != key && byKey[old] == idx {
			delete(byKey, old)
		}
		items[idx] = l
		claimed[idx] = true
		byKey[key] = idx
		out[i], done[i] = l, true
		if changed {
			res.Updated++
		} else {
			res.Unchanged++
		}
	}

	for i, r := range remote {
		if err := ctx.Err(); err != nil {
			return res.collect(out, done), err
		}
		key := s.RemoteKey(r)
		if idx, ok := byKey[key]; ok {
			handled[i] = true
			update(i, idx, r, key)
		}
	}

	for i, r := range remote {
		if handled[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res.collect(out, done), err
		}
		key := s.RemoteKey(r)

		idx, ok := byKey[key]
		if !ok && s.Fallback != nil {
			idx, ok = fallback(s, r, items, claimed, seen)
		}
		if ok {
			update(i, idx, r, key)
			continue
		}

		l, err := s.Create(ctx, r)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Key: key, Err: err})
			continue
		}
		items = append(items, l)
		claimed = append(claimed, true)
		byKey[key] = len(items) - 1
		out[i], done[i] = l, true
		res.Created++
	}
	res.collect(out, done)

	if s.Active == nil || s.Deactivate == nil {
		return res, nil
	}
	for i, l := range items {
		if claimed[i] || !s.Active(l) {
			continue
		}
		key, ok := s.LocalKey(l)
		if !ok || seen[key] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		l, err := s.Deactivate(ctx, l)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Key: key, Err: fmt.Errorf("deactivate: %w", err)})
			continue
		}
		items[i] = l
		res.Deactivated = append(res.Deactivated, l)
	}
	return res, nil
}

// collect fills Synced in remote order.
func (res *Result[L]) collect(out []L, done []bool) *Result[L] {
	res.Synced = res.Synced[:0]
	for i, ok := range done {
		if ok {
			res.Synced = append(res.Synced, out[i])
		}
	}
	return res
}

func fallback[R, L any](s Strategy[R, L], r R, items []L, claimed []bool, seen map[int64]bool) (int, bool) {
	for i, l := range items {
		if claimed[i] {
			continue
		}
		if key, ok := s.LocalKey(l); ok && seen[key] {
			continue
		}
		if s.Fallback(r, l) {
			return i, true
		}
	}
	return 0, false
}
