package batch

import (
	"context"
	"math/rand"
)

// NavStatus reports the outcome of a navigation query.
type NavStatus int

const (
	// NavOK means a neighboring test was found.
	NavOK NavStatus = iota
	// NavNotInBatch means the test is not a member of the batch.
	NavNotInBatch
	// NavEnd means the test is the last member, so no successor exists.
	NavEnd
	// NavNone means the test is the first member, so no predecessor exists.
	NavNone
)

// Member reports whether a test belongs to a batch.
func (x *Index) Member(ctx context.Context, testID, name string) (bool, error) {
	st, err := x.resolve(ctx, name)
	if err != nil {
		return false, err
	}
	if st.err != nil {
		return false, st.err
	}
	_, ok := st.members[testID]
	return ok, nil
}

// Next returns the test after testID in the batch's order.
func (x *Index) Next(ctx context.Context, testID, name string) (string, NavStatus, error) {
	st, err := x.resolve(ctx, name)
	if err != nil {
		return "", NavNotInBatch, err
	}
	if st.err != nil {
		return "", NavNotInBatch, st.err
	}
	pos, ok := st.members[testID]
	if !ok {
		return "", NavNotInBatch, nil
	}
	if pos+1 >= len(st.ids) {
		return "", NavEnd, nil
	}
	return st.ids[pos+1], NavOK, nil
}

// Prev returns the test before testID in the batch's order. The first member
// has no predecessor; every other member does, including the second.
func (x *Index) Prev(ctx context.Context, testID, name string) (string, NavStatus, error) {
	st, err := x.resolve(ctx, name)
	if err != nil {
		return "", NavNotInBatch, err
	}
	if st.err != nil {
		return "", NavNotInBatch, st.err
	}
	pos, ok := st.members[testID]
	if !ok {
		return "", NavNotInBatch, nil
	}
	if pos == 0 {
		return "", NavNone, nil
	}
	return st.ids[pos-1], NavOK, nil
}

// First returns the first test of a batch, or false when the batch is empty.
func (x *Index) First(ctx context.Context, name string) (string, bool, error) {
	ids, err := x.Tests(ctx, name)
	if err != nil || len(ids) == 0 {
		return "", false, err
	}
	return ids[0], true, nil
}

// RandomTest picks a uniformly random member of a batch.
func (x *Index) RandomTest(ctx context.Context, name string) (string, bool, error) {
	ids, err := x.Tests(ctx, name)
	if err != nil || len(ids) == 0 {
		return "", false, err
	}
	return ids[rand.Intn(len(ids))], true, nil
}
