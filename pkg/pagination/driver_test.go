package pagination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marmos91/dfsgate/pkg/fserrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances by step every time it is read.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestCollect_ThreePages(t *testing.T) {
	pages := map[string]struct {
		entries []string
		next    string
	}{
		"":  {entries: []string{"p1-a", "p1-b"}, next: "a"},
		"a": {entries: []string{"p2-a"}, next: "b"},
		"b": {entries: []string{"p3-a", "p3-b"}, next: ""},
	}

	var tokens []string
	got, err := Collect(context.Background(), Options{Operation: "list"},
		func(_ context.Context, continuation string) ([]string, string, error) {
			tokens = append(tokens, continuation)
			p := pages[continuation]
			return p.entries, p.next, nil
		})
	require.NoError(t, err)

	assert.Equal(t, []string{"", "a", "b"}, tokens)
	assert.Equal(t, [][]string{{"p1-a", "p1-b"}, {"p2-a"}, {"p3-a", "p3-b"}}, got)
}

func TestRun_SinglePage(t *testing.T) {
	calls, err := Run(context.Background(), Options{}, func(context.Context, string) (string, error) {
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_TimeoutAfterDeadline(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Minute}

	calls, err := Run(context.Background(),
		Options{Operation: "rename", Timeout: 180000 * time.Millisecond, Now: clock.Now},
		func(context.Context, string) (string, error) {
			return "more", nil
		})

	require.Error(t, err)
	assert.True(t, fserrors.Is(err, fserrors.ErrTimeout), "got %v", err)
	assert.GreaterOrEqual(t, calls, 1)
	assert.Contains(t, err.Error(), "rename")
}

func TestRun_FirstCallAlwaysIssued(t *testing.T) {
	// The clock jumps past the deadline on its first reading after loop entry.
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Hour}

	calls, err := Run(context.Background(),
		Options{Timeout: time.Second, Now: clock.Now},
		func(context.Context, string) (string, error) {
			return "more", nil
		})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRun_DeadlineBoundaryIsStrict(t *testing.T) {
	// Exactly at the deadline the loop continues.
	clock := &fakeClock{now: time.Unix(0, 0), step: time.Second}
	tokens := []string{"a", ""}

	calls, err := Run(context.Background(),
		Options{Timeout: time.Second, Now: clock.Now},
		func(context.Context, string) (string, error) {
			next := tokens[0]
			tokens = tokens[1:]
			return next, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRun_NoTimeoutNeverExpires(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0), step: 24 * time.Hour}
	remaining := 50

	calls, err := Run(context.Background(), Options{Now: clock.Now},
		func(context.Context, string) (string, error) {
			remaining--
			if remaining == 0 {
				return "", nil
			}
			return "next", nil
		})

	require.NoError(t, err)
	assert.Equal(t, 50, calls)
}

func TestRun_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	n := 0

	calls, err := Run(context.Background(), Options{}, func(context.Context, string) (string, error) {
		n++
		if n == 2 {
			return "", boom
		}
		return "next", nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestCollect_ErrorDiscardsPages(t *testing.T) {
	boom := errors.New("boom")

	got, err := Collect(context.Background(), Options{},
		func(_ context.Context, continuation string) (int, string, error) {
			if continuation == "" {
				return 1, "x", nil
			}
			return 0, "", boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, got)
}
