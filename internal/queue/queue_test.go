package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexander-akhmetov/mat/internal/domain"
	"github.com/alexander-akhmetov/mat/internal/record"
)

func entries(specs ...record.Entry) []record.Entry { return specs }

func ids(items []*domain.WorkItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func drainPending(q *Queue) []string {
	var order []string
	for {
		item := q.NextPending()
		if item == nil {
			return order
		}
		order = append(order, item.ID)
		_ = q.MarkInProgress(item.ID)
		_ = q.MarkCompleted(item.ID)
	}
}

func TestLoad_SortsByPriorityStable(t *testing.T) {
	q := New()
	q.Load(entries(
		record.Entry{ID: "c", Priority: 3},
		record.Entry{ID: "a1", Priority: 1},
		record.Entry{ID: "x", Priority: domain.DefaultPriority},
		record.Entry{ID: "b", Priority: 2},
		record.Entry{ID: "a2", Priority: 1},
	))

	assert.Equal(t, []string{"a1", "a2", "b", "c", "x"}, ids(q.Items()))
	assert.Nil(t, q.Current())
}

func TestLoad_SeedsStatusFromPasses(t *testing.T) {
	q := New()
	q.Load(entries(
		record.Entry{ID: "done", Passes: true},
		record.Entry{ID: "todo"},
	))

	assert.Equal(t, domain.StatusCompleted, q.Get("done").Status)
	assert.Equal(t, domain.StatusPending, q.Get("todo").Status)
}

func TestLoad_ReplacesAndClearsCursor(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "a"}))
	require.NotNil(t, q.NextPending())
	require.NotNil(t, q.Current())

	q.Load(entries(record.Entry{ID: "b"}, record.Entry{ID: "b"}))
	assert.Nil(t, q.Current())
	assert.Nil(t, q.Get("a"))
	assert.Len(t, q.Items(), 1)
}

func TestNextPending_PriorityOrder(t *testing.T) {
	q := New()
	q.Load(entries(
		record.Entry{ID: "US-2", Priority: 2},
		record.Entry{ID: "US-1", Priority: 1},
		record.Entry{ID: "US-3", Priority: 3},
		record.Entry{ID: "US-1b", Priority: 1},
	))

	assert.Equal(t, []string{"US-1", "US-1b", "US-2", "US-3"}, drainPending(q))
	assert.Nil(t, q.NextPending())
}

func TestNextPending_DoesNotChangeStatus(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "a"}, record.Entry{ID: "b", Priority: 5}))

	item := q.NextPending()
	require.NotNil(t, item)
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Same(t, item, q.Current())
	assert.Same(t, item, q.NextPending())
}

func TestNextPending_SkipsExhaustedFailed(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "stuck", Priority: 1}, record.Entry{ID: "next", Priority: 2}))

	require.NoError(t, q.MarkInProgress("stuck"))
	for range 3 {
		_, err := q.BeginAttempt("stuck")
		require.NoError(t, err)
	}
	require.NoError(t, q.MarkFailed("stuck", "Failed after 3 attempts"))

	for range 5 {
		item := q.NextPending()
		require.NotNil(t, item)
		assert.Equal(t, "next", item.ID)
	}
}

func TestCounts(t *testing.T) {
	q := New()
	q.Load(entries(
		record.Entry{ID: "a", Passes: true},
		record.Entry{ID: "b"},
		record.Entry{ID: "c"},
		record.Entry{ID: "d"},
		record.Entry{ID: "e"},
	))
	require.NoError(t, q.MarkInProgress("b"))
	require.NoError(t, q.MarkInProgress("c"))
	require.NoError(t, q.MarkFailed("c", "boom"))
	require.NoError(t, q.MarkInProgress("d"))
	require.NoError(t, q.MarkBlocked("d", "needs api key"))

	assert.Equal(t, domain.Counts{Total: 5, Pending: 1, InProgress: 1, Blocked: 1, Completed: 1, Failed: 1}, q.Counts())
}

func TestTransitions(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "a"}))

	var te *TransitionError
	require.ErrorAs(t, q.MarkCompleted("a"), &te)
	assert.Equal(t, domain.StatusPending, te.From)
	assert.Equal(t, domain.StatusCompleted, te.To)
	require.ErrorAs(t, q.Retry("a"), &te)

	require.NoError(t, q.MarkInProgress("a"))
	require.ErrorAs(t, q.MarkInProgress("a"), &te)

	require.NoError(t, q.AddBlocker("a", "waiting on db"))
	require.NoError(t, q.MarkCompleted("a"))
	item := q.Get("a")
	assert.Equal(t, domain.StatusCompleted, item.Status)
	assert.Empty(t, item.Blockers)

	require.ErrorAs(t, q.MarkFailed("a", "late"), &te)
	require.ErrorIs(t, q.MarkInProgress("missing"), ErrNotFound)
}

func TestRetryKeepsHistory(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "a"}))

	require.NoError(t, q.MarkInProgress("a"))
	n, err := q.BeginAttempt("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, q.RecordFailure("a", "Attempt 1: bad"))
	require.NoError(t, q.MarkFailed("a", "Failed after 1 attempts"))

	item := q.Get("a")
	assert.Equal(t, []string{"Attempt 1: bad", "Failed after 1 attempts"}, item.FailureReasons)
	assert.Nil(t, q.NextPending())

	require.NoError(t, q.Retry("a"))
	assert.Equal(t, domain.StatusPending, item.Status)
	assert.Equal(t, 1, item.AttemptCount)
	assert.Len(t, item.FailureReasons, 2)
}

func TestMarkBlocked(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "a"}))
	require.NoError(t, q.MarkInProgress("a"))
	require.NoError(t, q.MarkBlocked("a", "missing credentials"))

	item := q.Get("a")
	assert.Equal(t, domain.StatusBlocked, item.Status)
	assert.Equal(t, []string{"missing credentials"}, item.Blockers)
	assert.Equal(t, "missing credentials", item.LastFailure())
}

func TestStatusReport(t *testing.T) {
	q := New()
	q.Load(entries(record.Entry{ID: "a"}, record.Entry{ID: "b"}, record.Entry{ID: "c", Passes: true}))
	require.NoError(t, q.MarkInProgress("a"))
	require.NoError(t, q.MarkFailed("a", "tests fail"))
	require.NoError(t, q.MarkInProgress("b"))
	require.NoError(t, q.MarkBlocked("b", "no network"))

	report := q.StatusReport()
	assert.Contains(t, report, "Total: 3")
	assert.Contains(t, report, "Completed:   1")
	assert.Contains(t, report, "Blocked:\n  - b: no network")
	assert.Contains(t, report, "Failed:\n  - a: tests fail")
}

func TestFromEntry_CopiesCriteria(t *testing.T) {
	e := record.Entry{ID: "a", AcceptanceCriteria: []string{"one"}}
	item := FromEntry(e)
	e.AcceptanceCriteria[0] = "changed"
	assert.Equal(t, []string{"one"}, item.AcceptanceCriteria)
}
