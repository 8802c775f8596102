package sources

import (
	"testing"
	"time"

	"github.com/pevans/pagefeed/newsfeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Hour)
	t2 = t0.Add(2 * time.Hour)
)

// Test helper: a state that has seen content once
func createTestState() State {
	return State{
		LastChecked:  t0,
		LastModified: t0,
		ETag:         `"v1"`,
		Items: []newsfeed.Item{
			{Title: "One", Body: newsfeed.HTMLBody("<p>1</p>")},
		},
	}
}

func assertTimeOrder(t *testing.T, s State) {
	t.Helper()
	assert.False(t, s.LastModified.After(s.LastChecked), "last_modified must not be after last_checked")
	if s.Error != "" {
		assert.Empty(t, s.ETag, "a failed state must not keep a cache validator")
	}
}

// TestNewState verifies a fresh state is never checked and empty
func TestNewState(t *testing.T) {
	s := NewState()

	assert.True(t, s.NeverChecked())
	assert.NotNil(t, s.Items)
	assert.Empty(t, s.Items)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.ETag)
}

// TestReconcile_Unchanged verifies only last_checked moves and the error is
// cleared
func TestReconcile_Unchanged(t *testing.T) {
	prior := createTestState()
	prior.Error = "stale"
	prior.ETag = ""

	next := Reconcile(prior, Unchanged{}, t1)

	assert.Equal(t, t1, next.LastChecked)
	assert.Equal(t, t0, next.LastModified)
	assert.Empty(t, next.Error)
	assert.Equal(t, prior.Items, next.Items)
	assertTimeOrder(t, next)
}

// TestReconcile_ChangedNewItems verifies content changes replace everything
func TestReconcile_ChangedNewItems(t *testing.T) {
	prior := createTestState()
	prior.Error = "old failure"
	prior.ETag = ""
	items := []newsfeed.Item{{Title: "Two", Body: newsfeed.HTMLBody("<p>2</p>")}}

	next := Reconcile(prior, Changed{ETag: `"v2"`, Items: items}, t1)

	assert.Equal(t, t1, next.LastChecked)
	assert.Equal(t, t1, next.LastModified)
	assert.Empty(t, next.Error)
	assert.Equal(t, `"v2"`, next.ETag)
	assert.Equal(t, items, next.Items)
	assertTimeOrder(t, next)
}

// TestReconcile_ChangedSameItems verifies identical content is not a change
func TestReconcile_ChangedSameItems(t *testing.T) {
	prior := createTestState()
	same := []newsfeed.Item{{Title: "One", Body: newsfeed.HTMLBody("<p>1</p>")}}

	next := Reconcile(prior, Changed{ETag: `"v2"`, Items: same}, t1)

	assert.Equal(t, t1, next.LastChecked)
	assert.Equal(t, t0, next.LastModified, "identical content must not bump last_modified")
	assert.Equal(t, prior.Items, next.Items)
	assert.Equal(t, `"v1"`, next.ETag, "an unchanged reduction keeps the previous validator")
	assert.Equal(t, newsfeed.ItemID(prior.Items[0]), newsfeed.ItemID(next.Items[0]))
	assertTimeOrder(t, next)
}

// TestReconcile_ChangedEmptyAfterEmpty verifies an empty extraction on a new
// page is not a change
func TestReconcile_ChangedEmptyAfterEmpty(t *testing.T) {
	next := Reconcile(NewState(), Changed{}, t1)

	assert.Equal(t, t1, next.LastChecked)
	assert.True(t, next.LastModified.IsZero())
	assert.NotNil(t, next.Items)
	assertTimeOrder(t, next)
}

// TestReconcile_Failed verifies a new failure keeps items and drops the
// validator
func TestReconcile_Failed(t *testing.T) {
	prior := createTestState()

	next := Reconcile(prior, Failed{Message: "HTTP status 500"}, t1)

	assert.Equal(t, t1, next.LastChecked)
	assert.Equal(t, t1, next.LastModified)
	assert.Equal(t, "HTTP status 500", next.Error)
	assert.Empty(t, next.ETag)
	assert.Equal(t, prior.Items, next.Items, "last known good content should be kept")
	assertTimeOrder(t, next)
}

// TestReconcile_RepeatedFailure verifies identical failures are deduplicated
func TestReconcile_RepeatedFailure(t *testing.T) {
	first := Reconcile(createTestState(), Failed{Message: "HTTP status 500"}, t1)
	second := Reconcile(first, Failed{Message: "HTTP status 500"}, t2)

	assert.Equal(t, t1, second.LastModified, "repeated failure must not bump last_modified")
	assert.Equal(t, t2, second.LastChecked, "repeated failure still counts as a check")
	assert.Equal(t, "HTTP status 500", second.Error, "the error stays reported")
	assert.Equal(t, first.Items, second.Items)
	assertTimeOrder(t, second)
}

// TestReconcile_DifferentFailure verifies a new message is a transition
func TestReconcile_DifferentFailure(t *testing.T) {
	first := Reconcile(createTestState(), Failed{Message: "HTTP status 500"}, t1)
	second := Reconcile(first, Failed{Message: "HTTP status 502"}, t2)

	assert.Equal(t, t2, second.LastModified)
	assert.Equal(t, "HTTP status 502", second.Error)
	assertTimeOrder(t, second)
}

// TestReconcile_RecoveryWithSameContent verifies recovery after an error
// clears it without a content change
func TestReconcile_RecoveryWithSameContent(t *testing.T) {
	failed := Reconcile(createTestState(), Failed{Message: "timeout"}, t1)
	recovered := Reconcile(failed, Changed{ETag: `"v1"`, Items: failed.Items}, t2)

	assert.Empty(t, recovered.Error)
	assert.Equal(t, t2, recovered.LastChecked)
	assert.Equal(t, t1, recovered.LastModified)
	assertTimeOrder(t, recovered)
}

// TestReconcile_NormalizesTime verifies timestamps are stored in UTC without
// a monotonic reading
func TestReconcile_NormalizesTime(t *testing.T) {
	local := time.Now().In(time.FixedZone("X", 3600))

	next := Reconcile(NewState(), Failed{Message: "x"}, local)

	require.Equal(t, time.UTC, next.LastChecked.Location())
	assert.True(t, next.LastChecked.Equal(local))
	assert.Equal(t, next.LastChecked, next.LastChecked.Round(0))
}
