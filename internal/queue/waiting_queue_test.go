package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func question(id, category string, offset int) *Question {
	return &Question{
		ID:            id,
		OfficeHoursID: "oh-1",
		Content:       "help with " + id,
		Students:      []string{"student-" + id},
		Category:      category,
		CreatedAt:     base.Add(time.Duration(offset) * time.Second),
	}
}

func ids(qs []*Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}

func TestWaitingQueue_AddRemoveAccounting(t *testing.T) {
	q := NewWaitingQueue[*Question]()
	added, removed := 0, 0

	for i := 0; i < 10; i++ {
		if err := q.Add(question(fmt.Sprintf("q%d", i), "q1", i)); err == nil {
			added++
		}
	}
	// 重複追加は失敗する
	err := q.Add(question("q3", "q1", 99))
	assert.ErrorIs(t, err, ErrDuplicateTicket)

	for _, id := range []string{"q0", "q5", "q9"} {
		_, err := q.Remove(id)
		require.NoError(t, err)
		removed++
	}
	// 存在しない要素の削除は必ず失敗する
	_, err = q.Remove("q5")
	assert.ErrorIs(t, err, ErrTicketNotFound)
	_, err = q.Remove("missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)

	assert.Equal(t, added-removed, q.Len())
}

func TestWaitingQueue_SnapshotDoesNotMutate(t *testing.T) {
	q := NewWaitingQueue[*Question]()
	require.NoError(t, q.Add(question("a", "q2", 3)))
	require.NoError(t, q.Add(question("b", "q1", 2)))
	require.NoError(t, q.Add(question("c", "q3", 1)))

	byArrival := q.Snapshot(ByArrival[*Question]())
	byPriority := q.Snapshot(ByPriority[*Question](NewPriorities(map[string]int{"q1": 1, "q2": 2, "q3": 3})))

	assert.Equal(t, []string{"c", "b", "a"}, ids(byArrival))
	assert.Equal(t, []string{"b", "a", "c"}, ids(byPriority))
	assert.ElementsMatch(t, ids(byArrival), ids(byPriority))
	assert.Equal(t, 3, q.Len())
}

func TestWaitingQueue_PollScenario(t *testing.T) {
	tests := []struct {
		name  string
		ranks map[string]int
		want  []string
	}{
		{"q1 first", map[string]int{"q1": 1, "q2": 2, "q3": 3}, []string{"T1", "T2", "T3"}},
		{"q3 first", map[string]int{"q3": 1, "q2": 2, "q1": 3}, []string{"T3", "T1", "T2"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := NewWaitingQueue[*Question]()
			require.NoError(t, q.Add(question("T1", "q1", 1)))
			require.NoError(t, q.Add(question("T2", "q1", 2)))
			require.NoError(t, q.Add(question("T3", "q3", 1)))

			p := NewPriorities(tc.ranks)
			var got []string
			for q.Len() > 0 {
				item, err := q.Poll(p)
				require.NoError(t, err)
				got = append(got, item.ID)
			}
			assert.Equal(t, tc.want, got)

			_, err := q.Poll(p)
			assert.ErrorIs(t, err, ErrQueueEmpty)
		})
	}
}

func TestWaitingQueue_PollFollowsPriorityChanges(t *testing.T) {
	q := NewWaitingQueue[*Question]()
	require.NoError(t, q.Add(question("T1", "q1", 1)))
	require.NoError(t, q.Add(question("T2", "q2", 2)))
	require.NoError(t, q.Add(question("T3", "q3", 3)))

	p := NewPriorities(map[string]int{"q1": 1, "q2": 2, "q3": 3})
	head, err := q.Peek(p)
	require.NoError(t, err)
	assert.Equal(t, "T1", head.ID)

	// 表を更新するとヒープは組み直される
	p.Set("q3", 0)
	item, err := q.Poll(p)
	require.NoError(t, err)
	assert.Equal(t, "T3", item.ID)

	// 別の表を渡しても組み直される
	other := NewPriorities(map[string]int{"q2": 1})
	item, err = q.Poll(other)
	require.NoError(t, err)
	assert.Equal(t, "T2", item.ID)
}

func TestWaitingQueue_RemoveKeepsHeapValid(t *testing.T) {
	q := NewWaitingQueue[*Question]()
	p := NewPriorities(nil)
	for i := 0; i < 20; i++ {
		require.NoError(t, q.Add(question(fmt.Sprintf("q%02d", i), "q1", 20-i)))
	}
	_, err := q.Peek(p)
	require.NoError(t, err)

	for _, id := range []string{"q19", "q07", "q11"} {
		_, err := q.Remove(id)
		require.NoError(t, err)
	}
	require.NoError(t, q.Add(question("late", "q1", 100)))

	var got []string
	for q.Len() > 0 {
		item, err := q.Poll(p)
		require.NoError(t, err)
		got = append(got, item.ID)
	}

	// 作成時刻は q19 が最も早く q00 が最も遅い
	var want []string
	for i := 18; i >= 0; i-- {
		if i == 7 || i == 11 {
			continue
		}
		want = append(want, fmt.Sprintf("q%02d", i))
	}
	want = append(want, "late")
	assert.Equal(t, want, got)
}

func TestWaitingQueue_EqualTimestampsUseInsertionOrder(t *testing.T) {
	q := NewWaitingQueue[*Question]()
	require.NoError(t, q.Add(question("first", "x", 0)))
	require.NoError(t, q.Add(question("second", "y", 0)))
	require.NoError(t, q.Add(question("third", "z", 0)))

	snap := q.Snapshot(ByPriority[*Question](NewPriorities(nil)))
	assert.Equal(t, []string{"first", "second", "third"}, ids(snap))

	item, err := q.Poll(nil)
	require.NoError(t, err)
	assert.Equal(t, "first", item.ID)
}

func TestWaitingQueue_Update(t *testing.T) {
	q := NewWaitingQueue[*Question]()
	require.NoError(t, q.Add(question("a", "q1", 1)))

	updated := question("a", "q1", 1)
	updated.Students = []string{"s1", "s2"}
	require.NoError(t, q.Update(updated))

	got, ok := q.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"s1", "s2"}, got.Students)

	assert.ErrorIs(t, q.Update(question("zzz", "q1", 1)), ErrTicketNotFound)
}
