package player

import (
	"testing"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayer_PromoteToTA(t *testing.T) {
	p := New("p1", "tok-1", "alice", models.Location{X: 10, Y: 20})

	assert.Equal(t, RoleStudent, p.Role())
	_, ok := p.TA()
	assert.False(t, ok)
	_, ok = p.TAModel()
	assert.False(t, ok)

	require.True(t, p.PromoteToTA())
	assert.False(t, p.PromoteToTA(), "second promotion must be rejected")
	assert.Equal(t, RoleTA, p.Role())
	assert.Equal(t, "ta", p.Role().String())

	state, ok := p.TA()
	require.True(t, ok)
	assert.False(t, state.Assigned())

	state.BreakoutRoomID = "br-1"
	state.Questions = []*queue.Question{{ID: "q1", OfficeHoursID: "oh-1", Students: []string{"s1"}, CreatedAt: time.Unix(1, 0)}}
	assert.True(t, state.Assigned())

	m, ok := p.TAModel()
	require.True(t, ok)
	assert.Equal(t, "br-1", m.BreakoutRoomID)
	require.Len(t, m.Questions, 1)
	assert.Equal(t, "q1", m.Questions[0].ID)

	state.Release()
	assert.False(t, state.Assigned())
	assert.True(t, p.Model().IsTA)
}

func TestRoster(t *testing.T) {
	r := NewRoster()
	a := New("a", "tok-a", "alice", models.Location{})
	b := New("b", "tok-b", "bob", models.Location{})

	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.ErrorIs(t, r.Add(a), ErrDuplicatePlayer)
	assert.ErrorIs(t, r.Add(New("c", "tok-a", "carol", models.Location{})), ErrDuplicateToken)

	got, err := r.ByToken("tok-b")
	require.NoError(t, err)
	assert.Same(t, b, got)

	assert.Equal(t, []*Player{b, a}, r.Find([]string{"b", "missing", "a"}))
	assert.Equal(t, []string{"a", "b"}, r.IDs())

	r.MarkInBreakout([]string{"a", "ghost"}, "br-1")
	roomID, err := r.BreakoutRoom("a")
	require.NoError(t, err)
	assert.Equal(t, "br-1", roomID)
	_, err = r.BreakoutRoom("ghost")
	assert.ErrorIs(t, err, ErrNotInBreakoutRoom)

	// 別の部屋の解除では割り当ては残る
	r.ReleaseBreakout([]string{"a"}, "br-9")
	roomID, err = r.BreakoutRoom("a")
	require.NoError(t, err)
	assert.Equal(t, "br-1", roomID)

	r.ReleaseBreakout([]string{"a"}, "br-1")
	r.ReleaseBreakout([]string{"a"}, "br-1")
	_, err = r.BreakoutRoom("a")
	assert.ErrorIs(t, err, ErrNotInBreakoutRoom)

	r.MarkInBreakout([]string{"b"}, "br-2")
	_, err = r.Remove("b")
	require.NoError(t, err)
	_, err = r.BreakoutRoom("b")
	assert.ErrorIs(t, err, ErrNotInBreakoutRoom)
	_, err = r.ByToken("tok-b")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	_, err = r.Remove("b")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []*Player{a}, r.All())
}
