package area

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
	"github.com/SteamVC/OfficeHours_Town/internal/queue"
)

func TestOfficeHours_AddOrUpdateQuestionIsIdempotent(t *testing.T) {
	f := newFixture(t, 1)
	m := models.OfficeHoursQuestion{
		ID:              "q1",
		OfficeHoursID:   "oh-1",
		QuestionContent: "why is my loop slow",
		Students:        []string{"s1"},
		GroupQuestion:   true,
		QuestionType:    "q1",
		TimeAsked:       base.UnixMilli(),
	}

	require.NoError(t, f.oh.AddOrUpdateQuestion(m))
	first, err := f.oh.Question("q1")
	require.NoError(t, err)

	require.NoError(t, f.oh.AddOrUpdateQuestion(m))
	second, err := f.oh.Question("q1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.oh.QueueLen())
}

func TestOfficeHours_AddOrUpdateQuestion(t *testing.T) {
	f := newFixture(t, 1)
	f.ask(t, "q1", "q2", true, "s1")

	t.Run("update replaces students and content", func(t *testing.T) {
		require.NoError(t, f.oh.AddOrUpdateQuestion(models.OfficeHoursQuestion{
			ID:              "q1",
			OfficeHoursID:   "oh-1",
			QuestionContent: "edited",
			Students:        []string{"s1", "s2"},
			GroupQuestion:   true,
			QuestionType:    "q3",
		}))
		q, err := f.oh.Question("q1")
		require.NoError(t, err)
		assert.Equal(t, "edited", q.Content)
		assert.Equal(t, []string{"s1", "s2"}, q.Students)
		assert.Equal(t, "q2", q.Category)
		assert.Equal(t, base, q.CreatedAt)
		assert.NotEmpty(t, f.events.ofType(models.EventOfficeHoursQuestionUpdate))
	})

	t.Run("mismatched office hours", func(t *testing.T) {
		err := f.oh.AddOrUpdateQuestion(models.OfficeHoursQuestion{ID: "qx", OfficeHoursID: "oh-2", Students: []string{"s9"}})
		assert.ErrorIs(t, err, ErrOfficeHoursMismatch)
		_, err = f.oh.Question("qx")
		assert.ErrorIs(t, err, ErrQuestionNotFound)
	})

	t.Run("empty students removes", func(t *testing.T) {
		require.NoError(t, f.oh.AddOrUpdateQuestion(models.OfficeHoursQuestion{ID: "q1", OfficeHoursID: "oh-1"}))
		_, err := f.oh.Question("q1")
		assert.ErrorIs(t, err, ErrQuestionNotFound)
		assert.Equal(t, 0, f.oh.QueueLen())
	})

	t.Run("missing id is rejected", func(t *testing.T) {
		m := models.OfficeHoursQuestion{OfficeHoursID: "oh-1", Students: []string{"s3"}, QuestionType: "q1"}
		before := f.oh.QueueLen()
		for i := 0; i < 2; i++ {
			assert.ErrorIs(t, f.oh.AddOrUpdateQuestion(m), ErrMissingQuestionID)
		}
		assert.Equal(t, before, f.oh.QueueLen())
		_, ok := f.oh.QuestionFor("s3")
		assert.False(t, ok)
	})

	t.Run("missing time is filled", func(t *testing.T) {
		require.NoError(t, f.oh.AddOrUpdateQuestion(models.OfficeHoursQuestion{ID: "q4", OfficeHoursID: "oh-1", Students: []string{"s4"}, QuestionType: "q1"}))
		q, err := f.oh.Question("q4")
		require.NoError(t, err)
		assert.Equal(t, f.clock.Now(), q.CreatedAt)
	})
}

func TestOfficeHours_JoinAndLeaveQuestion(t *testing.T) {
	f := newFixture(t, 1)
	f.ask(t, "group", "q1", true, "s1")
	f.ask(t, "solo", "q1", false, "s2")

	require.NoError(t, f.oh.JoinQuestion("s3", "group"))
	assert.ErrorIs(t, f.oh.JoinQuestion("s3", "group"), ErrAlreadyInQuestion)
	assert.ErrorIs(t, f.oh.JoinQuestion("s3", "solo"), ErrNotGroupQuestion)
	assert.ErrorIs(t, f.oh.JoinQuestion("s3", "missing"), ErrQuestionNotFound)

	q, err := f.oh.Question("group")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s3"}, q.Students)

	assert.ErrorIs(t, f.oh.LeaveQuestion("s2", "group"), ErrNotInQuestion)
	require.NoError(t, f.oh.LeaveQuestion("s1", "group"))
	require.NoError(t, f.oh.LeaveQuestion("s3", "group"))

	// 最後の学生が抜けた質問は取り除かれる
	_, err = f.oh.Question("group")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.Equal(t, 1, f.oh.QueueLen())
}

func TestOfficeHours_RemoveQuestionsForPlayer(t *testing.T) {
	f := newFixture(t, 1)
	f.ask(t, "a", "q1", true, "s1", "s2")
	f.ask(t, "b", "q1", false, "s1")
	f.ask(t, "c", "q1", false, "s3")

	assert.Equal(t, 2, f.oh.RemoveQuestionsForPlayer("s1"))

	a, err := f.oh.Question("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, a.Students)
	_, err = f.oh.Question("b")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
	assert.Equal(t, 2, f.oh.QueueLen())

	_, err = f.oh.RemoveQuestion("c")
	require.NoError(t, err)
	_, err = f.oh.RemoveQuestion("c")
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestOfficeHours_TARoster(t *testing.T) {
	f := newFixture(t, 1)
	ta := f.join(t, "ta1", true)
	student := f.join(t, "s1", false)

	f.oh.Add(student)
	assert.False(t, f.oh.IsActive())
	assert.ErrorIs(t, f.oh.AddTA(student), ErrNotTA)
	assert.Contains(t, f.oh.Occupants(), "s1")

	// エリアの外にいるTAはオンラインにできない
	assert.ErrorIs(t, f.oh.AddTA(ta), ErrTANotInArea)
	assert.Empty(t, f.oh.TAs())

	f.oh.Add(ta)
	assert.True(t, f.oh.IsActive())
	assert.Equal(t, []string{"ta1"}, f.oh.TAs())
	require.NoError(t, f.oh.AddTA(ta))
	assert.Equal(t, []string{"ta1"}, f.oh.TAs())

	// モデルの取得で設定は作られない
	oh := f.oh.Model().(models.OfficeHoursArea)
	require.Len(t, oh.TAInfos, 1)
	assert.False(t, oh.TAInfos[0].IsSorted)
	assert.Empty(t, f.oh.taInfos)

	f.ask(t, "q", "q1", false, "s1")
	f.oh.Remove(ta)
	assert.False(t, f.oh.IsActive())
	assert.Equal(t, 1, f.oh.QueueLen())
}

func TestOfficeHours_QueueFollowsTAPreferences(t *testing.T) {
	f := newFixture(t, 1)
	ta := f.join(t, "ta1", true)
	f.oh.Add(ta)

	f.ask(t, "T1", "q3", false, "s1")
	f.ask(t, "T2", "q1", false, "s2")
	f.ask(t, "T3", "q2", false, "s3")

	assert.Equal(t, []string{"T1", "T2", "T3"}, questionIDs(f.oh.Queue("ta1")))

	require.NoError(t, f.oh.SetSorted(ta, true))
	assert.Equal(t, []string{"T2", "T3", "T1"}, questionIDs(f.oh.Queue("ta1")))

	require.NoError(t, f.oh.SetPriorities(ta, []models.PriorityEntry{{Key: "q3", Value: 1}}))
	assert.Equal(t, []string{"T1", "T2", "T3"}, questionIDs(f.oh.Queue("ta1")))

	// 他の閲覧者には到着順
	assert.Equal(t, []string{"T1", "T2", "T3"}, questionIDs(f.oh.Queue("s1")))

	oh := f.oh.Model().(models.OfficeHoursArea)
	require.Len(t, oh.TAInfos, 1)
	assert.True(t, oh.TAInfos[0].IsSorted)
	assert.Equal(t, []models.PriorityEntry{{Key: "q3", Value: 1}}, oh.TAInfos[0].Priorities)
}

func TestOfficeHours_QuestionTypes(t *testing.T) {
	f := newFixture(t, 1)
	ta := f.join(t, "ta1", true)
	student := f.join(t, "s1", false)

	assert.ErrorIs(t, f.oh.AddQuestionType(student, "q9"), ErrNotTA)
	require.NoError(t, f.oh.AddQuestionType(ta, "q9"))
	assert.ErrorIs(t, f.oh.AddQuestionType(ta, "q9"), ErrDuplicateQuestionType)

	require.NoError(t, f.oh.RemoveQuestionType(ta, "q1"))
	assert.ErrorIs(t, f.oh.RemoveQuestionType(ta, "q1"), ErrUnknownQuestionType)
	assert.Equal(t, []string{"q2", "q3", "q9"}, f.oh.QuestionTypes())

	_, ranked := f.oh.Priorities("ta1").Rank("q1")
	assert.False(t, ranked)
}

func TestOfficeHours_TakeWithNoFreeRoomFails(t *testing.T) {
	f := newFixture(t, 0)
	ta := f.join(t, "ta1", true)
	f.oh.Add(ta)
	f.ask(t, "q1", "q1", false, "s1")

	_, err := f.oh.TakeQuestions(ta, []string{"q1"}, 0)
	assert.ErrorIs(t, err, ErrNoFreeBreakoutRoom)
	assert.True(t, Retryable(err))

	_, err = f.oh.Question("q1")
	assert.NoError(t, err)
	state, _ := ta.TA()
	assert.False(t, state.Assigned())
	assert.Empty(t, f.events.ofType(models.EventOfficeHoursQuestionTaken))
}

func TestOfficeHours_TakeQuestionsCreatesOneRoom(t *testing.T) {
	f := newFixture(t, 1)
	ta := f.join(t, "ta1", true)
	for _, id := range []string{"s1", "s2", "s3"} {
		f.join(t, id, false)
	}
	f.oh.Add(ta)
	f.ask(t, "q1", "q2", true, "s1", "s2")
	f.ask(t, "q2", "q1", true, "s2", "s3")

	room, err := f.oh.TakeQuestions(ta, []string{"q1", "q2"}, 10*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, "room-a", room.ID())
	assert.True(t, room.IsActive())
	assert.Equal(t, "ta1", room.TeachingAssistantID())
	assert.Equal(t, "q2", room.Topic())
	assert.Equal(t, []string{"s1", "s2", "s3"}, room.Students())
	assert.Equal(t, 0, f.oh.FreeRooms())
	assert.Equal(t, 0, f.oh.QueueLen())

	state, _ := ta.TA()
	assert.Equal(t, "room-a", state.BreakoutRoomID)
	assert.Equal(t, []string{"q1", "q2"}, questionIDs(state.Questions))

	for _, id := range []string{"s1", "s2", "s3"} {
		got, err := f.roster.BreakoutRoom(id)
		require.NoError(t, err)
		assert.Equal(t, "room-a", got)
	}

	taken := f.events.ofType(models.EventOfficeHoursQuestionTaken)
	require.Len(t, taken, 1)
	assert.ElementsMatch(t, []string{"ta1", "s1", "s2", "s3"}, taken[0].Recipients)

	f.clock.Advance(4 * time.Minute)
	m := room.Model().(models.BreakoutRoomArea)
	require.NotNil(t, m.TimeLeft)
	assert.Equal(t, int64(360), *m.TimeLeft)

	// 枠が埋まっているので次の割り当ては失敗する
	ta2 := f.join(t, "ta2", true)
	f.oh.Add(ta2)
	f.ask(t, "q3", "q1", false, "s4")
	_, err = f.oh.TakeNextQuestion(ta2, 0)
	assert.ErrorIs(t, err, ErrNoFreeBreakoutRoom)
	assert.Equal(t, 1, f.oh.QueueLen())
}

func TestOfficeHours_TakeQuestionsValidation(t *testing.T) {
	f := newFixture(t, 2)
	ta := f.join(t, "ta1", true)
	student := f.join(t, "s1", false)
	f.ask(t, "q1", "q1", false, "s1")

	_, err := f.oh.TakeQuestions(ta, []string{"q1"}, 0)
	assert.ErrorIs(t, err, ErrTANotOnline)

	f.oh.Add(student)
	_, err = f.oh.TakeQuestions(student, []string{"q1"}, 0)
	assert.ErrorIs(t, err, ErrNotTA)

	f.oh.Add(ta)
	_, err = f.oh.TakeQuestions(ta, nil, 0)
	assert.ErrorIs(t, err, ErrNoQuestionsSelected)
	_, err = f.oh.TakeQuestions(ta, []string{"q1", "q1"}, 0)
	assert.ErrorIs(t, err, ErrQuestionListedTwice)
	_, err = f.oh.TakeQuestions(ta, []string{"q1", "missing"}, 0)
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	// 失敗した呼び出しは何も変えない
	assert.Equal(t, 1, f.oh.QueueLen())
	assert.Equal(t, 2, f.oh.FreeRooms())

	_, err = f.oh.TakeQuestions(ta, []string{"q1"}, 0)
	require.NoError(t, err)
	f.ask(t, "q2", "q1", false, "s2")
	_, err = f.oh.TakeQuestions(ta, []string{"q2"}, 0)
	assert.ErrorIs(t, err, ErrTAAlreadyAssigned)
}

func TestOfficeHours_TakeNextQuestionUsesTAPriorities(t *testing.T) {
	f := newFixture(t, 2)
	ta := f.join(t, "ta1", true)
	f.oh.Add(ta)

	_, err := f.oh.TakeNextQuestion(ta, 0)
	assert.ErrorIs(t, err, queue.ErrQueueEmpty)
	assert.True(t, Retryable(err))
	assert.Equal(t, 2, f.oh.FreeRooms())

	f.ask(t, "T1", "q1", false, "s1")
	f.ask(t, "T2", "q1", false, "s2")
	f.ask(t, "T3", "q3", false, "s3")
	require.NoError(t, f.oh.SetPriorities(ta, []models.PriorityEntry{{Key: "q3", Value: 1}, {Key: "q1", Value: 3}}))

	room, err := f.oh.TakeNextQuestion(ta, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3"}, room.Students())
	assert.Equal(t, "q3", room.Topic())
	assert.Equal(t, []string{"T1", "T2"}, questionIDs(f.oh.Queue("")))
}

func TestOfficeHours_ReleaseBreakoutRoom(t *testing.T) {
	f := newFixture(t, 1)
	ta := f.join(t, "ta1", true)
	s1 := f.join(t, "s1", false)
	f.oh.Add(ta)
	f.ask(t, "q1", "q1", false, "s1")

	room, err := f.oh.TakeQuestions(ta, []string{"q1"}, 0)
	require.NoError(t, err)
	f.oh.Remove(ta)
	room.Add(ta)
	room.Add(s1)

	members, err := f.oh.ReleaseBreakoutRoom(room.ID())
	require.NoError(t, err)
	assert.Equal(t, []string{"ta1", "s1"}, members)
	assert.False(t, room.IsActive())
	assert.Equal(t, 1, f.oh.FreeRooms())

	state, _ := ta.TA()
	assert.False(t, state.Assigned())
	_, err = f.roster.BreakoutRoom("s1")
	assert.ErrorIs(t, err, player.ErrNotInBreakoutRoom)

	// 閉じた部屋をもう一度閉じても何も起きない
	members, err = f.oh.ReleaseBreakoutRoom(room.ID())
	require.NoError(t, err)
	assert.Empty(t, members)

	_, err = f.oh.ReleaseBreakoutRoom("nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	// 質問は再キューされない
	assert.Equal(t, 0, f.oh.QueueLen())
}

func questionIDs(qs []*queue.Question) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.ID)
	}
	return out
}
