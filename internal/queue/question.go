package queue

import (
	"slices"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
)

// Question は1件の質問です（個人またはグループ）
type Question struct {
	ID            string    // 質問ID
	OfficeHoursID string    // 所属するオフィスアワーエリアのID
	Content       string    // 質問内容
	Students      []string  // 参加している学生のID（先頭が作成者）
	Group         bool      // グループ質問かどうか
	Category      string    // 質問カテゴリ
	CreatedAt     time.Time // 作成時刻
}

func (q *Question) TicketID() string       { return q.ID }
func (q *Question) TicketCategory() string { return q.Category }
func (q *Question) TicketTime() time.Time  { return q.CreatedAt }

// HasStudent は学生が質問に含まれているかを返します
func (q *Question) HasStudent(studentID string) bool {
	return slices.Contains(q.Students, studentID)
}

// RemoveStudent は学生を取り除き、取り除けたかを返します
func (q *Question) RemoveStudent(studentID string) bool {
	i := slices.Index(q.Students, studentID)
	if i < 0 {
		return false
	}
	q.Students = slices.Delete(q.Students, i, i+1)
	return true
}

// Clone は学生リストを含めたコピーを返します
func (q *Question) Clone() *Question {
	c := *q
	c.Students = slices.Clone(q.Students)
	return &c
}

// Model はクライアント向けのモデルに変換します
func (q *Question) Model() models.OfficeHoursQuestion {
	students := slices.Clone(q.Students)
	if students == nil {
		students = []string{}
	}
	return models.OfficeHoursQuestion{
		ID:              q.ID,
		OfficeHoursID:   q.OfficeHoursID,
		QuestionContent: q.Content,
		Students:        students,
		GroupQuestion:   q.Group,
		QuestionType:    q.Category,
		TimeAsked:       q.CreatedAt.UnixMilli(),
	}
}

// QuestionFromModel はモデルから Question を復元します
func QuestionFromModel(m models.OfficeHoursQuestion) *Question {
	return &Question{
		ID:            m.ID,
		OfficeHoursID: m.OfficeHoursID,
		Content:       m.QuestionContent,
		Students:      slices.Clone(m.Students),
		Group:         m.GroupQuestion,
		Category:      m.QuestionType,
		CreatedAt:     time.UnixMilli(m.TimeAsked).UTC(),
	}
}

// Models は質問の一覧をモデルに変換します
func Models(qs []*Question) []models.OfficeHoursQuestion {
	out := make([]models.OfficeHoursQuestion, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Model())
	}
	return out
}
