package area

import (
	"errors"

	"github.com/SteamVC/OfficeHours_Town/internal/queue"
)

// カスタムエラー定義
var (
	ErrOfficeHoursMismatch   = errors.New("question belongs to a different office hours area")
	ErrQuestionNotFound      = errors.New("question not found")
	ErrMissingQuestionID     = errors.New("question id required")
	ErrNotGroupQuestion      = errors.New("question is not a group question")
	ErrAlreadyInQuestion     = errors.New("student is already part of the question")
	ErrNotInQuestion         = errors.New("student is not part of the question")
	ErrNoQuestionsSelected   = errors.New("no questions selected")
	ErrQuestionListedTwice   = errors.New("question listed more than once")
	ErrNotTA                 = errors.New("forbidden: player is not a teaching assistant")
	ErrTANotOnline           = errors.New("teaching assistant is not in the office hours area")
	ErrTANotInArea           = errors.New("player must be inside the office hours area to go online")
	ErrTAAlreadyAssigned     = errors.New("teaching assistant already holds questions")
	ErrNoFreeBreakoutRoom    = errors.New("no free breakout room")
	ErrRoomNotFound          = errors.New("breakout room not found")
	ErrRoomNotLinked         = errors.New("breakout room is linked to a different office hours area")
	ErrDuplicateQuestionType = errors.New("question type already exists")
	ErrUnknownQuestionType   = errors.New("unknown question type")
)

// Retryable は呼び出し側が時間をおいて再試行すれば成功しうるエラーかを返します
// （空きルームなし、キューが空）
func Retryable(err error) bool {
	return errors.Is(err, ErrNoFreeBreakoutRoom) || errors.Is(err, queue.ErrQueueEmpty)
}
