package town

import "errors"

// カスタムエラー定義
var (
	ErrAreaNotFound        = errors.New("area not found")
	ErrNotOfficeHoursArea  = errors.New("area is not an office hours area")
	ErrNotConversationArea = errors.New("area is not a conversation area")
	ErrNotInArea           = errors.New("player is not in the area")
	ErrInvalidTAPassword   = errors.New("forbidden: invalid teaching assistant password")
	ErrAlreadyTA           = errors.New("player is already a teaching assistant")
	ErrAlreadyQueued       = errors.New("player already has a question in this queue")
	ErrNotRoomTA           = errors.New("forbidden: not the breakout room's teaching assistant")
	ErrInvalidUserName     = errors.New("invalid user name")
	ErrEmptyQuestion       = errors.New("question content is empty")
	ErrEmptyQuestionType   = errors.New("question type is empty")
)
