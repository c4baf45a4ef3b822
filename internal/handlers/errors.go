package handlers

import (
	"errors"
	"net/http"

	"github.com/SteamVC/OfficeHours_Town/internal/area"
	"github.com/SteamVC/OfficeHours_Town/internal/player"
	"github.com/SteamVC/OfficeHours_Town/internal/queue"
	"github.com/SteamVC/OfficeHours_Town/internal/service"
	"github.com/SteamVC/OfficeHours_Town/internal/town"
)

// classify はエラーをHTTPステータスと再試行可否に分類します
// WebSocketのエラー通知でも同じ分類を使います
func classify(err error) (int, bool) {
	switch {
	case area.Retryable(err):
		return http.StatusConflict, true
	case errors.Is(err, service.ErrTownNotFound), town.IsNotFound(err):
		return http.StatusNotFound, false
	case isAny(err,
		area.ErrNotTA,
		area.ErrTANotOnline,
		town.ErrInvalidTAPassword,
		town.ErrNotRoomTA,
		service.ErrNotTownOwner):
		return http.StatusForbidden, false
	case isAny(err,
		queue.ErrDuplicateTicket,
		area.ErrAlreadyInQuestion,
		area.ErrDuplicateQuestionType,
		area.ErrTAAlreadyAssigned,
		town.ErrAlreadyQueued,
		town.ErrAlreadyTA,
		service.ErrTownAlreadyExists):
		return http.StatusConflict, false
	case isAny(err,
		area.ErrOfficeHoursMismatch,
		area.ErrMissingQuestionID,
		area.ErrTANotInArea,
		area.ErrNotGroupQuestion,
		area.ErrNotInQuestion,
		area.ErrNoQuestionsSelected,
		area.ErrQuestionListedTwice,
		area.ErrUnknownQuestionType,
		player.ErrNotInBreakoutRoom,
		town.ErrNotOfficeHoursArea,
		town.ErrNotConversationArea,
		town.ErrNotInArea,
		town.ErrInvalidUserName,
		town.ErrEmptyQuestion,
		town.ErrEmptyQuestionType,
		service.ErrInvalidFriendlyName,
		errBadPayload):
		return http.StatusBadRequest, false
	default:
		return http.StatusInternalServerError, false
	}
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
