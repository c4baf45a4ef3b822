package handlers

import (
	"log"
	"net/http"

	"github.com/SteamVC/OfficeHours_Town/internal/service"
	"github.com/go-chi/chi/v5"
)

// sessionTokenHeader はREST APIでセッションを識別するヘッダー
const sessionTokenHeader = "X-Session-Token"

type TownHandler struct {
	svc *service.TownService
}

func NewTownHandler(s *service.TownService) *TownHandler { return &TownHandler{svc: s} }

type createTownRequest struct {
	FriendlyName     string `json:"friendlyName"`
	IsPubliclyListed bool   `json:"isPubliclyListed"`
}

type deleteTownRequest struct {
	TownUpdatePassword string `json:"townUpdatePassword"`
}

type joinRequest struct {
	UserName string `json:"userName"`
}

func (h *TownHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in createTownRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	id, password, err := h.svc.Create(r.Context(), in.FriendlyName, in.IsPubliclyListed)
	if err != nil {
		log.Printf("Create town error: %v", err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"townID": id, "townUpdatePassword": password})
}

func (h *TownHandler) List(w http.ResponseWriter, r *http.Request) {
	towns, err := h.svc.List(r.Context())
	if err != nil {
		log.Printf("List towns error: %v", err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"towns": towns})
}

func (h *TownHandler) Get(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	if err := validateTownId(townId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Get(r.Context(), townId)
	if err != nil {
		log.Printf("Get town error (townId=%s): %v", townId, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"town": t.Snapshot()})
}

func (h *TownHandler) Delete(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	if err := validateTownId(townId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in deleteTownRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.svc.Delete(r.Context(), townId, in.TownUpdatePassword); err != nil {
		log.Printf("Delete town error (townId=%s): %v", townId, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// Join はプレイヤーをタウンに参加させ、WebSocket接続用のセッショントークンを返します
func (h *TownHandler) Join(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	if err := validateTownId(townId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var in joinRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	p, token, err := h.svc.Join(r.Context(), townId, in.UserName)
	if err != nil {
		log.Printf("Join town error (townId=%s): %v", townId, err)
		writeServiceError(w, err)
		return
	}
	t, err := h.svc.Get(r.Context(), townId)
	if err != nil {
		log.Printf("Join town error (townId=%s, playerId=%s): %v", townId, p.ID, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"playerID":     p.ID,
		"sessionToken": token,
		"town":         t.Snapshot(),
	})
}

func (h *TownHandler) Touch(w http.ResponseWriter, r *http.Request) {
	id := normalizeID(chi.URLParam(r, "townId"))
	if err := validateTownId(id); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.Touch(r.Context(), id); err != nil {
		log.Printf("Touch town error (townId=%s): %v", id, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

// TAs はタウン内のTA一覧を返します
func (h *TownHandler) TAs(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	if err := validateTownId(townId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Get(r.Context(), townId)
	if err != nil {
		log.Printf("List TAs error (townId=%s): %v", townId, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"teachingAssistants": t.TAs()})
}

func (h *TownHandler) OfficeHours(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	areaId := normalizeID(chi.URLParam(r, "areaId"))
	if err := validateTownId(townId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAreaId(areaId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := h.svc.Get(r.Context(), townId)
	if err != nil {
		log.Printf("Get office hours error (townId=%s): %v", townId, err)
		writeServiceError(w, err)
		return
	}
	oh, err := t.OfficeHours(areaId)
	if err != nil {
		log.Printf("Get office hours error (townId=%s, areaId=%s): %v", townId, areaId, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"officeHours": oh})
}

// Queue はセッションのプレイヤーから見た質問キューを返します
// TAには自分の並び順設定が反映されます
func (h *TownHandler) Queue(w http.ResponseWriter, r *http.Request) {
	townId := normalizeID(chi.URLParam(r, "townId"))
	areaId := normalizeID(chi.URLParam(r, "areaId"))
	token := normalizeID(r.Header.Get(sessionTokenHeader))
	if err := validateTownId(townId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateAreaId(areaId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateSessionToken(token); err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	t, err := h.svc.Get(r.Context(), townId)
	if err != nil {
		log.Printf("Get queue error (townId=%s): %v", townId, err)
		writeServiceError(w, err)
		return
	}
	playerId, err := t.Authenticate(token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid session token")
		return
	}
	q, err := t.Queue(playerId, areaId)
	if err != nil {
		log.Printf("Get queue error (townId=%s, areaId=%s, playerId=%s): %v", townId, areaId, playerId, err)
		writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}
