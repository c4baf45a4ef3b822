package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTownHandler_CreateListGet(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/towns/", map[string]any{
		"friendlyName":     "CS101",
		"isPubliclyListed": true,
	}, nil)
	require.Equal(t, http.StatusOK, status)
	townID, _ := body["townID"].(string)
	assert.Len(t, townID, 7)
	assert.NotEmpty(t, body["townUpdatePassword"])

	status, body = env.do(t, http.MethodGet, "/api/v1/towns/", nil, nil)
	require.Equal(t, http.StatusOK, status)
	towns, _ := body["towns"].([]any)
	require.Len(t, towns, 1)
	assert.Equal(t, townID, towns[0].(map[string]any)["townID"])

	status, body = env.do(t, http.MethodGet, "/api/v1/towns/"+townID, nil, nil)
	require.Equal(t, http.StatusOK, status)
	town, _ := body["town"].(map[string]any)
	assert.Equal(t, "CS101", town["friendlyName"])
	assert.NotEmpty(t, town["interactables"])
}

func TestTownHandler_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/towns/", map[string]any{"friendlyName": "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["retryable"])

	// 未知のフィールドは拒否する
	status, _ = env.do(t, http.MethodPost, "/api/v1/towns/", map[string]any{"friendlyName": "x", "owner": "me"}, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/towns/nothere", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	townID, _ := env.createTown(t, "CS101", true)
	status, _ = env.do(t, http.MethodPost, "/api/v1/towns/"+townID+"/join", map[string]any{"userName": ""}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTownHandler_JoinAndQueue(t *testing.T) {
	env := newTestEnv(t)
	townID, _ := env.createTown(t, "CS101", true)

	status, body := env.do(t, http.MethodPost, "/api/v1/towns/"+townID+"/join", map[string]any{"userName": "alice"}, nil)
	require.Equal(t, http.StatusOK, status)
	token, _ := body["sessionToken"].(string)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, body["playerID"])

	status, body = env.do(t, http.MethodGet, "/api/v1/towns/"+townID+"/officehours/oh-main", nil, nil)
	require.Equal(t, http.StatusOK, status)
	oh, _ := body["officeHours"].(map[string]any)
	assert.Equal(t, "oh-main", oh["id"])
	assert.Equal(t, false, oh["officeHoursActive"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/towns/"+townID+"/officehours/lounge", nil, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/towns/"+townID+"/officehours/oh-main/queue", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/towns/"+townID+"/officehours/oh-main/queue", nil,
		map[string]string{sessionTokenHeader: "bogus"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/towns/"+townID+"/officehours/oh-main/queue", nil,
		map[string]string{sessionTokenHeader: token})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "oh-main", body["officeHoursID"])

	status, body = env.do(t, http.MethodGet, "/api/v1/towns/"+townID+"/tas", nil, nil)
	require.Equal(t, http.StatusOK, status)
	tas, _ := body["teachingAssistants"].([]any)
	assert.Empty(t, tas)
}

func TestTownHandler_DeleteRequiresPassword(t *testing.T) {
	env := newTestEnv(t)
	townID, password := env.createTown(t, "CS101", true)

	status, _ := env.do(t, http.MethodDelete, "/api/v1/towns/"+townID, map[string]any{"townUpdatePassword": "wrong"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodPost, "/api/v1/towns/"+townID+"/touch", nil, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodDelete, "/api/v1/towns/"+townID, map[string]any{"townUpdatePassword": password}, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/towns/"+townID, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.do(t, http.MethodPost, "/api/v1/towns/"+townID+"/touch", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}
