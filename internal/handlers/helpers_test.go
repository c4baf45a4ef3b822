package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/config"
	"github.com/SteamVC/OfficeHours_Town/internal/repo"
	"github.com/SteamVC/OfficeHours_Town/internal/service"
)

const testTAPassword = "office-hours"

type testEnv struct {
	svc    *service.TownService
	hub    *TownHub
	server *httptest.Server
}

// newTestEnv はメモリ上のタウンディレクトリでAPIサーバーを起動します
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hash, err := service.HashPassword(testTAPassword)
	require.NoError(t, err)

	clk := clock.Real()
	hub := NewTownHub()
	svc := service.NewTownService(repo.NewMemoryTownRepo(clk), service.NewTownIDGenerator(), hub, service.Options{
		TTLSec:         60,
		Layout:         config.DefaultLayout(),
		TAPasswordHash: hash,
		Clock:          clk,
	})
	h := NewTownHandler(svc)
	ws := NewWebSocketHandler(svc, hub)

	r := chi.NewRouter()
	r.Route("/api/v1/towns", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{townId}", h.Get)
		r.Delete("/{townId}", h.Delete)
		r.Post("/{townId}/join", h.Join)
		r.Post("/{townId}/touch", h.Touch)
		r.Get("/{townId}/tas", h.TAs)
		r.Get("/{townId}/officehours/{areaId}", h.OfficeHours)
		r.Get("/{townId}/officehours/{areaId}/queue", h.Queue)
		r.Get("/{townId}/ws", ws.HandleWebSocket)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{svc: svc, hub: hub, server: srv}
}

func (e *testEnv) createTown(t *testing.T, name string, public bool) (string, string) {
	t.Helper()
	id, password, err := e.svc.Create(context.Background(), name, public)
	require.NoError(t, err)
	return id, password
}

func (e *testEnv) join(t *testing.T, townId, userName string) (string, string) {
	t.Helper()
	p, token, err := e.svc.Join(context.Background(), townId, userName)
	require.NoError(t, err)
	return p.ID, token
}

// do はJSONリクエストを送り、ステータスとデコード済みのボディを返します
func (e *testEnv) do(t *testing.T, method, path string, body any, header map[string]string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if resp.ContentLength != 0 {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp.StatusCode, out
}
