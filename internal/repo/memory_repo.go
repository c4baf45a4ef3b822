package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/models"
)

// MemoryTownRepo はプロセス内で完結するタウンディレクトリです（REDIS_ADDR 未設定時とテストで使用）
// TTLは読み書きのたびに時刻を見て判定します
type MemoryTownRepo struct {
	mu    sync.Mutex
	clock clock.Clock
	towns map[string]*memTown
}

type memTown struct {
	record    models.TownRecord
	players   map[string]models.Player
	expiresAt time.Time
}

func NewMemoryTownRepo(clk clock.Clock) *MemoryTownRepo {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryTownRepo{clock: clk, towns: make(map[string]*memTown)}
}

// live は期限切れのタウンを消したうえでタウンを返します
func (m *MemoryTownRepo) live(townId string) (*memTown, bool) {
	t, ok := m.towns[townId]
	if !ok {
		return nil, false
	}
	if !m.clock.Now().Before(t.expiresAt) {
		delete(m.towns, townId)
		return nil, false
	}
	return t, true
}

func (m *MemoryTownRepo) CreateTown(_ context.Context, town models.TownRecord, ttlSec int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(town.TownID); ok {
		return ErrTownExists
	}
	m.towns[town.TownID] = &memTown{
		record:    town,
		players:   make(map[string]models.Player),
		expiresAt: m.clock.Now().Add(sec(ttlSec)),
	}
	return nil
}

func (m *MemoryTownRepo) GetTown(_ context.Context, townId string) (models.TownRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(townId)
	if !ok {
		return models.TownRecord{}, false, nil
	}
	return t.record, true, nil
}

func (m *MemoryTownRepo) DeleteTown(_ context.Context, townId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.towns, townId)
	return nil
}

// ListPublicTowns は公開タウンを作成順に返します
func (m *MemoryTownRepo) ListPublicTowns(_ context.Context) ([]models.TownRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := []models.TownRecord{}
	for id := range m.towns {
		t, ok := m.live(id)
		if ok && t.record.IsPubliclyListed {
			res = append(res, t.record)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt != res[j].CreatedAt {
			return res[i].CreatedAt < res[j].CreatedAt
		}
		return res[i].TownID < res[j].TownID
	})
	return res, nil
}

func (m *MemoryTownRepo) AddPlayer(_ context.Context, townId string, player models.Player, ttlSec int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(townId)
	if !ok {
		return nil
	}
	t.players[player.ID] = player
	t.expiresAt = m.clock.Now().Add(sec(ttlSec))
	return nil
}

func (m *MemoryTownRepo) RemovePlayer(_ context.Context, townId, playerId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.live(townId); ok {
		delete(t.players, playerId)
	}
	return nil
}

func (m *MemoryTownRepo) CountPlayers(_ context.Context, townId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.live(townId)
	if !ok {
		return 0, nil
	}
	return len(t.players), nil
}

func (m *MemoryTownRepo) TouchTown(_ context.Context, townId string, ttlSec int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.live(townId); ok {
		t.expiresAt = m.clock.Now().Add(sec(ttlSec))
	}
	return nil
}

func (m *MemoryTownRepo) ExistsTown(_ context.Context, townId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(townId)
	return ok, nil
}
