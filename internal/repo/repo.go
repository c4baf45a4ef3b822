// Package repo はタウンディレクトリ（タウンの登録情報と在室プレイヤー）の永続化を担当します
// タウンの状態そのもの（エリアやキュー）はメモリ上の town.Town が持ちます
package repo

import (
	"context"
	"errors"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
)

var ErrTownExists = errors.New("town already exists")

type TownRepo interface {
	CreateTown(ctx context.Context, town models.TownRecord, ttlSec int) error
	GetTown(ctx context.Context, townId string) (models.TownRecord, bool, error)
	DeleteTown(ctx context.Context, townId string) error
	ListPublicTowns(ctx context.Context) ([]models.TownRecord, error)

	AddPlayer(ctx context.Context, townId string, player models.Player, ttlSec int) error
	RemovePlayer(ctx context.Context, townId, playerId string) error
	CountPlayers(ctx context.Context, townId string) (int, error)

	TouchTown(ctx context.Context, townId string, ttlSec int) error
	ExistsTown(ctx context.Context, townId string) (bool, error)
}
