package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/redis/go-redis/v9"
)

const publicTownsKey = "towns:public"

type RedisTownRepo struct{ rdb *redis.Client }

func NewRedisTownRepo(rdb *redis.Client) *RedisTownRepo {
	return &RedisTownRepo{rdb: rdb}
}

func townKey(id string) string {
	return fmt.Sprintf("towns:%s", id)
}
func playersKey(id string) string {
	return fmt.Sprintf("towns:%s:players", id)
}
func playerKey(tid, pid string) string {
	return fmt.Sprintf("players:%s:%s", tid, pid)
}

func sec(v int) time.Duration {
	return time.Duration(v) * time.Second
}

func (rr *RedisTownRepo) CreateTown(ctx context.Context, town models.TownRecord, ttlSec int) error {
	b, err := json.Marshal(town)
	if err != nil {
		return err
	}
	d := sec(ttlSec)
	ok, err := rr.rdb.SetArgs(ctx, townKey(town.TownID), b, redis.SetArgs{Mode: "NX", TTL: d}).Result()
	if err == redis.Nil { // NX で既存キーがある
		return ErrTownExists
	}
	if err != nil {
		return err
	}
	if ok != "OK" {
		return ErrTownExists
	}
	if town.IsPubliclyListed {
		// 公開一覧は期限切れのIDを ListPublicTowns で掃除する
		if err := rr.rdb.SAdd(ctx, publicTownsKey, town.TownID).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (rr *RedisTownRepo) GetTown(ctx context.Context, townId string) (models.TownRecord, bool, error) {
	val, err := rr.rdb.Get(ctx, townKey(townId)).Bytes()
	if err == redis.Nil { // データがない
		return models.TownRecord{}, false, nil
	}
	if err != nil { // エラー
		return models.TownRecord{}, false, err
	}
	var t models.TownRecord
	if err := json.Unmarshal(val, &t); err != nil {
		return models.TownRecord{}, false, err
	}
	return t, true, nil
}

func (rr *RedisTownRepo) DeleteTown(ctx context.Context, townId string) error {
	// Luaスクリプトでアトミックに処理
	script := `
		local town_key = KEYS[1]
		local players_key = KEYS[2]
		local public_key = KEYS[3]
		local town_id = ARGV[1]

		-- 在室プレイヤー一覧を取得
		local player_ids = redis.call('SMEMBERS', players_key)

		-- 削除するキーリストを構築
		local keys_to_delete = {town_key, players_key}
		for _, pid in ipairs(player_ids) do
			local player_key = 'players:' .. town_id .. ':' .. pid
			table.insert(keys_to_delete, player_key)
		end

		-- 一括削除
		redis.call('DEL', unpack(keys_to_delete))
		redis.call('SREM', public_key, town_id)

		return 'OK'
	`

	return rr.rdb.Eval(ctx, script, []string{townKey(townId), playersKey(townId), publicTownsKey}, townId).Err()
}

// ListPublicTowns は公開タウンの一覧を返します
// 期限切れで消えたタウンは公開一覧からも取り除きます
func (rr *RedisTownRepo) ListPublicTowns(ctx context.Context) ([]models.TownRecord, error) {
	ids, err := rr.rdb.SMembers(ctx, publicTownsKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.TownRecord{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = townKey(id)
	}
	vals, err := rr.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	res := make([]models.TownRecord, 0, len(ids))
	var expired []any
	for i, val := range vals {
		b, ok := val.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var t models.TownRecord
		if json.Unmarshal([]byte(b), &t) == nil {
			res = append(res, t)
		}
	}
	if len(expired) > 0 {
		if err := rr.rdb.SRem(ctx, publicTownsKey, expired...).Err(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (rr *RedisTownRepo) AddPlayer(ctx context.Context, townId string, player models.Player, ttlSec int) error {
	b, err := json.Marshal(player)
	if err != nil {
		return err
	}
	d := sec(ttlSec)
	pipe := rr.rdb.TxPipeline()
	pipe.Set(ctx, playerKey(townId, player.ID), b, d) // タウン内にプレイヤー情報を追加
	pipe.SAdd(ctx, playersKey(townId), player.ID)     // タウン内の在室setに追加
	pipe.Expire(ctx, playersKey(townId), d)
	pipe.Expire(ctx, townKey(townId), d)
	_, err = pipe.Exec(ctx)
	return err
}

func (rr *RedisTownRepo) RemovePlayer(ctx context.Context, townId, playerId string) error {
	pipe := rr.rdb.TxPipeline()
	pipe.SRem(ctx, playersKey(townId), playerId)
	pipe.Del(ctx, playerKey(townId, playerId))
	_, err := pipe.Exec(ctx)
	return err
}

func (rr *RedisTownRepo) CountPlayers(ctx context.Context, townId string) (int, error) {
	n, err := rr.rdb.SCard(ctx, playersKey(townId)).Result()
	return int(n), err
}

func (rr *RedisTownRepo) TouchTown(ctx context.Context, townId string, ttlSec int) error {
	// Luaスクリプトでアトミックに処理
	script := `
		local town_key = KEYS[1]
		local players_key = KEYS[2]
		local ttl = tonumber(ARGV[1])
		local town_id = ARGV[2]

		redis.call('EXPIRE', town_key, ttl)
		redis.call('EXPIRE', players_key, ttl)

		local player_ids = redis.call('SMEMBERS', players_key)
		for _, pid in ipairs(player_ids) do
			local player_key = 'players:' .. town_id .. ':' .. pid
			redis.call('EXPIRE', player_key, ttl)
		end

		return 'OK'
	`

	return rr.rdb.Eval(ctx, script, []string{townKey(townId), playersKey(townId)}, ttlSec, townId).Err()
}

func (rr *RedisTownRepo) ExistsTown(ctx context.Context, townId string) (bool, error) {
	n, err := rr.rdb.Exists(ctx, townKey(townId)).Result()
	return n == 1, err
}
