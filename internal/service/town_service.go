// Package service はビジネスロジックを担当します
// タウンの作成・一覧・参加・退出・削除と、期限切れタウンの掃除を提供します
package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/config"
	"github.com/SteamVC/OfficeHours_Town/internal/idgen"
	"github.com/SteamVC/OfficeHours_Town/internal/models"
	"github.com/SteamVC/OfficeHours_Town/internal/repo"
	"github.com/SteamVC/OfficeHours_Town/internal/town"
)

const maxFriendlyNameLen = 64

// Hub はタウンのイベント配信先です
type Hub interface {
	town.Broadcaster
	CloseTown(townId string) // タウンの全接続を閉じる
}

// IDGenerator はユニークなIDを生成するインターフェース
type IDGenerator interface {
	New() (string, error) // 新しいIDを生成
}

// townIDGen はIDGeneratorの実装
type townIDGen struct{}

// New は新しいタウンIDを生成します
func (townIDGen) New() (string, error) { return idgen.NewTownID() }

// NewTownIDGenerator は新しいTownIDGeneratorを作成します
func NewTownIDGenerator() IDGenerator {
	return townIDGen{}
}

// Options はタウン共通の設定です
type Options struct {
	TTLSec         int           // タウンの有効期限（秒）
	Layout         config.Layout // 新しいタウンのレイアウト
	TAPasswordHash []byte        // TA昇格パスワードのハッシュ
	Clock          clock.Clock
}

// TownService はタウン管理のビジネスロジックを提供します
// タウンの登録情報はリポジトリに、タウンの状態はメモリ上の town.Town に置きます
type TownService struct {
	repo repo.TownRepo // タウンディレクトリ
	idg  IDGenerator   // タウンID生成器
	hub  Hub
	opts Options

	mu    sync.RWMutex
	towns map[string]*town.Town // 稼働中のタウン
}

// NewTownService は新しいTownServiceを作成します
func NewTownService(r repo.TownRepo, idg IDGenerator, hub Hub, opts Options) *TownService {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &TownService{repo: r, idg: idg, hub: hub, opts: opts, towns: make(map[string]*town.Town)}
}

// HashPassword は空でないパスワードのbcryptハッシュを返します（空なら nil）
func HashPassword(password string) ([]byte, error) {
	if password == "" {
		return nil, nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Create は新しいタウンを作成します
// 処理の流れ:
// 1. ユニークなタウンIDを生成（重複チェック付き、最大10回リトライ）
// 2. 削除用パスワードを生成し、ハッシュをリポジトリに保存
// 3. メモリ上にタウンを作成
// 戻り値: 生成されたタウンID、削除用パスワード、エラー
func (s *TownService) Create(ctx context.Context, friendlyName string, isPublic bool) (string, string, error) {
	const maxRetries = 10 // ID生成の最大リトライ回数

	friendlyName = strings.TrimSpace(friendlyName)
	if friendlyName == "" || len(friendlyName) > maxFriendlyNameLen {
		return "", "", ErrInvalidFriendlyName
	}

	var townId string
	var err error

	// ID被りがあった場合、最大maxRetries回まで再生成を試みる
	for i := 0; i < maxRetries; i++ {
		townId, err = s.idg.New()
		if err != nil {
			return "", "", err
		}

		// IDの重複チェック
		exists, err := s.repo.ExistsTown(ctx, townId)
		if err != nil {
			return "", "", err
		}
		if !exists {
			// 重複なし、ループを抜ける
			break
		}
		// 重複あり、次の試行へ
		if i == maxRetries-1 {
			return "", "", ErrTownIDGenerationFailed
		}
	}

	password, err := idgen.NewUpdatePassword()
	if err != nil {
		return "", "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	rec := models.TownRecord{
		TownID:             townId,
		FriendlyName:       friendlyName,
		IsPubliclyListed:   isPublic,
		UpdatePasswordHash: hash,
		CreatedAt:          s.opts.Clock.Now().Unix(),
	}
	if err := s.repo.CreateTown(ctx, rec, s.opts.TTLSec); err != nil {
		if errors.Is(err, repo.ErrTownExists) {
			return "", "", ErrTownAlreadyExists
		}
		return "", "", err
	}
	if _, err := s.materialize(rec); err != nil {
		// タウンを作れなかった場合は登録を削除してロールバック
		_ = s.repo.DeleteTown(ctx, townId)
		return "", "", err
	}
	return townId, password, nil
}

// Get は稼働中のタウンを返します
// 登録情報だけが残っている場合（再起動後など）はレイアウトからタウンを作り直します
func (s *TownService) Get(ctx context.Context, townId string) (*town.Town, error) {
	s.mu.RLock()
	t, ok := s.towns[townId]
	s.mu.RUnlock()
	if ok {
		return t, nil
	}

	rec, exists, err := s.repo.GetTown(ctx, townId)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrTownNotFound
	}
	return s.materialize(rec)
}

func (s *TownService) materialize(rec models.TownRecord) (*town.Town, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.towns[rec.TownID]; ok {
		return t, nil
	}
	t, err := town.New(town.Options{
		TownID:           rec.TownID,
		FriendlyName:     rec.FriendlyName,
		IsPubliclyListed: rec.IsPubliclyListed,
		Layout:           s.opts.Layout,
		TAPasswordHash:   s.opts.TAPasswordHash,
		Clock:            s.opts.Clock,
		Broadcaster:      s.hub,
	})
	if err != nil {
		return nil, err
	}
	s.towns[rec.TownID] = t
	return t, nil
}

// List は公開タウンの一覧を作成順に返します
func (s *TownService) List(ctx context.Context) ([]models.TownListing, error) {
	recs, err := s.repo.ListPublicTowns(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt < recs[j].CreatedAt })

	out := make([]models.TownListing, 0, len(recs))
	for _, rec := range recs {
		n, err := s.repo.CountPlayers(ctx, rec.TownID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.TownListing{
			TownID:           rec.TownID,
			FriendlyName:     rec.FriendlyName,
			CurrentOccupancy: n,
			CreatedAt:        rec.CreatedAt,
		})
	}
	return out, nil
}

// Delete はタウンを削除します（作成時の削除用パスワードが必要）
// 処理の流れ:
// 1. タウンの存在確認
// 2. パスワードを確認
// 3. 登録を削除し、接続中のクライアントを切断
func (s *TownService) Delete(ctx context.Context, townId, updatePassword string) error {
	rec, exists, err := s.repo.GetTown(ctx, townId)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTownNotFound
	}
	if bcrypt.CompareHashAndPassword(rec.UpdatePasswordHash, []byte(updatePassword)) != nil {
		return ErrNotTownOwner
	}
	if err := s.repo.DeleteTown(ctx, townId); err != nil {
		return err
	}
	s.drop(townId)
	return nil
}

// Join はプレイヤーをタウンに参加させます
// 戻り値: プレイヤー、セッショントークン、エラー
func (s *TownService) Join(ctx context.Context, townId, userName string) (models.Player, string, error) {
	t, err := s.Get(ctx, townId)
	if err != nil {
		return models.Player{}, "", err
	}
	p, token, err := t.Join(userName)
	if err != nil {
		return models.Player{}, "", err
	}
	if err := s.repo.AddPlayer(ctx, townId, p, s.opts.TTLSec); err != nil {
		// 登録に失敗した場合はタウンからも退出させてロールバック
		_ = t.Leave(p.ID)
		return models.Player{}, "", err
	}
	return p, token, nil
}

// Leave はプレイヤーをタウンから退出させます
func (s *TownService) Leave(ctx context.Context, townId, playerId string) error {
	t, err := s.Get(ctx, townId)
	if err != nil {
		return err
	}
	if err := t.Leave(playerId); err != nil {
		return err
	}
	return s.repo.RemovePlayer(ctx, townId, playerId)
}

// Touch はタウンのTTL（有効期限）を更新します
func (s *TownService) Touch(ctx context.Context, townId string) error {
	exists, err := s.repo.ExistsTown(ctx, townId)
	if err != nil {
		return err
	}
	if !exists {
		return ErrTownNotFound
	}
	return s.repo.TouchTown(ctx, townId, s.opts.TTLSec)
}

// Reap は稼働中のタウンを点検します
// プレイヤーがいるタウンはTTLを延長し、登録が期限切れになった無人のタウンはメモリから取り除きます
// 戻り値: 取り除いたタウンの数
func (s *TownService) Reap(ctx context.Context) (int, error) {
	s.mu.RLock()
	towns := make([]*town.Town, 0, len(s.towns))
	for _, t := range s.towns {
		towns = append(towns, t)
	}
	s.mu.RUnlock()

	reaped := 0
	for _, t := range towns {
		if t.Occupancy() > 0 {
			if err := s.repo.TouchTown(ctx, t.ID(), s.opts.TTLSec); err != nil {
				return reaped, err
			}
			continue
		}
		exists, err := s.repo.ExistsTown(ctx, t.ID())
		if err != nil {
			return reaped, err
		}
		if !exists {
			log.Printf("reaping expired town (townId=%s)", t.ID())
			s.drop(t.ID())
			reaped++
		}
	}
	return reaped, nil
}

func (s *TownService) drop(townId string) {
	s.mu.Lock()
	delete(s.towns, townId)
	s.mu.Unlock()
	if s.hub != nil {
		s.hub.CloseTown(townId)
	}
}
