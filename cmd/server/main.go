package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SteamVC/OfficeHours_Town/internal/clock"
	"github.com/SteamVC/OfficeHours_Town/internal/config"
	"github.com/SteamVC/OfficeHours_Town/internal/handlers"
	httpx "github.com/SteamVC/OfficeHours_Town/internal/http"
	"github.com/SteamVC/OfficeHours_Town/internal/repo"
	"github.com/SteamVC/OfficeHours_Town/internal/service"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	layout, err := config.LoadLayout(cfg.LayoutPath)
	if err != nil {
		log.Fatalf("failed to load town layout: %v", err)
	}

	taHash, err := service.HashPassword(cfg.TAPassword)
	if err != nil {
		log.Fatalf("failed to hash TA password: %v", err)
	}
	if taHash == nil {
		log.Println("TA_PASSWORD is not set; upgrades to TA are disabled")
	}

	clk := clock.Real()

	var tr repo.TownRepo
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			PoolSize:     10,              // 接続プールサイズ
			MinIdleConns: 5,               // 最小アイドル接続数
			MaxRetries:   3,               // リトライ回数
			DialTimeout:  5 * time.Second, // 接続タイムアウト
			ReadTimeout:  3 * time.Second, // 読み込みタイムアウト
			WriteTimeout: 3 * time.Second, // 書き込みタイムアウト
			PoolTimeout:  4 * time.Second, // プールからの取得タイムアウト
		})
		defer rdb.Close()

		// Redis接続確認
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		log.Println("connected to redis")
		tr = repo.NewRedisTownRepo(rdb)
	} else {
		log.Println("REDIS_ADDR is not set; using in-memory town directory")
		tr = repo.NewMemoryTownRepo(clk)
	}

	hub := handlers.NewTownHub()
	svc := service.NewTownService(tr, service.NewTownIDGenerator(), hub, service.Options{
		TTLSec:         cfg.TownTTL,
		Layout:         layout,
		TAPasswordHash: taHash,
		Clock:          clk,
	})
	h := handlers.NewTownHandler(svc)
	wsHandler := handlers.NewWebSocketHandler(svc, hub)
	router := httpx.NewRouter(h, wsHandler, cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 期限切れタウンの掃除
	go func() {
		ticker := time.NewTicker(cfg.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := svc.Reap(ctx); err != nil {
					log.Printf("reap error: %v", err)
				} else if n > 0 {
					log.Printf("reaped %d town(s)", n)
				}
			}
		}
	}()

	// Graceful shutdown用のシグナルチャネル
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// サーバーを別goroutineで起動
	go func() {
		log.Printf("listening on %s", cfg.APIAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// シャットダウンシグナルを待つ
	<-sigChan
	log.Println("shutdown signal received, shutting down gracefully...")
	stop()

	// 30秒のタイムアウトでGraceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}
