package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vpanteleev/gradient-bot/bot"
	"github.com/vpanteleev/gradient-bot/db"
	"github.com/vpanteleev/gradient-bot/feed"
	"github.com/vpanteleev/gradient-bot/gradient"
	"github.com/vpanteleev/gradient-bot/ratelimit"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(1)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	// One limiter per process: the upstream quota is shared by all chats.
	// Rate 0 means the deployment opted out of client-side throttling.
	var limiter *ratelimit.Limiter
	if cfg.RateQPS > 0 {
		limiter, err = ratelimit.New(cfg.RateQPS, cfg.RateBurst, seconds(cfg.RateCooldown))
		if err != nil {
			slog.Error("invalid rate limiter settings", "err", err)
			os.Exit(1)
		}
		slog.Info("rate limiter enabled",
			"qps", cfg.RateQPS, "burst", cfg.RateBurst, "cooldown", seconds(cfg.RateCooldown))
	}

	hub := feed.NewHub()
	go hub.Run()

	agent, err := gradient.New(gradient.Config{
		APIKey:         cfg.DOAPIKey,
		AgentID:        cfg.DOAgentID,
		BaseURL:        cfg.DOBaseURL,
		AgentEndpoint:  cfg.AgentEndpoint,
		AgentAccessKey: cfg.AgentAccessKey,
		Timeout:        seconds(cfg.RequestTimeout),
		MaxRetries:     cfg.MaxRetries,
		BaseBackoff:    seconds(cfg.BaseBackoff),
		MaxBackoff:     seconds(cfg.MaxBackoff),
		Limiter:        limiter,
		OnOverload: func(hint time.Duration) {
			hub.Publish(feed.NewEvent(feed.EventCooldown, 0, hint.String()))
		},
	})
	if err != nil {
		slog.Error("failed to build agent client", "err", err)
		os.Exit(1)
	}

	relay, err := bot.New(cfg.TelegramToken, agent, database, hub)
	if err != nil {
		slog.Error("failed to connect to Telegram", "err", err)
		os.Exit(1)
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	http.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("feed upgrade failed", "err", err)
			return
		}
		client := feed.NewClient(hub, conn)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	})

	go func() {
		slog.Info("http listener starting", "addr", cfg.ListenAddr)
		if err := http.ListenAndServe(cfg.ListenAddr, nil); err != nil {
			slog.Error("http server failed", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting polling loop")
	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("bot stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
