package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/buyer"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/chat"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/config"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/events"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/handler"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/hub"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/inventory"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/payment"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/presence"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/purchase"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/session"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/streak"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/database"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/jwt"
	pkglog "github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/middleware"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "live-engine",
	})
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogQueries:      cfg.Database.LogQueries,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, store.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	st := store.NewGormStore(db)
	defer st.Close()

	// Presence store
	var presenceStore presence.PresenceStore
	switch cfg.Presence.Backend {
	case "memory":
		presenceStore = presence.NewMemoryStore()
	default:
		presenceStore, err = presence.NewRedisStore(presence.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis for presence")
		}
	}
	defer presenceStore.Close()

	// Chat tail
	var chatTail chat.MessageLog
	switch cfg.Chat.Backend {
	case "memory":
		chatTail = chat.NewMemoryLog(cfg.Chat.TailSize)
	default:
		chatTail = chat.NewRedisLog(redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), cfg.Chat.TailSize, time.Duration(cfg.Chat.TailTTLHours)*time.Hour)
	}
	defer chatTail.Close()

	// Event bus backends
	wsHub := hub.NewHub(hub.Config{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      time.Duration(cfg.WebSocket.WriteWaitSecs) * time.Second,
		PongWait:       time.Duration(cfg.WebSocket.PongWaitSecs) * time.Second,
		PingInterval:   time.Duration(cfg.WebSocket.PingIntervalSecs) * time.Second,
	})

	var publisher pubsub.Publisher
	if cfg.PubSub.Driver != "none" {
		ps, err := pubsub.NewPubSub(pubsub.Config{
			Driver: cfg.PubSub.Driver,
			Redis: pubsub.RedisConfig{
				Address:  cfg.Redis.Address,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			},
			Kafka: pubsub.KafkaConfig{
				Brokers: cfg.PubSub.KafkaBrokers,
				GroupID: cfg.PubSub.KafkaGroupID,
			},
		})
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
		}
		defer ps.Close()
		publisher = ps
	}
	bus := events.NewBus(wsHub, publisher)

	// Core components
	ledger := inventory.NewLedger(st, cfg.Purchase.LedgerMaxRetries)
	streaks := streak.NewEngine()

	registry := presence.NewRegistry(presenceStore, bus, presence.Config{
		HeartbeatTTL:      time.Duration(cfg.Presence.HeartbeatTTLSeconds) * time.Second,
		SweepInterval:     time.Duration(cfg.Presence.SweepIntervalSeconds) * time.Second,
		BroadcastInterval: time.Duration(cfg.Presence.BroadcastIntervalSeconds) * time.Second,
	})

	channel := chat.NewChannel(chat.NewWordListFilter(cfg.Chat.BlockedTerms), chatTail, bus)

	sessions := session.NewManager(st, ledger, bus, registry)
	sessions.OnEnded(func(sessionID string) {
		channel.CloseSession(context.Background(), sessionID)
		streaks.ResetSession(sessionID)
	})
	ledger.OnDepleted(func(productID string) {
		// Sold-out notice is advisory; the affected session, if any, is the
		// one currently showing the product.
		go notifyDepletion(sessions, productID)
	})

	processor := payment.NewHTTPClient(cfg.Purchase.PaymentServiceURL, time.Duration(cfg.Purchase.CaptureTimeoutSeconds)*time.Second)
	profiles := buyer.NewHTTPChecker(cfg.Purchase.ProfileServiceURL, 5*time.Second)
	purchases := purchase.NewCoordinator(st, ledger, streaks, processor, profiles, sessions, bus, purchase.Config{
		CaptureTimeout:     time.Duration(cfg.Purchase.CaptureTimeoutSeconds) * time.Second,
		CaptureConcurrency: int64(cfg.Purchase.CaptureConcurrency),
	})
	reconciler := purchase.NewReconciler(st, ledger, processor,
		time.Duration(cfg.Purchase.ReconcileIntervalSecs)*time.Second,
		time.Duration(cfg.Purchase.ReconcileMinAgeSeconds)*time.Second,
	)

	// HTTP and websocket surface
	tokens := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	authMiddleware := middleware.NewAuthMiddleware(tokens)
	h := handler.New(sessions, registry, channel, purchases, st, wsHub, hub.Config{
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		WriteWait:      time.Duration(cfg.WebSocket.WriteWaitSecs) * time.Second,
		PongWait:       time.Duration(cfg.WebSocket.PongWaitSecs) * time.Second,
		PingInterval:   time.Duration(cfg.WebSocket.PingIntervalSecs) * time.Second,
	}, tokens)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	h.RegisterRoutes(r, authMiddleware)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		registry.Run(gctx)
		return nil
	})
	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", addr).Str("db_driver", cfg.Database.Driver).Str("pubsub_driver", cfg.PubSub.Driver).Msg("live-engine starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("live-engine exited with error")
	}
	logger.Info().Msg("live-engine stopped")
}

// notifyDepletion forwards a sold-out product to its session, which is the
// broadcaster currently presenting it.
func notifyDepletion(sessions *session.Manager, productID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sessions.NotifyDepletedEverywhere(ctx, productID)
}
