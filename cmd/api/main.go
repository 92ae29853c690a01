package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	cacheadapter "go-relay/internal/infrastructure/cache/adapter"
	cacheport "go-relay/internal/infrastructure/cache/port"
	"go-relay/internal/infrastructure/database"
	"go-relay/internal/infrastructure/logging"
	queueadapter "go-relay/internal/infrastructure/queue/adapter"
	"go-relay/internal/infrastructure/realtime"
	"go-relay/internal/infrastructure/security"
	"go-relay/internal/pkg/chat/application/task"
	"go-relay/internal/pkg/chat/application/usecase"
	repoadapter "go-relay/internal/pkg/chat/persistence/repository/adapter"
	httpHandler "go-relay/internal/pkg/chat/presentation/http"

	v1 "go-relay/cmd/api/router/v1"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logging.Warn(".env file not found or could not be loaded", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	pool, err := database.NewPoolFromEnv(connectCtx)
	cancel()
	if err != nil {
		logging.Log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	var cache cacheport.Cache
	if c, err := cacheadapter.NewRedisAdapter(); err != nil {
		logging.Warn("presence cache disabled", zap.Error(err))
	} else {
		cache = c
		defer c.Close()
	}

	jwtOpts, err := security.OptionsFromEnv()
	if err != nil {
		logging.Log.Fatal("auth configuration missing", zap.Error(err))
	}
	verifier := security.NewHMACVerifier(jwtOpts)

	registry := realtime.NewRegistry()
	defer registry.Close()
	rooms := realtime.NewRooms()

	repo := repoadapter.NewPgChatRepository(pool)

	queueClient, err := queueadapter.NewAsynqClientFromEnv()
	if err != nil {
		logging.Log.Fatal("failed to create queue client", zap.Error(err))
	}
	defer queueClient.Close()

	queueServer, err := queueadapter.NewAsynqServer()
	if err != nil {
		logging.Log.Fatal("failed to create queue server", zap.Error(err))
	}
	task.RegisterSendMessageTask(queueServer,
		usecase.NewSendMessageUseCase(repo, rooms, registry), registry)
	go func() {
		if err := queueServer.Run(ctx); err != nil {
			logging.Error("queue server stopped", zap.Error(err))
		}
	}()

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	v1.RegisterRoutes(r, httpHandler.Deps{
		Repo:     repo,
		Queue:    queueClient,
		Verifier: verifier,
		Registry: registry,
		Rooms:    rooms,
		Cache:    cache,
	})

	logging.Info("relay listening")
	if err := r.Run(); err != nil {
		logging.Log.Fatal("server exited", zap.Error(err))
	}
}
