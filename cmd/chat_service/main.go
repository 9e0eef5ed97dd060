package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat_relay_service/internal/chat/app"
	"chat_relay_service/internal/chat/domain"
	"chat_relay_service/internal/chat/repository"
	"chat_relay_service/internal/chat/router"
	"chat_relay_service/pkg/config"
	"chat_relay_service/pkg/database"
	"chat_relay_service/pkg/logger"
	testtool "chat_relay_service/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.ChatRelay](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)
	testtool.StartPprof()

	// 1. 建立 PostgreSQL 連線 (永久保存訊息)
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.PostgreSQL.User, cfg.PostgreSQL.Password,
		cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	db, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    dsn,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("address", fmt.Sprintf("[%s:%d]", cfg.PostgreSQL.Host, cfg.PostgreSQL.Port)),
			zap.Error(err),
		)
	}
	if err := db.AutoMigrate(&domain.Room{}, &domain.Message{}); err != nil {
		logger.Log.Fatal(fmt.Sprintf("auto migrate err : %v", err))
	}

	// 2. 建立 Redis 連線 (每個房間一條 stream)
	redisClient, err := database.NewRedisClient(database.RedisConnection{
		Addr:          cfg.Redis.Addr,
		DB:            cfg.Redis.RedisDB,
		RetryCount:    5,
		RetryInterval: 2,
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. 初始化 Repository
	streamRepo := repository.NewRedisStreamRepository(redisClient)
	roomRepo := repository.NewRoomRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	// 4. 初始化 hub / worker / UseCase
	hub := app.NewRoomHub()
	worker := app.NewRelayWorker(streamRepo, roomRepo, msgRepo, cfg.Relay)
	roomUC := app.NewRoomUseCase(roomRepo, msgRepo, streamRepo, hub, worker)
	chatHandler := app.NewChatWebsocketHandler(roomUC, hub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. 回填既有房間的 stream，之後才讓 worker 開始輪詢
	if err := worker.Bootstrap(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("bootstrap err : %v", err))
	}
	if _, err := roomUC.ListRooms(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("sync rooms err : %v", err))
	}
	go worker.Run(ctx)

	// 6. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r, chatHandler)

	port := ":" + cfg.Port
	go func() {
		log.Printf("Chat Service listening on %s", port)
		if err := r.Listen(port); err != nil {
			logger.Log.Fatal(fmt.Sprintf("Failed to start Fiber: %v", err))
		}
	}()

	// 7. 等 stop signal，worker 跑完當前週期才退出
	<-ctx.Done()
	logger.Log.Info("shutdown signal received")
	if err := r.Shutdown(); err != nil {
		logger.Log.Errorf("fiber shutdown err:", err)
	}
	<-worker.Done()

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	redisClient.Close()
	logger.Log.Sync()
}
