package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	appsvc "github.com/Switch-is-case/ChatBots-for-Learning/internal/app"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/config"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/model"
	mysqlClient "github.com/Switch-is-case/ChatBots-for-Learning/internal/platform/mysql"
	rabbitmqClient "github.com/Switch-is-case/ChatBots-for-Learning/internal/platform/rabbitmq"
	redisClient "github.com/Switch-is-case/ChatBots-for-Learning/internal/platform/redis"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/repository"
	"github.com/Switch-is-case/ChatBots-for-Learning/internal/worker"
)

type App struct {
	Config      *config.Config
	Logger      *zap.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Files       *appsvc.FileService
	EventWorker *worker.ChatEventWorker

	StartedAt time.Time
}

func New(ctx context.Context, logger *zap.Logger) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Conversation{},
		&model.Message{},
		&model.ChatEvent{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	files, err := appsvc.NewFileService(cfg.Upload.Dir)
	if err != nil {
		return nil, err
	}

	eventRepo := repository.NewChatEventRepository(mysqlDB)
	eventWorker := worker.NewChatEventWorker(mqConn, eventRepo, cfg.RabbitMQ.ChatEventQueue, logger)
	if err := eventWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start chat event worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		Logger:      logger,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		Files:       files,
		EventWorker: eventWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.EventWorker != nil {
		a.EventWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
