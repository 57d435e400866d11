package main // Entry point package

import (
	"log"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/taskflo/taskflo/internal/config"
	"github.com/taskflo/taskflo/internal/database"
	"github.com/taskflo/taskflo/internal/handler"
	"github.com/taskflo/taskflo/internal/mailer"
	appmw "github.com/taskflo/taskflo/internal/middleware"
	"github.com/taskflo/taskflo/internal/queue"
	"github.com/taskflo/taskflo/internal/repository"
	"github.com/taskflo/taskflo/internal/router"
	"github.com/taskflo/taskflo/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	users := repository.NewUserRepo(db)
	tasks := repository.NewTaskRepo(db)
	tokens := repository.NewTokenRepo(db)

	notifier := service.NewNotifier(cfg.RabbitMQURL, logger)
	recovery := service.NewRecovery(users, tokens, notifier, logger, cfg.ResetTTLMin, cfg.BcryptCost)

	// Mail worker: consumes the queues the notifier publishes to.  Without
	// an SMTP relay configured the worker stays off and messages wait on
	// the broker.
	sender := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if sender.Enabled() {
		go func() {
			if err := queue.StartMailConsumer(cfg, sender, logger); err != nil {
				logger.Error("mail consumer stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("SMTP_HOST not set, mail delivery disabled")
	}

	authH := handler.NewAuthHandler(cfg, users, tokens)
	pwdH := handler.NewPasswordHandler(recovery)
	taskH := handler.NewTaskHandler(tasks, users, notifier)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))

	// Rate limiting on the public auth surface; degrades to a no-op when
	// Redis is unreachable.
	rdb := config.NewRedisClient()
	limit := appmw.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	router.Register(e, authH, pwdH, taskH, cfg.JWTSecret, limit)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
