package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/konfi-registration/internal/config"
	"github.com/iliyamo/konfi-registration/internal/database"
	"github.com/iliyamo/konfi-registration/internal/handler"
	"github.com/iliyamo/konfi-registration/internal/live"
	"github.com/iliyamo/konfi-registration/internal/middleware"
	"github.com/iliyamo/konfi-registration/internal/queue"
	"github.com/iliyamo/konfi-registration/internal/repository"
	"github.com/iliyamo/konfi-registration/internal/router"
	"github.com/iliyamo/konfi-registration/internal/service"
)

func main() {
	cfg := config.MustLoad()
	config.SetupLogging(cfg)
	log := logrus.WithField("pkg", "main")

	loc, err := cfg.Location()
	if err != nil {
		log.WithError(err).Fatal("timezone")
	}
	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer db.Close()

	var (
		notifier    service.Notifier
		badges      service.BadgeChecker
		broadcaster service.Broadcaster
		subscriber  handler.Subscriber
	)
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, cfg.NotificationQueue, cfg.BadgeQueue)
		notifier, badges = pub, pub
	} else {
		log.Warn("AMQP_URL not set, notifications and badge checks are disabled")
	}
	rdb := config.NewRedisClient()
	if rdb != nil {
		b := live.NewBroadcaster(rdb)
		broadcaster, subscriber = b, b
		defer rdb.Close()
	} else {
		log.Warn("redis unavailable, rate limiting and live updates are disabled")
	}

	svc := service.New(
		service.MySQLStore(repository.NewStore(db)),
		service.NewDispatcher(notifier, broadcaster, badges),
		service.WithLocation(loc),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AMQPURL != "" {
		consumer := queue.NewConsumer(cfg.AMQPURL, cfg.NotificationQueue, queue.NewNotificationLog(cfg.NotificationLog))
		go consumer.Run(ctx)
	}
	sched, err := startReconciler(ctx, svc, cfg.ReconcileCron)
	if err != nil {
		log.WithError(err).Fatal("reconcile schedule")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logrus.WithField("pkg", "http")))

	events := handler.NewEventHandler(svc)
	bookings := handler.NewBookingHandler(svc)
	router.RegisterRoutes(e, db)
	router.RegisterUser(e, events, bookings, handler.NewLiveHandler(subscriber), cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	router.RegisterAdmin(e, events, bookings, cfg.JWTSecret)

	go func() {
		addr := ":" + cfg.Port
		log.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if sched != nil {
		<-sched.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
