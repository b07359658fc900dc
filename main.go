package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/AndrioCelos/unobot/internal/auth"
	"github.com/AndrioCelos/unobot/internal/cache"
	"github.com/AndrioCelos/unobot/internal/handlers"
	"github.com/AndrioCelos/unobot/internal/shuffle"
	"github.com/AndrioCelos/unobot/internal/stats"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}
	for _, arg := range os.Args[1:] {
		if arg == "-v" {
			logger.SetLevel(logrus.DebugLevel)
		}
	}

	statsEnabled := os.Getenv("PG_HOST") != ""
	if statsEnabled {
		stats.ConnectDB()
		defer stats.DB.Close()
	} else {
		logger.Warn("PG_HOST not set; player stats will not survive a restart")
	}

	auditEnabled := false
	if os.Getenv("REDIS_ADDR") != "" {
		if err := cache.ConnectRedis(); err != nil {
			logger.WithError(err).Warn("redis unavailable; audit trail disabled")
		} else {
			auditEnabled = true
		}
	}

	if err := auth.Init(); err != nil {
		logger.WithError(err).Fatal("failed to initialize session keys")
	}

	shuffler := shuffle.NewAttestedShuffler(
		os.Getenv("SHUFFLE_SERVICE_URL"),
		shuffle.NewGuard(),
		shuffle.NewLocalShuffler(time.Now().UnixNano()),
		logger,
	)

	hub := handlers.NewRoomHub(logger)
	gs := handlers.NewGameServer(logger, hub, shuffler)
	gs.StatsEnabled = statsEnabled
	gs.AuditEnabled = auditEnabled
	if name := os.Getenv("BOT_NAME"); name != "" {
		gs.BotName = name
	}

	server := &http.Server{
		Handler:      handlers.NewAPIServer(logger, gs, hub),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	port := os.Getenv("UNOBOT_SERVICE_PORT")
	if port == "" {
		port = "8080"
	}
	l, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		logger.WithError(err).Fatal("failed to listen")
	}
	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.WithError(err).Error("failed to serve")
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
	gs.Store.StopAll()
}
