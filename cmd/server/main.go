// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/truesoulcoder/dealpig-sub000/internal/clock"
	"github.com/truesoulcoder/dealpig-sub000/internal/config"
	"github.com/truesoulcoder/dealpig-sub000/internal/controller"
	"github.com/truesoulcoder/dealpig-sub000/internal/db"
	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/handler"
	"github.com/truesoulcoder/dealpig-sub000/internal/logger"
	"github.com/truesoulcoder/dealpig-sub000/internal/queue"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

func main() {
	// Load .env
	_ = godotenv.Load()

	cfg, err := config.Load()
	log := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer conn.Close()
	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	// Commands go to the workers over AMQP; without a broker they are
	// published in-process and dropped for lack of subscribers.
	var q queue.Queue
	if amqpQueue, err := queue.DialAMQP(cfg.AMQPURL, log); err == nil {
		q = amqpQueue
	} else {
		log.Warn().Err(err).Msg("AMQP unavailable, using in-memory queue")
		q = queue.NewInMemoryQueue(log)
	}
	defer q.Close()

	campaignService := &service.CampaignService{
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		LeadRepo:     &repository.LeadRepository{DB: conn},
		SenderRepo:   &repository.SenderRepository{DB: conn},
		ScheduleRepo: &repository.ScheduleRepository{DB: conn},
		Queue:        q,
		Clock:        clock.Real{},
		Log:          log,
	}

	router := handler.NewRouter(
		&controller.CampaignController{CampaignService: campaignService, Log: log},
		&handler.OpsHandler{Service: campaignService, Log: log},
		log,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !appErrors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("server stopped")
}
