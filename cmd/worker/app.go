package main

import (
	"context"
	"database/sql"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/truesoulcoder/dealpig-sub000/internal/clock"
	"github.com/truesoulcoder/dealpig-sub000/internal/config"
	"github.com/truesoulcoder/dealpig-sub000/internal/db"
	"github.com/truesoulcoder/dealpig-sub000/internal/document"
	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/lock"
	"github.com/truesoulcoder/dealpig-sub000/internal/mailer"
	"github.com/truesoulcoder/dealpig-sub000/internal/queue"
	"github.com/truesoulcoder/dealpig-sub000/internal/repository"
	"github.com/truesoulcoder/dealpig-sub000/internal/service"
)

// app holds the worker's collaborators for one process.
type app struct {
	cfg config.Config
	log zerolog.Logger

	db    *sql.DB
	redis *redis.Client
	queue queue.Queue

	scheduler *service.CampaignScheduler
	executor  *service.ScheduleExecutor
	reset     *service.DailyReset
}

func newApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (*app, error) {
	conn, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: conn}

	var locker service.Locker
	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, appErrors.Wrapf(err, "redis %s", cfg.RedisAddr)
		}
		locker = lock.NewRedisLocker(a.redis)
	}

	send, err := mailer.New(cfg.Mailer, mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if err := a.build(locker, send); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// build assembles the services over the app's database handle.
func (a *app) build(locker service.Locker, send mailer.Sender) error {
	defaultLoc, err := time.LoadLocation(a.cfg.DefaultTimezone)
	if err != nil {
		return appErrors.Wrap(err, "default timezone")
	}
	resetLoc, err := time.LoadLocation(a.cfg.ResetTimezone)
	if err != nil {
		return appErrors.Wrap(err, "reset timezone")
	}

	campaigns := &repository.CampaignRepository{DB: a.db}
	senders := &repository.SenderRepository{DB: a.db}
	leads := &repository.LeadRepository{DB: a.db}
	schedule := &repository.ScheduleRepository{DB: a.db}
	quota := &service.QuotaTracker{Senders: senders}
	clk := clock.Real{}

	seed := uint64(time.Now().UnixNano())
	a.scheduler = &service.CampaignScheduler{
		Campaigns: campaigns,
		Senders:   senders,
		Leads:     leads,
		Schedule:  schedule,
		Quota:     quota,
		Assigner:  &service.Assigner{Window: service.NewTimeWindow(rand.New(rand.NewPCG(seed, seed>>1)), defaultLoc)},
		Clock:     clk,
		Log:       a.log.With().Str("component", "scheduler").Logger(),
		Locker:    locker,
		LockTTL:   a.cfg.SchedulerLockTTL,
	}
	a.executor = &service.ScheduleExecutor{
		Schedule:  schedule,
		Campaigns: campaigns,
		Leads:     leads,
		Senders:   senders,
		Quota:     quota,
		Mailer:    send,
		Documents: &document.FileGenerator{Dir: a.cfg.DocumentDir, Log: a.log},
		Clock:     clk,
		Log:       a.log.With().Str("component", "executor").Logger(),
		Pacer:     service.NewPacer(a.cfg.SendDelayMin, a.cfg.SendDelayMax, a.cfg.SendsPerMinute, rand.New(rand.NewPCG(seed>>2, seed))),
	}
	a.reset = &service.DailyReset{
		Senders:  senders,
		Location: resetLoc,
		Clock:    clk,
		Log:      a.log.With().Str("component", "daily_reset").Logger(),
	}
	return nil
}

// connectQueue attaches the AMQP broker for commands and delivery events.
func (a *app) connectQueue() error {
	q, err := queue.DialAMQP(a.cfg.AMQPURL, a.log)
	if err != nil {
		return err
	}
	a.queue = q
	a.executor.Events = q
	return nil
}

func (a *app) Close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close queue")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
