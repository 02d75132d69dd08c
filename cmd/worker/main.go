package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/truesoulcoder/dealpig-sub000/internal/config"
	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
	"github.com/truesoulcoder/dealpig-sub000/internal/handler"
	"github.com/truesoulcoder/dealpig-sub000/internal/logger"
	"github.com/truesoulcoder/dealpig-sub000/internal/queue"
	"github.com/truesoulcoder/dealpig-sub000/internal/runner"
)

var (
	cfg config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Schedules and sends outreach campaign email",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		cfg, err = config.Load()
		log = logger.New(cfg.AppEnv)
		return err
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the periodic tasks and the command consumer until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		loc, _ := time.LoadLocation(cfg.DefaultTimezone)
		m := runner.NewManager(log, loc)
		if err := a.registerTasks(m); err != nil {
			return err
		}

		if err := a.connectQueue(); err != nil {
			log.Warn().Err(err).Msg("AMQP unavailable, manual triggers and delivery events disabled")
		} else if err := queue.StartCommandSubscriber(ctx, a.queue, m, log); err != nil {
			return err
		}

		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: handler.NewWorkerRouter(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !appErrors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server")
			}
		}()

		m.Start()
		<-ctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return m.Stop(shutdownCtx)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run one scheduling cycle",
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
		res, err := a.scheduler.RunCycle(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Send due schedule entries once",
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
		if limit <= 0 {
			limit = cfg.ExecutorBatchSize
		}
		res, err := a.executor.ProcessDue(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(out, res)
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset daily sender counters if today's reset has not run",
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
		if force {
			if err := a.reset.ResetAll(ctx); err != nil {
				return err
			}
			return printJSON(out, map[string]bool{"reset": true})
		}
		done, err := a.reset.RunIfDue(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]bool{"reset": done})
	}),
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-queue failed schedule entries",
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
		if limit <= 0 {
			limit = defaultRetry
		}
		n, err := a.executor.RetryFailed(ctx, limit)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]int{"requeued": n})
	}),
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print schedule entry counts per status",
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer) error {
		stats, err := a.executor.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, stats)
	}),
}

var (
	limit int
	force bool
)

func init() {
	executeCmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to claim (default EXECUTOR_BATCH_SIZE)")
	retryCmd.Flags().IntVar(&limit, "limit", 0, "maximum entries to re-queue (default 50)")
	resetCmd.Flags().BoolVar(&force, "all", false, "reset unconditionally")

	rootCmd.AddCommand(runCmd, scheduleCmd, executeCmd, resetCmd, retryCmd, statsCmd)
}

// withApp runs fn against a freshly built app that is closed afterwards.
func withApp(fn func(ctx context.Context, a *app, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a, cmd.OutOrStdout())
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}
