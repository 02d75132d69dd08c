//cmd/seeder/main.go
package main

import (
    "context"
    "os"
    "path/filepath"

    "github.com/joho/godotenv"

    "github.com/truesoulcoder/dealpig-sub000/internal/config"
    "github.com/truesoulcoder/dealpig-sub000/internal/db"
    "github.com/truesoulcoder/dealpig-sub000/internal/logger"
)

var seedFiles = []string{
    "senders.sql",
    "campaigns.sql",
    "leads.sql",
    "campaign_senders.sql",
    "campaign_leads.sql",
}

func main() {
    _ = godotenv.Load()

    cfg, err := config.Load()
    log := logger.New(cfg.AppEnv)
    if err != nil {
        log.Fatal().Err(err).Msg("invalid configuration")
    }

    dir := "seed"
    if len(os.Args) > 1 {
        dir = os.Args[1]
    }

    ctx := context.Background()
    conn, err := db.Open(ctx, cfg.DatabaseURL, log)
    if err != nil {
        log.Fatal().Err(err).Msg("database unavailable")
    }
    defer conn.Close()

    if err := db.Migrate(ctx, conn); err != nil {
        log.Fatal().Err(err).Msg("migrate")
    }

    for _, name := range seedFiles {
        file := filepath.Join(dir, name)
        content, err := os.ReadFile(file)
        if err != nil {
            log.Fatal().Err(err).Str("file", file).Msg("read seed file")
        }

        if _, err := conn.ExecContext(ctx, string(content)); err != nil {
            log.Fatal().Err(err).Str("file", file).Msg("execute seed file")
        }
        log.Info().Str("file", file).Msg("seeded")
    }

    log.Info().Msg("database seeding completed")
}
