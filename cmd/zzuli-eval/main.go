package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"time"
	"zzuli-evaluation/cmd/zzuli-eval/commands"
	"zzuli-evaluation/lib/telemetry"
	"zzuli-evaluation/lib/util/serviceutil"

	"github.com/joho/godotenv"
)

func main() {
	// a .env file next to the binary may carry ZZULI_USERNAME / ZZULI_PASSWORD.
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	ctx := serviceutil.SignalContext()
	tel, err := telemetry.SetupFromEnv(context.Background(), "zzuli-eval")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}

	code := commands.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = tel.Shutdown(shutdownCtx)
	serviceutil.Exit(code)
}
