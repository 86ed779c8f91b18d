package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	spottyerrors "github.com/nauticalab/spotty/internal/errors"
	"github.com/nauticalab/spotty/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()

	if err != nil {
		code := spottyerrors.GetExitCode(err)
		logging.Debug("command failed", "command", cmd.CommandPath(), "kind", spottyerrors.KindOf(err), "exit", code)
		logging.UserError("%s: %v", cmd.CommandPath(), err)
		os.Exit(code)
	}
}
