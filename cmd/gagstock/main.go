package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/gagstock/cmd/gagstock/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	commands.ExecuteContext(ctx)
}
