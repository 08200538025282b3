// Command scribe records lectures through Riva and turns the transcript into study notes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/scribe/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one CLI invocation; SIGINT and SIGTERM cancel its context.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.Execute(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}
