// Command jstimers runs a script, with setTimeout and setInterval, until no
// timers remain.
//
//	jstimers run [--min-duration D] [--slow] [--timeout D] [--log-level L] FILE
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
