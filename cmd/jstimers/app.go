package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/go-jstimers/gojatimers"
	"github.com/joeycumines/go-jstimers/interval"
	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/go-jstimers/scope"
	"github.com/joeycumines/go-jstimers/wakeup"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var errUncaught = errors.New("jstimers: uncaught exceptions in timer handlers")

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "jstimers"
	app.Usage = "run scripts with setTimeout and setInterval"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Commands = []*cli.Command{
		{
			Name:      "run",
			Usage:     "run a script until no timers remain",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				&cli.DurationFlag{
					Name:  "min-duration",
					Usage: "minimum duration of every timer",
				},
				&cli.BoolFlag{
					Name:  "slow",
					Usage: "throttle timers, as if the script were in the background",
				},
				&cli.DurationFlag{
					Name:  "throttle",
					Usage: "minimum duration of every timer, if slow",
					Value: interval.DefaultThrottleDuration,
				},
				&cli.DurationFlag{
					Name:  "timeout",
					Usage: "interrupt the script after this duration, if positive",
				},
				&cli.StringFlag{
					Name:  "log-level",
					Usage: "one of disabled, emerg, alert, crit, err, warning, notice, info, debug, trace",
					Value: logiface.LevelWarning.String(),
				},
			},
			Action: runScript,
		},
	}
	return app
}

func runScript(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("jstimers: expected exactly one script file, got %d arguments", c.NArg())
	}
	filename := c.Args().First()

	src, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("jstimers: %w", err)
	}

	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(c.App.ErrWriter)),
		stumpy.L.WithLevel(level),
	).Logger()

	ctx := c.Context
	if timeout := c.Duration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	wakeCtx, stopWake := context.WithCancel(context.Background())
	wake, err := wakeup.New(wakeup.WithLogger(logger))
	if err != nil {
		stopWake()
		return err
	}
	var group errgroup.Group
	group.Go(func() error { return wake.Run(wakeCtx) })
	defer func() {
		stopWake()
		_ = group.Wait()
	}()

	var binding *gojatimers.Binding
	s, err := scope.New(
		wake,
		scope.WithLogger(logger),
		scope.WithEnvironment(oneshot.EnvironmentFunc(func() bool {
			return binding == nil || binding.CanContinue()
		})),
		scope.WithTimersOptions(interval.WithThrottleDuration(c.Duration("throttle"))),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	var uncaught int
	timerOpts := []gojatimers.Option{
		gojatimers.WithLogger(logger),
		gojatimers.WithErrorHandler(func(err error) {
			uncaught++
			_, _ = fmt.Fprintln(c.App.ErrWriter, err)
		}),
	}

	rt := goja.New()
	registry := require.NewRegistry()
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(&printer{
		stdout: c.App.Writer,
		stderr: c.App.ErrWriter,
	}))
	registry.RegisterNativeModule(gojatimers.ModuleName, gojatimers.Require(s.Timers(), timerOpts...))
	registry.Enable(rt)
	console.Enable(rt)

	if binding, err = gojatimers.Bind(rt, s.Timers(), timerOpts...); err != nil {
		return err
	}

	stopInterrupt := context.AfterFunc(ctx, func() { binding.Interrupt(context.Cause(ctx)) })
	defer stopInterrupt()

	var scriptErr error
	if err := s.Submit(func() {
		timers := s.Timers()
		if d := c.Duration("min-duration"); d > 0 {
			timers.SetMinDuration(d)
		}
		if c.Bool("slow") {
			timers.SlowDown()
		}
		if _, err := rt.RunScript(filename, string(src)); err != nil {
			scriptErr = err
			_ = s.Close()
		}
	}); err != nil {
		return err
	}

	err = s.RunUntilIdle(ctx)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("jstimers: timed out after %s: %w", c.Duration("timeout"), ctx.Err())
	case err != nil:
		return fmt.Errorf("jstimers: %w", err)
	case scriptErr != nil:
		return fmt.Errorf("jstimers: %w", scriptErr)
	case uncaught != 0:
		return fmt.Errorf("%w: %d", errUncaught, uncaught)
	}

	return nil
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if strings.EqualFold(s, level.String()) {
			return level, nil
		}
	}
	return logiface.LevelDisabled, fmt.Errorf("jstimers: invalid log level: %q", s)
}

// printer writes console output, log to stdout, and warn or error to stderr.
type printer struct {
	stdout io.Writer
	stderr io.Writer
}

var _ console.Printer = (*printer)(nil)

func (x *printer) Log(s string) { _, _ = fmt.Fprintln(x.stdout, s) }

func (x *printer) Warn(s string) { _, _ = fmt.Fprintln(x.stderr, s) }

func (x *printer) Error(s string) { _, _ = fmt.Fprintln(x.stderr, s) }
