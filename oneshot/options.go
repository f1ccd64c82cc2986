// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package oneshot

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// registryOptions holds configuration options for Registry creation.
type registryOptions struct {
	clock       Clock
	environment Environment
	logger      *logiface.Logger[logiface.Event]
	warnLimiter *catrate.Limiter
	warnRatesOK bool
}

// Option configures a [Registry] instance.
type Option interface {
	applyRegistry(*registryOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyRegistryFunc func(*registryOptions) error
}

// defaultWarningRates limits each category of repeated warning.
var defaultWarningRates = map[time.Duration]int{
	time.Second: 4,
	time.Minute: 30,
}

func (x *optionImpl) applyRegistry(opts *registryOptions) error {
	return x.applyRegistryFunc(opts)
}

// WithClock configures the source of (unadjusted) time. Defaults to
// [SystemClock]. A nil clock restores the default.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *registryOptions) error {
		opts.clock = clock
		return nil
	}}
}

// WithEnvironment configures the "may continue" signal, consulted before each
// callback invocation, within a firing pass. Defaults to always continuing.
func WithEnvironment(environment Environment) Option {
	return &optionImpl{func(opts *registryOptions) error {
		opts.environment = environment
		return nil
	}}
}

// WithLogger configures structured logging. A nil logger disables logging,
// which is the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *registryOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWarningRates configures the rate limits applied to repeated warnings,
// e.g. redundant suspend or resume calls, per category. An empty map disables
// rate limiting. See [catrate.NewLimiter] for the semantics of rates.
func WithWarningRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *registryOptions) (err error) {
		opts.warnRatesOK = true
		if len(rates) == 0 {
			opts.warnLimiter = nil
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrInvalidOption, r)
			}
		}()
		opts.warnLimiter = catrate.NewLimiter(rates)
		return nil
	}}
}

// resolveRegistryOptions applies Option instances to registryOptions.
func resolveRegistryOptions(opts []Option) (*registryOptions, error) {
	cfg := &registryOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRegistry(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = SystemClock{}
	}
	if cfg.environment == nil {
		cfg.environment = alwaysContinue{}
	}
	if !cfg.warnRatesOK {
		cfg.warnLimiter = catrate.NewLimiter(defaultWarningRates)
	}
	return cfg, nil
}
