package interval

import (
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultThrottleDuration is the minimum duration installed by
// [Timers.SlowDown], unless configured by [WithThrottleDuration].
const DefaultThrottleDuration = time.Second

type timersOptions struct {
	logger           *logiface.Logger[logiface.Event]
	interaction      Interaction
	throttleDuration time.Duration
}

// Option configures a [Timers] instance.
type Option interface {
	applyTimers(*timersOptions) error
}

type optionImpl struct {
	applyTimersFunc func(*timersOptions) error
}

func (x *optionImpl) applyTimers(opts *timersOptions) error {
	return x.applyTimersFunc(opts)
}

// WithLogger configures structured logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *timersOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithInteraction configures the user interaction state, captured when a
// timer is set, and restored for the duration of its callback.
func WithInteraction(interaction Interaction) Option {
	return &optionImpl{func(opts *timersOptions) error {
		opts.interaction = interaction
		return nil
	}}
}

// WithThrottleDuration configures the minimum duration installed by
// [Timers.SlowDown]. Non-positive values restore [DefaultThrottleDuration].
func WithThrottleDuration(d time.Duration) Option {
	return &optionImpl{func(opts *timersOptions) error {
		opts.throttleDuration = d
		return nil
	}}
}

func resolveTimersOptions(opts []Option) (*timersOptions, error) {
	cfg := &timersOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTimers(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.throttleDuration <= 0 {
		cfg.throttleDuration = DefaultThrottleDuration
	}
	return cfg, nil
}
