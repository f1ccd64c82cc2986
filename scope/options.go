package scope

import (
	"github.com/joeycumines/go-jstimers/interval"
	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
)

// DefaultWakeBufferSize is the default capacity of the channel, on which
// wake-up notifications are received.
const DefaultWakeBufferSize = 16

type scopeOptions struct {
	logger         *logiface.Logger[logiface.Event]
	environment    oneshot.Environment
	registryOpts   []oneshot.Option
	timersOpts     []interval.Option
	wakeBufferSize int
}

// Option configures a [Scope] instance.
type Option interface {
	applyScope(*scopeOptions) error
}

type optionImpl struct {
	applyScopeFunc func(*scopeOptions) error
}

func (x *optionImpl) applyScope(opts *scopeOptions) error {
	return x.applyScopeFunc(opts)
}

// WithLogger configures structured logging, for the scope, and the
// registry and timers it owns. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *scopeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithEnvironment configures an additional "may continue" signal, which
// [Scope.CanContinue] consults once the scope itself may continue, e.g. to
// stop firing timers after a script engine is interrupted.
func WithEnvironment(environment oneshot.Environment) Option {
	return &optionImpl{func(opts *scopeOptions) error {
		opts.environment = environment
		return nil
	}}
}

// WithRegistryOptions passes options through to [oneshot.New], applied
// after those set by the scope. Note that the environment is always the
// scope itself.
func WithRegistryOptions(opts ...oneshot.Option) Option {
	return &optionImpl{func(o *scopeOptions) error {
		o.registryOpts = append(o.registryOpts, opts...)
		return nil
	}}
}

// WithTimersOptions passes options through to [interval.New], applied
// after those set by the scope.
func WithTimersOptions(opts ...interval.Option) Option {
	return &optionImpl{func(o *scopeOptions) error {
		o.timersOpts = append(o.timersOpts, opts...)
		return nil
	}}
}

// WithWakeBufferSize configures the capacity of the wake-up reply channel,
// defaulting to [DefaultWakeBufferSize]. The channel is drained by a
// dedicated goroutine, so the capacity only needs to absorb bursts.
func WithWakeBufferSize(size int) Option {
	return &optionImpl{func(opts *scopeOptions) error {
		if size < 0 {
			return ErrInvalidBufferSize
		}
		opts.wakeBufferSize = size
		return nil
	}}
}

func resolveScopeOptions(opts []Option) (*scopeOptions, error) {
	cfg := &scopeOptions{
		wakeBufferSize: DefaultWakeBufferSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyScope(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
