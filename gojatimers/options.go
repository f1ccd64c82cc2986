package gojatimers

import (
	"github.com/joeycumines/go-jstimers/oneshot"
	"github.com/joeycumines/logiface"
)

type bindingOptions struct {
	logger       *logiface.Logger[logiface.Event]
	errorHandler func(err error)
	source       oneshot.Source
}

// Option configures a [Binding] instance.
type Option interface {
	applyBinding(*bindingOptions) error
}

type optionImpl struct {
	applyBindingFunc func(*bindingOptions) error
}

func (x *optionImpl) applyBinding(opts *bindingOptions) error {
	return x.applyBindingFunc(opts)
}

// WithLogger configures structured logging, including of uncaught
// exceptions thrown by timer handlers. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *bindingOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithErrorHandler configures a function to receive errors returned by timer
// handlers, typically [*goja.Exception] or [*goja.InterruptedError].
func WithErrorHandler(handler func(err error)) Option {
	return &optionImpl{func(opts *bindingOptions) error {
		opts.errorHandler = handler
		return nil
	}}
}

// WithSource configures the task source of timers set via the binding,
// defaulting to [oneshot.SourceWindow].
func WithSource(source oneshot.Source) Option {
	return &optionImpl{func(opts *bindingOptions) error {
		opts.source = source
		return nil
	}}
}

func resolveBindingOptions(opts []Option) (*bindingOptions, error) {
	cfg := &bindingOptions{
		source: oneshot.SourceWindow,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBinding(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
