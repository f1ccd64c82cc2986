package wakeup

import (
	"github.com/joeycumines/logiface"
)

type serviceOptions struct {
	logger   *logiface.Logger[logiface.Event]
	blocking bool
}

// Option configures a [Service] instance.
type Option interface {
	applyService(*serviceOptions) error
}

type optionImpl struct {
	applyServiceFunc func(*serviceOptions) error
}

func (x *optionImpl) applyService(opts *serviceOptions) error {
	return x.applyServiceFunc(opts)
}

// WithLogger configures structured logging. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *serviceOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithBlockingDelivery configures delivery to wait for space in full reply
// channels (until the service stops), rather than dropping the event.
func WithBlockingDelivery(enabled bool) Option {
	return &optionImpl{func(opts *serviceOptions) error {
		opts.blocking = enabled
		return nil
	}}
}

func resolveServiceOptions(opts []Option) (*serviceOptions, error) {
	cfg := &serviceOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyService(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
