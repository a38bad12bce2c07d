package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/bronystylecrazy/tokenbus/bus"
	"go.uber.org/zap"
)

// Listener is the one background consumer of the response topic in a
// calling service. It resolves pending slots and drops everything else.
type Listener struct {
	subscriber bus.Subscriber
	registry   *Registry
	codec      Codec
	cfg        Config
	log        *zap.Logger
	opts       []bus.WorkerOption
	worker     *bus.Worker
	group      string
}

func NewListener(subscriber bus.Subscriber, registry *Registry, codec Codec, cfg Config, log *zap.Logger, opts ...bus.WorkerOption) *Listener {
	return &Listener{
		subscriber: subscriber,
		registry:   registry,
		codec:      codec,
		cfg:        cfg,
		log:        log.Named("validation.listener"),
		opts:       opts,
	}
}

func (l *Listener) Start(ctx context.Context) error {
	group := l.cfg.listenerGroup()
	l.group = group
	sub, err := l.subscriber.Subscribe(ctx, l.cfg.ResponseTopic, group)
	if err != nil {
		return fmt.Errorf("validation: subscribe %s: %w", l.cfg.ResponseTopic, err)
	}
	l.worker = bus.NewWorker("validation-listener", sub, l.handle, l.log, l.opts...)
	l.log.Info("listening for responses", zap.String("topic", l.cfg.ResponseTopic), zap.String("group", group))
	return l.worker.Start(ctx)
}

// Stop ends the consumer. A per-instance group is removed as well, since no
// later process will ever read from it.
func (l *Listener) Stop(ctx context.Context) error {
	if l.worker == nil {
		return nil
	}
	err := l.worker.Stop(ctx)
	remover, ok := l.subscriber.(bus.GroupRemover)
	if !ok || l.cfg.Group != "" {
		return err
	}
	if rmErr := remover.RemoveGroup(ctx, l.cfg.ResponseTopic, l.group); rmErr != nil {
		l.log.Warn("removing listener group failed", zap.String("group", l.group), zap.Error(rmErr))
		err = errors.Join(err, rmErr)
	}
	return err
}

func (l *Listener) handle(_ context.Context, msg bus.Message) error {
	var resp Response
	if err := l.codec.Unmarshal(msg.Payload, &resp); err != nil {
		return bus.Poison(fmt.Errorf("decode response: %w", err))
	}
	if resp.RequestID == "" {
		resp.RequestID = msg.Key
	}
	if !l.registry.Resolve(resp.RequestID, resp.Outcome()) {
		// Duplicate delivery, a response after the deadline, or one meant for
		// another instance.
		l.log.Debug("orphan response", zap.String("request_id", resp.RequestID))
	}
	return nil
}
