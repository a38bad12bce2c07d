package validation

import (
	"context"
	"time"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Requester validates credentials for the service that embeds it. Outcomes
// from concurrent calls never mix: each call owns a fresh request id.
type Requester struct {
	publisher bus.Publisher
	registry  *Registry
	codec     Codec
	cfg       Config
	log       *zap.Logger
	tel       *telemetry
	newID     func() string
}

func NewRequester(publisher bus.Publisher, registry *Registry, codec Codec, cfg Config, log *zap.Logger) *Requester {
	return &Requester{
		publisher: publisher,
		registry:  registry,
		codec:     codec,
		cfg:       cfg,
		log:       log.Named("validation.requester"),
		tel:       newTelemetry(nil, nil),
		newID:     uuid.NewString,
	}
}

// Validate asks the issuing service about credential and waits up to the
// configured timeout. It fails closed: a publish error, a timeout or a
// canceled ctx all yield an invalid Outcome.
func (r *Requester) Validate(ctx context.Context, credential string) Outcome {
	started := time.Now()
	ctx, span := r.tel.tracer.Start(ctx, "validation.Validate")
	defer span.End()

	o := r.validate(ctx, credential)

	span.SetAttributes(attribute.Bool("tokenbus.valid", o.Valid), statusKey.String(o.Status))
	if !o.Valid {
		span.SetStatus(codes.Error, o.Status)
	}
	r.tel.recordValidate(ctx, started, o)
	return o
}

func (r *Requester) validate(ctx context.Context, credential string) Outcome {
	id := r.newID()
	slot, err := r.registry.Register(id)
	if err != nil {
		r.log.Error("register pending request", zap.String("request_id", id), zap.Error(err))
		return failed(StatusUnavailable)
	}
	r.tel.pending.Add(ctx, 1)
	defer r.tel.pending.Add(context.WithoutCancel(ctx), -1)

	payload, err := r.codec.Marshal(Request{
		RequestID:         id,
		Credential:        credential,
		RequestingService: r.cfg.Service,
	})
	if err == nil {
		err = r.publisher.Publish(ctx, r.cfg.RequestTopic, id, payload)
	}
	if err != nil {
		r.registry.finish(id, failed(StatusUnavailable))
		r.log.Warn("validation request not sent", zap.String("request_id", id), zap.Error(err))
		return <-slot
	}

	timer := time.NewTimer(r.cfg.timeout())
	defer timer.Stop()
	select {
	case o := <-slot:
		return o
	case <-timer.C:
		if r.registry.Expire(id) {
			r.log.Warn("validation timed out", zap.String("request_id", id), zap.Duration("timeout", r.cfg.timeout()))
		}
	case <-ctx.Done():
		r.registry.finish(id, failed(StatusCanceled))
	}
	// Whichever finish won has filled the slot.
	return <-slot
}
