package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/bronystylecrazy/tokenbus/bus"
	"github.com/bronystylecrazy/tokenbus/revocation"
	"github.com/bronystylecrazy/tokenbus/security/token"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Responder answers validation requests in the issuing service. Every
// decodable request gets exactly one response carrying its id, whatever the
// verdict.
type Responder struct {
	transport bus.Transport
	store     revocation.Store
	verifier  *token.Verifier
	codec     Codec
	cfg       Config
	log       *zap.Logger
	tel       *telemetry
	opts      []bus.WorkerOption
	worker    *bus.Worker
}

func NewResponder(transport bus.Transport, store revocation.Store, verifier *token.Verifier, codec Codec, cfg Config, log *zap.Logger, opts ...bus.WorkerOption) *Responder {
	return &Responder{
		transport: transport,
		store:     store,
		verifier:  verifier,
		codec:     codec,
		cfg:       cfg,
		log:       log.Named("validation.responder"),
		tel:       newTelemetry(nil, nil),
		opts:      opts,
	}
}

// Start provisions both topics, joins the responder group and launches the
// consume loop. Provisioning failures abort startup.
func (r *Responder) Start(ctx context.Context) error {
	if err := bus.EnsureTopics(ctx, r.transport, r.log, r.cfg.RequestTopic, r.cfg.ResponseTopic); err != nil {
		return err
	}
	group := r.cfg.responderGroup()
	sub, err := r.transport.Subscribe(ctx, r.cfg.RequestTopic, group)
	if err != nil {
		return fmt.Errorf("validation: subscribe %s: %w", r.cfg.RequestTopic, err)
	}
	r.worker = bus.NewWorker("validation-responder", sub, r.handle, r.log, r.opts...)
	r.log.Info("answering requests", zap.String("topic", r.cfg.RequestTopic), zap.String("group", group))
	return r.worker.Start(ctx)
}

func (r *Responder) Stop(ctx context.Context) error {
	if r.worker == nil {
		return nil
	}
	return r.worker.Stop(ctx)
}

// handle returns a poison error for requests it can never answer and a
// plain error for transient failures, which the worker retries.
func (r *Responder) handle(ctx context.Context, msg bus.Message) error {
	var req Request
	if err := r.codec.Unmarshal(msg.Payload, &req); err != nil {
		return bus.Poison(fmt.Errorf("decode request: %w", err))
	}
	if req.RequestID == "" {
		return bus.Poison(errors.New("request without id"))
	}

	ctx, span := r.tel.tracer.Start(ctx, "validation.Respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("tokenbus.request_id", req.RequestID),
		attribute.String("tokenbus.requesting_service", req.RequestingService),
	)

	resp, err := r.Answer(ctx, req)
	if err != nil {
		span.RecordError(err)
		return err
	}
	payload, err := r.codec.Marshal(resp)
	if err != nil {
		return bus.Poison(fmt.Errorf("encode response: %w", err))
	}
	if err := r.transport.Publish(ctx, r.cfg.ResponseTopic, req.RequestID, payload); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish response %s: %w", req.RequestID, err)
	}

	span.SetAttributes(statusKey.String(resp.Message.StatusMessage))
	r.tel.handled.Add(ctx, 1, metric.WithAttributes(statusKey.String(resp.Message.StatusMessage)))
	r.log.Debug("answered",
		zap.String("request_id", req.RequestID),
		zap.String("requesting_service", req.RequestingService),
		zap.Bool("valid", resp.Message.IsValid),
		zap.String("status", resp.Message.StatusMessage),
	)
	return nil
}

// Answer decides the verdict for req. Claims are reported even for a revoked
// credential so the caller can log whose credential it was; only a store
// failure is an error.
func (r *Responder) Answer(ctx context.Context, req Request) (Response, error) {
	resp := Response{RequestID: req.RequestID, Message: ResponseMessage{Credential: req.Credential}}

	claims, verifyErr := r.verifier.Verify(req.Credential)
	if verifyErr != nil {
		// Unverified claims are for correlation only; IsValid stays false.
		claims, _ = token.Inspect(req.Credential)
	}
	resp.Message.SubjectID = claims.Subject
	resp.Message.Role = claims.Role

	if errors.Is(verifyErr, token.ErrMalformed) {
		resp.Message.StatusMessage = StatusMalformed
		return resp, nil
	}
	revoked, err := r.store.IsRevoked(ctx, req.Credential)
	if err != nil {
		return Response{}, fmt.Errorf("revocation lookup: %w", err)
	}
	switch {
	case revoked:
		resp.Message.StatusMessage = StatusRevoked
	case verifyErr != nil:
		resp.Message.StatusMessage = statusOf(verifyErr)
	default:
		resp.Message.IsValid = true
		resp.Message.StatusMessage = StatusValid
	}
	return resp, nil
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return StatusMalformed
	case errors.Is(err, token.ErrExpired):
		return StatusExpired
	case errors.Is(err, token.ErrSignatureInvalid):
		return StatusSignatureInvalid
	default:
		return StatusInvalid
	}
}
