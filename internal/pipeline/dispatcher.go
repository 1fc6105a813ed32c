// Package pipeline is the dispatch loop between the bus and the sinks.
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"wisegate/internal/broker"
	"wisegate/internal/constants"
	"wisegate/internal/logger"
	"wisegate/internal/normalize"
	apperrors "wisegate/pkg/errors"
	"wisegate/pkg/logging"
	"wisegate/pkg/metrics"
	"wisegate/pkg/tracing"
)

// Sink persists one record. Implementations run one transaction per call.
type Sink interface {
	Insert(ctx context.Context, table string, rec normalize.Record) error
}

// Notifier delivers a payload to real-time subscribers, best effort.
type Notifier interface {
	Publish(ctx context.Context, channel string, payload any) error
}

const (
	OutcomeStored          = "stored"
	OutcomeCached          = "cached"
	OutcomeIgnored         = "ignored"
	OutcomeUnmatched       = "unmatched"
	OutcomeDecodeError     = "decode_error"
	OutcomeExtractionError = "extraction_error"
	OutcomeStorageError    = "storage_error"
	OutcomePanic           = "panic"
)

// Outcome describes what Process did with one message.
type Outcome struct {
	Family      string
	Shape       normalize.Shape
	Table       string
	Record      normalize.Record
	Status      string
	Broadcasted bool
}

// RawRecorder keeps decoded bus payloads for the recent-data endpoints.
type RawRecorder interface {
	Add(source string, data any)
}

type Config struct {
	RecordChannel string
	LogChannel    string
}

type Dispatcher struct {
	router     *normalize.Router
	normalizer *normalize.Normalizer
	sink       Sink
	notifier   Notifier
	cfg        Config
	logger     logger.Logger
	raw        RawRecorder
	now        func() time.Time
}

func NewDispatcher(router *normalize.Router, normalizer *normalize.Normalizer, sink Sink, notifier Notifier, cfg Config, log logger.Logger) *Dispatcher {
	if cfg.RecordChannel == "" {
		cfg.RecordChannel = constants.DefaultRecordChannel
	}
	if cfg.LogChannel == "" {
		cfg.LogChannel = constants.DefaultLogChannel
	}
	return &Dispatcher{
		router:     router,
		normalizer: normalizer,
		sink:       sink,
		notifier:   notifier,
		cfg:        cfg,
		logger:     log,
		now:        time.Now,
	}
}

// Handle is the bus callback. Every failure, panics included, ends here.
func (d *Dispatcher) Handle(ctx context.Context, msg broker.Message) {
	_, _ = d.Process(ctx, msg)
}

// Process runs one message through the pipeline. The returned error is
// already logged; it is exposed for callers that need the outcome.
// SetRawRecorder records every payload on a family topic whose shape is
// recognized and whose fields extract cleanly, keyed by topic.
func (d *Dispatcher) SetRawRecorder(r RawRecorder) {
	d.raw = r
}

func (d *Dispatcher) Process(ctx context.Context, msg broker.Message) (out Outcome, err error) {
	ctx, span := tracing.StartSpanFromHeaders(ctx, "pipeline.dispatch", msg.Headers)
	defer span.End()
	span.SetAttributes(attribute.String("messaging.destination", msg.Topic))

	ctx = logging.WithTopic(ctx, msg.Topic)
	if msg.ID != "" {
		ctx = logging.WithMessageID(ctx, msg.ID)
	}
	if traceID := tracing.TraceID(ctx); traceID != "" {
		ctx = logging.WithTraceID(ctx, traceID)
	}

	start := d.now()
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
			out.Status = OutcomePanic
			d.logFailure(ctx, "Panic while processing message", msg, err)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.IncIngestMessage(familyLabel(out.Family), out.Shape.String(), out.Status)
		metrics.ObserveIngestDuration(familyLabel(out.Family), d.now().Sub(start))
	}()

	dt, ok := d.router.Resolve(msg.Topic)
	if !ok {
		out.Status = OutcomeUnmatched
		d.logger.InfowCtx(ctx, "No device family for topic, message dropped")
		return out, nil
	}
	out.Family = dt.Profile.Name

	event, err := normalize.Decode(msg.Payload)
	if err != nil {
		out.Status = OutcomeDecodeError
		d.logFailure(ctx, "Failed to decode message", msg, err)
		return out, err
	}

	now := msg.ReceivedAt
	if now.IsZero() {
		now = d.now()
	}

	res, err := d.normalizer.Normalize(dt, event, now)
	out.Shape = res.Shape
	metrics.SetPartialCacheDevices(d.normalizer.CachedDevices())
	if err != nil {
		out.Status = OutcomeExtractionError
		d.logFailure(ctx, "Failed to extract fields", msg, err)
		return out, err
	}
	if d.raw != nil && res.Shape != normalize.Unrecognized {
		d.raw.Add(msg.Topic, map[string]any(event))
	}

	if res.Record == nil {
		out.Status = noRecordStatus(res.Shape)
		if res.Shape == normalize.Unrecognized {
			d.logger.InfowCtx(ctx, "Unrecognized payload shape, message ignored",
				"family", dt.Profile.Name,
			)
		} else {
			d.logger.DebugwCtx(ctx, "Message produced no record",
				"family", dt.Profile.Name,
				"shape", res.Shape.String(),
			)
		}
		return out, nil
	}
	out.Record = res.Record
	out.Table = res.Table
	span.SetAttributes(attribute.String("db.sql.table", res.Table))

	if err := d.sink.Insert(ctx, res.Table, res.Record); err != nil {
		out.Status = OutcomeStorageError
		d.logFailure(ctx, "Failed to store record", msg, err)
		return out, err
	}
	out.Status = OutcomeStored

	out.Broadcasted = d.broadcast(ctx, res.Record)
	return out, nil
}

func (d *Dispatcher) broadcast(ctx context.Context, rec normalize.Record) bool {
	if d.notifier == nil {
		return false
	}
	channel := d.cfg.RecordChannel
	if rec.Kind() == normalize.KindConnectionLog {
		channel = d.cfg.LogChannel
	}
	if err := d.notifier.Publish(ctx, channel, rec); err != nil {
		d.logger.DebugwCtx(ctx, "Broadcast failed",
			"channel", channel,
			"error", err,
		)
		return false
	}
	return true
}

func (d *Dispatcher) logFailure(ctx context.Context, msg string, m broker.Message, err error) {
	d.logger.ErrorwCtx(ctx, msg,
		"error", err,
		"error_code", apperrors.CodeOf(err),
		"payload", truncate(m.Payload, constants.MaxLoggedPayload),
	)
}

func noRecordStatus(s normalize.Shape) string {
	switch s {
	case normalize.SplitIOPartial, normalize.SignalInfo:
		return OutcomeCached
	default:
		return OutcomeIgnored
	}
}

func familyLabel(family string) string {
	if family == "" {
		return "none"
	}
	return family
}

func truncate(payload []byte, max int) string {
	if len(payload) <= max {
		return string(payload)
	}
	return string(payload[:max]) + "..."
}
