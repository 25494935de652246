package processing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rentfleet/aigw/server/completion"
	"github.com/rentfleet/aigw/server/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/rentfleet/aigw/server/processing"

// Stage is a state of the per-request pipeline. Requests move forward
// through the states in declaration order and end in StageSucceeded or
// StageFailed; there is no edge back.
type Stage string

const (
	StageReceived    Stage = "received"
	StageBuilding    Stage = "building"
	StageCompleting  Stage = "completing"
	StageNormalizing Stage = "normalizing"
	StageValidating  Stage = "validating"
	StageSucceeded   Stage = "succeeded"
	StageFailed      Stage = "failed"
)

// StageError reports the stage a pipeline failed in. Raw holds the
// completion text when the failure happened after the completion arrived.
type StageError struct {
	Task  Task
	Stage Stage
	Raw   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Task, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Outcome classifies a pipeline result for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, completion.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, completion.ErrRejected):
		return "rejected"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrWrongShape):
		return "wrong_shape"
	default:
		return "invalid_input"
	}
}

// Processor runs the Building → Completing → Normalizing → Validating
// pipeline for each task. It holds no per-request state and is safe for
// concurrent use.
//
// Every run is traced as one span per task with a child span per stage, and
// counted in aigw_pipeline_outcomes_total when metrics are configured.
type Processor struct {
	builder  *Builder
	client   completion.Client
	logger   *zap.Logger
	tracer   trace.Tracer
	metrics  *metrics.Metrics
	duration otelmetric.Float64Histogram
}

// Option configures a Processor.
type Option func(*Processor)

// WithTracerProvider sets the provider used for pipeline spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Processor) {
		p.tracer = tp.Tracer(instrumentationName)
	}
}

// WithMetrics records outcomes and durations in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// NewProcessor creates a Processor sending prompts from builder to client.
func NewProcessor(builder *Builder, client completion.Client, logger *zap.Logger, opts ...Option) *Processor {
	p := &Processor{
		builder: builder,
		client:  client,
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.metrics != nil {
		hist, err := p.metrics.Meter().Float64Histogram(
			"aigw.pipeline.duration",
			otelmetric.WithDescription("Completion pipeline duration by task and outcome"),
			otelmetric.WithUnit("s"),
		)
		if err != nil {
			logger.Warn("Pipeline duration histogram unavailable", zap.Error(err))
		} else {
			p.duration = hist
		}
	}
	return p
}

// RecognizeDocuments extracts identity-document fields from images.
func (p *Processor) RecognizeDocuments(ctx context.Context, country Country, images []completion.Attachment) (DocumentFields, error) {
	return run(ctx, p, TaskDocuments,
		func() (Prompt, error) { return p.builder.Documents(country, images) },
		ValidateDocument,
	)
}

// ParseDeal extracts the bike and batteries from a deal description.
func (p *Processor) ParseDeal(ctx context.Context, description string) (*DealComponents, error) {
	return run(ctx, p, TaskDeal,
		func() (Prompt, error) { return p.builder.Deal(description) },
		ValidateDeal,
	)
}

// GenerateBuyoutPlans proposes installment plans for a deal.
func (p *Processor) GenerateBuyoutPlans(ctx context.Context, deal, plan string) (PlanSet, error) {
	return run(ctx, p, TaskPlans,
		func() (Prompt, error) { return p.builder.BuyoutPlans(deal, plan) },
		ValidatePlans,
	)
}

func run[T any](ctx context.Context, p *Processor, task Task, build func() (Prompt, error), validate func(string) (T, error)) (out T, err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline."+string(task),
		trace.WithAttributes(attribute.String("aigw.task", string(task))),
	)

	var (
		stage = StageReceived
		raw   string
	)
	defer func() {
		final := StageSucceeded
		if err != nil {
			final = StageFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			err = &StageError{Task: task, Stage: stage, Raw: raw, Err: err}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.String("aigw.outcome", Outcome(err)))
		span.End()
		p.record(ctx, task, err, time.Since(start))

		p.logger.Debug("Pipeline finished",
			zap.String("task", string(task)),
			zap.String("stage", string(final)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	var prompt Prompt
	stage = StageBuilding
	if err = p.stage(ctx, stage, func(context.Context) (e error) {
		prompt, e = build()
		return e
	}); err != nil {
		return out, err
	}

	stage = StageCompleting
	if err = p.stage(ctx, stage, func(ctx context.Context) (e error) {
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("aigw.attachments", len(prompt.Attachments)))
		raw, e = p.client.Complete(ctx, prompt.Text, prompt.Attachments)
		return e
	}); err != nil {
		return out, err
	}

	stage = StageNormalizing
	candidate := p.normalize(ctx, raw)

	stage = StageValidating
	err = p.stage(ctx, stage, func(context.Context) (e error) {
		out, e = validate(candidate)
		return e
	})
	return out, err
}

func (p *Processor) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, string(stage))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// normalize cannot fail, so it gets a span but no error path.
func (p *Processor) normalize(ctx context.Context, raw string) string {
	_, span := p.tracer.Start(ctx, string(StageNormalizing))
	defer span.End()
	return Normalize(raw)
}

func (p *Processor) record(ctx context.Context, task Task, err error, d time.Duration) {
	if p.metrics == nil {
		return
	}
	outcome := Outcome(err)
	p.metrics.PipelineOutcomes.WithLabelValues(string(task), outcome).Inc()
	if p.duration != nil {
		p.duration.Record(ctx, d.Seconds(), otelmetric.WithAttributes(
			attribute.String("task", string(task)),
			attribute.String("outcome", outcome),
		))
	}
}
