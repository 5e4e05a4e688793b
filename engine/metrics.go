package engine

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prism-board/domain"
)

const (
	moveSpanName    = "board.move"
	moveMetricsName = "board.move.metrics"
)

// Move outcomes recorded on the board.move span and metrics record.
const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeNoop       = "noop"
	outcomeRejected   = "rejected"
	outcomeClosed     = "closed"
)

type moveMetrics struct {
	logger          *log.Logger
	span            trace.Span
	start           time.Time
	projectID       string
	intent          domain.MoveIntent
	persistDuration time.Duration
	attempts        int
	winner          string
	outcome         string
	errorStage      string
}

func newMoveMetrics(ctx context.Context, logger *log.Logger, projectID string, intent domain.MoveIntent) (*moveMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, moveSpanName, trace.WithAttributes(
		attribute.String("prism.board.project_id", projectID),
		attribute.String("prism.board.task_id", intent.TaskID),
		attribute.String("prism.board.source_column", string(intent.SourceColumn)),
		attribute.String("prism.board.dest_column", string(intent.DestColumn)),
		attribute.Int("prism.board.dest_index", intent.DestIndex),
	))
	return &moveMetrics{
		logger:    logger,
		span:      span,
		start:     time.Now(),
		projectID: projectID,
		intent:    intent,
	}, ctx
}

func (m *moveMetrics) ObservePersist(duration time.Duration, attempts int) {
	if duration > 0 {
		m.persistDuration = duration
	}
	if attempts > 0 {
		m.attempts = attempts
	}
}

func (m *moveMetrics) SetWinner(c Combination) {
	m.winner = c.String()
}

func (m *moveMetrics) SetOutcome(outcome string) {
	m.outcome = outcome
}

func (m *moveMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

// Log ends the span and writes one structured record for the move.
func (m *moveMetrics) Log(err error) {
	if m == nil {
		return
	}

	total := durationToMillis(time.Since(m.start))
	m.span.SetAttributes(
		attribute.String("prism.board.outcome", m.outcome),
		attribute.Int("prism.board.attempts", m.attempts),
		attribute.Float64("prism.board.total_ms", total),
	)
	if m.errorStage != "" {
		m.span.SetAttributes(attribute.String("prism.board.error_stage", m.errorStage))
	}
	if err != nil {
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	spanCtx := m.span.SpanContext()
	m.span.End()

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"project_id":    m.projectID,
		"task_id":       m.intent.TaskID,
		"source_column": string(m.intent.SourceColumn),
		"dest_column":   string(m.intent.DestColumn),
		"dest_index":    m.intent.DestIndex,
		"outcome":       m.outcome,
		"attempts":      m.attempts,
		"total_ms":      total,
	}
	if m.persistDuration > 0 {
		fields["persist_ms"] = durationToMillis(m.persistDuration)
	}
	if m.winner != "" {
		fields["winner"] = m.winner
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if spanCtx.HasTraceID() {
		fields["trace_id"] = spanCtx.TraceID().String()
	}
	entry := m.logger.WithFields(fields)
	if err != nil {
		entry.WithError(err).Warn(moveMetricsName)
		return
	}
	entry.Info(moveMetricsName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
