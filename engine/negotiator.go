package engine

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"prism-board/client"
	"prism-board/storage"
)

const tracerName = "prism-board/engine"

// Sender performs a single HTTP round trip. *client.Client implements it.
type Sender interface {
	Send(ctx context.Context, method, path string, body any, header http.Header) (*client.Response, error)
}

// Persister persists a committed local move. *Negotiator implements it.
type Persister interface {
	Persist(ctx context.Context, target MoveTarget) (Negotiation, error)
}

// Attempt is the outcome of one probe of the negotiation matrix.
type Attempt struct {
	Combination Combination
	// StatusCode is 0 when no response was received.
	StatusCode int
	Err        error
	Duration   time.Duration
	// Cached marks the replay of a remembered contract ahead of the matrix.
	Cached bool
	// Skipped marks a combination that was never sent because probing
	// stopped early; Err holds the reason.
	Skipped bool
}

// Succeeded reports whether the backend accepted the attempt.
func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.StatusCode >= 200 && a.StatusCode < 300
}

// sentCount is the number of attempts that reached the sender.
func sentCount(attempts []Attempt) int {
	n := 0
	for _, a := range attempts {
		if !a.Skipped {
			n++
		}
	}
	return n
}

// Negotiation is the record of a successful persistence.
type Negotiation struct {
	Winner   Combination
	Attempts []Attempt
}

// Negotiator persists moves against a backend whose update contract is not
// known in advance by probing the negotiation matrix one request at a time.
type Negotiator struct {
	sender         Sender
	cache          storage.ContractCache
	logger         *log.Logger
	attemptTimeout time.Duration
}

// NegotiatorOption configures a Negotiator.
type NegotiatorOption func(*Negotiator)

// WithContractCache lets the negotiator replay the last winning contract of
// a project before walking the matrix.
func WithContractCache(c storage.ContractCache) NegotiatorOption {
	return func(n *Negotiator) { n.cache = c }
}

// WithAttemptTimeout bounds each individual probe. Zero means no bound
// beyond the caller's context.
func WithAttemptTimeout(d time.Duration) NegotiatorOption {
	return func(n *Negotiator) { n.attemptTimeout = d }
}

// WithNegotiatorLogger sets the logger for per attempt debug records.
func WithNegotiatorLogger(l *log.Logger) NegotiatorOption {
	return func(n *Negotiator) { n.logger = l }
}

// NewNegotiator creates a Negotiator sending through s.
func NewNegotiator(s Sender, opts ...NegotiatorOption) *Negotiator {
	n := &Negotiator{sender: s}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = log.StandardLogger()
	}
	return n
}

// Persist walks the negotiation matrix for target strictly in order and stops
// at the first 2xx response. It never has more than one request in flight.
// Every other outcome, including transport errors, moves on to the next
// combination. Probing stops early only when ctx is done or the session has
// expired, since no further request could be sent; the combinations left
// are then recorded as skipped attempts. When nothing succeeds a
// *PersistError holding every attempt is returned.
func (n *Negotiator) Persist(ctx context.Context, target MoveTarget) (Negotiation, error) {
	var attempts []Attempt
	fail := func(cause error) (Negotiation, error) {
		return Negotiation{}, &PersistError{
			ProjectID: target.ProjectID,
			TaskID:    target.TaskID,
			Column:    target.Column,
			Attempts:  attempts,
			Cause:     cause,
		}
	}

	var cached Combination
	var haveCached bool
	if n.cache != nil {
		if contract, ok := n.cache.Load(ctx, target.ProjectID, target.Column); ok {
			cached, haveCached = combinationFromContract(contract, target)
		}
	}
	matrix := BuildMatrix(target)
	// stopAt records the combinations that will not be sent, so Attempts
	// always covers the whole matrix.
	stopAt := func(rest []Combination, cause error) (Negotiation, error) {
		for _, comb := range rest {
			if haveCached && comb == cached {
				continue
			}
			attempts = append(attempts, Attempt{Combination: comb, Err: cause, Skipped: true})
		}
		return fail(cause)
	}

	if haveCached {
		a := n.try(ctx, target, cached)
		a.Cached = true
		attempts = append(attempts, a)
		if a.Succeeded() {
			return Negotiation{Winner: cached, Attempts: attempts}, nil
		}
		n.cache.Evict(ctx, target.ProjectID, target.Column)
		if stop := abortCause(ctx, a.Err); stop != nil {
			return stopAt(matrix, stop)
		}
	}

	for i, comb := range matrix {
		if err := ctx.Err(); err != nil {
			return stopAt(matrix[i:], err)
		}
		if haveCached && comb == cached {
			continue
		}
		a := n.try(ctx, target, comb)
		attempts = append(attempts, a)
		if a.Succeeded() {
			if n.cache != nil {
				n.cache.Store(ctx, target.ProjectID, target.Column, comb.Contract())
			}
			return Negotiation{Winner: comb, Attempts: attempts}, nil
		}
		if stop := abortCause(ctx, a.Err); stop != nil {
			return stopAt(matrix[i+1:], stop)
		}
	}
	return fail(nil)
}

func abortCause(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, client.ErrSessionExpired) {
		return err
	}
	return nil
}

func (n *Negotiator) try(ctx context.Context, target MoveTarget, comb Combination) Attempt {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "board.persist.attempt", trace.WithAttributes(
		attribute.String("http.method", comb.Endpoint.Method),
		attribute.String("prism.board.endpoint", comb.Endpoint.Key),
		attribute.String("prism.board.status_field", comb.Payload.StatusField),
		attribute.String("prism.board.status_value", comb.Payload.Status),
		attribute.String("prism.board.position_field", comb.Payload.PositionField),
	))
	defer span.End()

	if n.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.attemptTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := n.sender.Send(ctx, comb.Endpoint.Method, comb.Endpoint.Path, comb.Payload, nil)
	a := Attempt{Combination: comb, Err: err, Duration: time.Since(start)}
	if resp != nil {
		a.StatusCode = resp.StatusCode
	}

	fields := log.Fields{
		"project_id":  target.ProjectID,
		"task_id":     target.TaskID,
		"endpoint":    comb.Endpoint.String(),
		"payload":     comb.Payload.String(),
		"status":      a.StatusCode,
		"duration_ms": durationToMillis(a.Duration),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	n.logger.WithFields(fields).Debug("board.persist.attempt")

	span.SetAttributes(attribute.Int("http.status_code", a.StatusCode))
	if a.Succeeded() {
		span.SetStatus(codes.Ok, "")
	} else if err != nil {
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Error, http.StatusText(a.StatusCode))
	}
	return a
}
