package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"voice-calculator/internal/calculator"
	"voice-calculator/internal/handlers"
	"voice-calculator/internal/observability"
	"voice-calculator/internal/voice"
)

var tracer = otel.Tracer("calculator")

// Handler serves the session routes.
type Handler struct {
	manager        *Manager
	dispatcher     *voice.Dispatcher
	originPatterns []string
}

type HandlerOption func(*Handler)

// WithOriginPatterns allows display streams from the given origins.
func WithOriginPatterns(patterns ...string) HandlerOption {
	return func(h *Handler) { h.originPatterns = patterns }
}

func NewHandler(m *Manager, d *voice.Dispatcher, opts ...HandlerOption) *Handler {
	if d == nil {
		d = voice.NewDispatcher()
	}
	h := &Handler{manager: m, dispatcher: d}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Create handles POST /sessions
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)

	ctx, span := tracer.Start(ctx, "session.create")
	defer span.End()

	s, err := h.manager.Create(ctx)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "create", "failed to create session", err, http.StatusInternalServerError, w)
		return
	}

	span.SetAttributes(attribute.String("session.id", s.ID))
	span.SetStatus(codes.Ok, "")
	logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)

	handlers.WriteJSON(w, http.StatusCreated, newUpdate(s, "create", Change{}))
}

// Get handles GET /sessions/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "session.get",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	u, err := h.manager.Current(ctx, id)
	if err != nil {
		h.recordStoreError(ctx, span, logger, "get", err, w)
		return
	}
	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, u)
}

// Delete handles DELETE /sessions/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "session.delete",
		trace.WithAttributes(attribute.String("session.id", id)),
	)
	defer span.End()

	if err := h.manager.Delete(ctx, id); err != nil {
		h.recordStoreError(ctx, span, logger, "delete", err, w)
		return
	}

	span.SetStatus(codes.Ok, "")
	logger.Info("session deleted",
		zap.String("session_id", id),
		zap.String("request_id", observability.RequestIDFromContext(ctx)),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Digit(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "digit", true)
}

func (h *Handler) Decimal(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "decimal", false)
}

func (h *Handler) Operator(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "operator", true)
}

func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "calculate", false)
}

func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "clear", false)
}

func (h *Handler) ClearEntry(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "clear_entry", false)
}

// Voice handles POST /sessions/{id}/voice
func (h *Handler) Voice(w http.ResponseWriter, r *http.Request) {
	h.handleOperation(w, r, "voice", true)
}

// handleOperation is the shared implementation of every route that applies
// an operation to a session. Routes with a body decode it into Input; the
// route decides the input type.
func (h *Handler) handleOperation(w http.ResponseWriter, r *http.Request, inputType string, hasBody bool) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	requestID := observability.RequestIDFromContext(ctx)
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, fmt.Sprintf("session.%s", inputType),
		trace.WithAttributes(
			attribute.String("session.id", id),
			attribute.String("calculator.input", inputType),
			attribute.String("request.id", requestID),
		),
	)
	defer span.End()

	var in Input
	if hasBody {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			observability.RecordError(ctx, span, logger, errorCounter, inputType, "invalid request body", err, http.StatusBadRequest, w)
			return
		}
	}
	in.Type = inputType

	op, err := in.Operation(h.dispatcher)
	if err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, inputType, err.Error(), err, http.StatusBadRequest, w)
		return
	}

	start := time.Now()
	u, change, err := h.manager.Apply(ctx, id, op)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	if err != nil {
		h.recordStoreError(ctx, span, logger, inputType, err, w)
		return
	}

	recordChange(ctx, span, op.Name, change, elapsed)

	logger.Info("session operation applied",
		zap.String("session_id", id),
		zap.String("operation", op.Name),
		zap.String("action", change.Action),
		zap.String("display", u.Display),
		zap.String("expression", u.Expression),
		zap.String("request_id", requestID),
		zap.Float64("duration_ms", elapsed),
	)

	handlers.WriteJSON(w, http.StatusOK, u)
}

// recordChange records metrics and span data for an applied operation.
func recordChange(ctx context.Context, span trace.Span, opName string, change Change, elapsed float64) {
	attrs := metric.WithAttributes(attribute.String("operation", opName))
	opsCounter.Add(ctx, 1, attrs)
	opsHistogram.Record(ctx, elapsed, attrs)

	span.SetAttributes(attribute.String("calculator.action", change.Action))
	if change.Calculated {
		out := change.Outcome
		span.AddEvent("computation.complete", trace.WithAttributes(
			attribute.String("operator", out.Operator.Name()),
			attribute.Float64("operand.a", out.Operands[0]),
			attribute.Float64("operand.b", out.Operands[1]),
			attribute.String("result", out.Result),
		))
		if out.Err != nil {
			span.RecordError(out.Err)
			errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", out.Operator.Name())))
		} else if v := calculator.ParseNumber(out.Result); !math.IsNaN(v) {
			resultGauge.Record(ctx, v, metric.WithAttributes(attribute.String("operation", out.Operator.Name())))
		}
	}
	span.SetStatus(codes.Ok, "")
}

func (h *Handler) recordStoreError(ctx context.Context, span trace.Span, logger *zap.Logger, opName string, err error, w http.ResponseWriter) {
	if errors.Is(err, ErrNotFound) {
		observability.RecordError(ctx, span, logger, errorCounter, opName, "session not found", err, http.StatusNotFound, w)
		return
	}
	observability.RecordError(ctx, span, logger, errorCounter, opName, "session store unavailable", err, http.StatusInternalServerError, w)
}

// Parse handles POST /parse. It reports how a transcript would be read
// without applying it anywhere.
func (h *Handler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)

	ctx, span := tracer.Start(ctx, "voice.parse")
	defer span.End()

	var req ParseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		observability.RecordError(ctx, span, logger, errorCounter, "parse", "invalid request body", err, http.StatusBadRequest, w)
		return
	}

	cmd := voice.Parse(req.Transcript)
	if cmd.Numbers == nil {
		cmd.Numbers = []float64{}
	}
	resp := ParseResponse{
		Transcript: strings.ToLower(strings.TrimSpace(req.Transcript)),
		Command:    cmd,
		Dispatch:   voice.ShouldDispatch(req.Transcript, true),
	}

	span.SetAttributes(
		attribute.Int("voice.numbers", len(cmd.Numbers)),
		attribute.String("voice.operator", cmd.Operator.Name()),
		attribute.Bool("voice.calculation", cmd.Calculation),
	)
	span.SetStatus(codes.Ok, "")
	handlers.WriteJSON(w, http.StatusOK, resp)
}
