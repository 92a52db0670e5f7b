package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"voice-calculator/internal/handlers"
	"voice-calculator/internal/observability"
)

const streamWriteTimeout = 5 * time.Second

// Stream handles GET /sessions/{id}/stream. The client receives the current
// state followed by every update of the session; it may send Input messages,
// which are applied like the button routes.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerWithTrace(ctx)
	id := chi.URLParam(r, "id")

	hub := h.manager.Hub()
	if hub == nil {
		handlers.WriteError(w, http.StatusNotImplemented, "display stream disabled")
		return
	}

	current, err := h.manager.Current(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			handlers.WriteError(w, http.StatusNotFound, "session not found")
			return
		}
		logger.Error("loading session for stream", zap.String("session_id", id), zap.Error(err))
		handlers.WriteError(w, http.StatusInternalServerError, "session store unavailable")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		logger.Warn("websocket accept failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sub := hub.Subscribe(id)
	defer sub.Close()

	streamConnections.Add(ctx, 1)
	defer streamConnections.Add(context.WithoutCancel(ctx), -1)

	logger.Info("display stream opened", zap.String("session_id", id))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := writeMessage(ctx, conn, current); err != nil {
		return
	}

	go h.readInputs(ctx, cancel, conn, id, logger)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			logger.Info("display stream closed", zap.String("session_id", id))
			return
		case u, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session deleted")
				return
			}
			if err := writeMessage(ctx, conn, u); err != nil {
				logger.Debug("display stream write failed", zap.String("session_id", id), zap.Error(err))
				return
			}
		}
	}
}

// readInputs applies client messages until the connection fails. Resulting
// updates reach the client through the hub.
func (h *Handler) readInputs(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, id string, logger *zap.Logger) {
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var in Input
		if err := json.Unmarshal(data, &in); err != nil {
			_ = writeMessage(ctx, conn, StreamError{Error: "invalid message"})
			continue
		}

		op, err := in.Operation(h.dispatcher)
		if err != nil {
			_ = writeMessage(ctx, conn, StreamError{Error: err.Error()})
			continue
		}

		start := time.Now()
		_, change, err := h.manager.Apply(ctx, id, op)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return
			}
			logger.Error("stream operation failed", zap.String("session_id", id), zap.String("operation", op.Name), zap.Error(err))
			_ = writeMessage(ctx, conn, StreamError{Error: "session store unavailable"})
			continue
		}

		elapsed := float64(time.Since(start).Microseconds()) / 1000.0
		_, span := tracer.Start(ctx, "session.stream."+op.Name)
		recordChange(ctx, span, op.Name, change, elapsed)
		span.End()
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
