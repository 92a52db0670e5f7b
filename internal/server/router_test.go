package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voice-calculator/internal/observability"
	"voice-calculator/internal/session"
	"voice-calculator/internal/testutil"
	"voice-calculator/internal/voice"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	observability.Logger = zap.NewNop()
	if err := session.InitMetrics(); err != nil {
		t.Fatalf("initializing session metrics: %v", err)
	}

	m := session.NewManager(session.NewMemoryStore(0), session.WithHub(session.NewHub(4)))
	return NewRouter(session.NewHandler(m, voice.NewDispatcher()))
}

func TestNewRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := testutil.ExecuteRequest(req, router)

	testutil.CheckResponseCode(t, http.StatusOK, w.Code)
	if body := w.Body.String(); body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestNewRouterMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := testutil.ExecuteRequest(httptest.NewRequest(http.MethodGet, "/metrics", nil), router)
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)
}

func TestNewRouterSessionFlowSetsHeaderAndOmitsRequestIDInBody(t *testing.T) {
	router := newTestRouter(t)

	w := testutil.ExecuteRequest(httptest.NewRequest(http.MethodPost, "/sessions", nil), router)
	testutil.CheckResponseCode(t, http.StatusCreated, w.Code)

	var created session.Update
	testutil.DecodeJSONBody(t, w.Body, &created)
	if created.Display != "0" {
		t.Fatalf("expected display 0, got %q", created.Display)
	}

	requestID := w.Result().Header.Get("X-Request-ID")
	if _, err := uuid.Parse(requestID); err != nil {
		t.Fatalf("expected valid UUID in X-Request-ID, got %q: %v", requestID, err)
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/sessions/"+created.SessionID+"/voice", session.Input{
		Transcript: "what is seven times six",
		Final:      true,
	})
	w = testutil.ExecuteRequest(req, router)
	testutil.CheckResponseCode(t, http.StatusOK, w.Code)

	var payload map[string]any
	testutil.DecodeJSONBody(t, w.Body, &payload)

	if _, ok := payload["request_id"]; ok {
		t.Fatal("did not expect request_id field in success JSON body")
	}
	if payload["display"] != "42" {
		t.Fatalf("expected display 42, got %#v", payload["display"])
	}
	if payload["speech"] != "The answer is 42" {
		t.Fatalf("expected spoken answer, got %#v", payload["speech"])
	}
}

func TestNewRouterUnknownSession(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/sessions/missing/calculate", nil)
	w := testutil.ExecuteRequest(req, router)

	testutil.CheckResponseCode(t, http.StatusNotFound, w.Code)
}
