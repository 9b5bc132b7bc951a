package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eion/things/internal/things"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type testServer struct {
	router  *gin.Engine
	handler http.Handler
	service things.ThingManager
	clock   *testClock
}

func newTestServer(t *testing.T, configure ...func(*Dependencies)) *testServer {
	t.Helper()

	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	service := things.NewService(things.NewInMemoryStoreWithClock(clock.Now), things.DefaultSearchLimit)

	deps := Dependencies{
		Service: service,
		Logger:  zap.NewNop(),
	}
	for _, fn := range configure {
		fn(&deps)
	}

	router := NewRouter(deps)
	return &testServer{
		router:  router,
		handler: NewHandler(router, 1<<20),
		service: service,
		clock:   clock,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *testServer) get(target, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return s.do(req)
}

func (s *testServer) sendJSON(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return s.do(req)
}

func (s *testServer) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *testServer) create(t *testing.T, name string) *things.Thing {
	t.Helper()
	thing, err := s.service.CreateThing(context.Background(), &things.ThingParams{Name: &name})
	require.NoError(t, err)
	return thing
}

type thingBody struct {
	Thing things.Thing `json:"thing"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func thingPayload(fields map[string]any) map[string]any {
	return map[string]any{"thing": fields}
}
