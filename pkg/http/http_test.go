package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerReq struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,min=8"`
}

func newCtx(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestReadAndValidateRequest(t *testing.T) {
	c, _ := newCtx(http.MethodPost, `{"username":"alice"}`)
	var req registerReq
	appErr := ReadAndValidateRequest(c, &req)
	require.NotNil(t, appErr)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "password", appErr.Field)
	assert.Equal(t, "password is required", appErr.Message)

	c, _ = newCtx(http.MethodPost, `{"username":"alice","password":"longenough"}`)
	req = registerReq{}
	assert.Nil(t, ReadAndValidateRequest(c, &req))
	assert.Equal(t, "alice", req.Username)
}

func TestErrorResponse(t *testing.T) {
	c, rec := newCtx(http.MethodGet, "")
	require.NoError(t, ErrorResponse(c, NotFoundError("Invalid ticker or no data found")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid ticker or no data found"}`, rec.Body.String())

	c, rec = newCtx(http.MethodGet, "")
	require.NoError(t, ErrorResponse(c, errors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"An unexpected error occurred: boom"}`, rec.Body.String())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := errors.New("cause")
	err := InternalError("wrapped").WithError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "wrapped: cause", err.Error())
}

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ping/", func(c echo.Context) error {
		return SuccessResponse(c, map[string]string{"pong": "ok"})
	})
	e.GET("/api/panic/", func(c echo.Context) error {
		panic("kaboom")
	})
}

func TestServerRoutingWithoutTrailingSlash(t *testing.T) {
	s := NewServer(Handlers{pingHandler{}})

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"pong":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missing/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Error)
}

func TestServerRecoversPanics(t *testing.T) {
	s := NewServer(pingHandler{})
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/panic/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "kaboom")
}

func TestServerExposesMetrics(t *testing.T) {
	s := NewServer(pingHandler{}, WithMetrics("/metrics", time.Second))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ping/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/ping/",status="200"}`)
}

func TestClientSendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "priceportal-test", r.Header.Get("User-Agent"))
		if r.URL.Query().Get("fail") == "1" {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"n": 7})
	}))
	defer srv.Close()

	c := NewClient(WithHeader("User-Agent", "priceportal-test"))

	var out struct{ N int }
	require.NoError(t, c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: srv.URL}, &out))
	assert.Equal(t, 7, out.N)

	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"fail": {"1"}},
	}, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}
