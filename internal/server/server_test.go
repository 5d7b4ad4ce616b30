package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/roommate-matcher/internal/matcherr"
	"github.com/spigell/roommate-matcher/internal/ranking"
	"github.com/spigell/roommate-matcher/internal/scoring"
)

type stubRanker struct {
	userID  string
	opts    ranking.RecommendOptions
	scores  []*scoring.CompatibilityScore
	pair    [2]string
	enhance bool
	match   *scoring.CompatibilityScore
	err     error
}

func (s *stubRanker) Recommend(_ context.Context, userID string, opts ranking.RecommendOptions) ([]*scoring.CompatibilityScore, error) {
	s.userID, s.opts = userID, opts
	return s.scores, s.err
}

func (s *stubRanker) Compare(_ context.Context, userA, userB string, enhanced bool) (*scoring.CompatibilityScore, error) {
	s.pair, s.enhance = [2]string{userA, userB}, enhanced
	return s.match, s.err
}

func serve(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRecommendations(t *testing.T) {
	ranker := &stubRanker{scores: []*scoring.CompatibilityScore{
		{CandidateID: "b@example.com", Score: 83},
	}}
	srv := New(ranker, nil)

	rec := serve(t, srv, "/api/v1/recommendations/a@example.com?region=Boston&minScore=60&limit=5&enhanced=true")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "a@example.com", ranker.userID)
	assert.Equal(t, "Boston", ranker.opts.Region)
	require.NotNil(t, ranker.opts.MinScore)
	assert.InDelta(t, 60, *ranker.opts.MinScore, 1e-9)
	assert.Equal(t, 5, ranker.opts.Limit)
	require.NotNil(t, ranker.opts.Enhanced)
	assert.True(t, *ranker.opts.Enhanced)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	var body RecommendationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, "b@example.com", body.Recommendations[0].CandidateID)
}

func TestRecommendationsDefaults(t *testing.T) {
	ranker := &stubRanker{}
	rec := serve(t, New(ranker, nil), "/api/v1/recommendations/a@example.com")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, ranker.opts.MinScore)
	assert.Nil(t, ranker.opts.Enhanced)
	assert.JSONEq(t, `{"recommendations":[]}`, rec.Body.String())
}

func TestRecommendationsBadQuery(t *testing.T) {
	srv := New(&stubRanker{}, nil)

	for _, query := range []string{"minScore=abc", "minScore=101", "limit=-1", "enhanced=maybe"} {
		rec := serve(t, srv, "/api/v1/recommendations/a@example.com?"+query)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{err: matcherr.ProfileNotFound("a@example.com"), code: http.StatusNotFound},
		{err: matcherr.ErrSelfComparison, code: http.StatusBadRequest},
		{err: &matcherr.InvalidProfileError{ID: "a@example.com", Reason: "profile is not submitted"}, code: http.StatusUnprocessableEntity},
		{err: errors.New("database is down"), code: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := serve(t, New(&stubRanker{err: tc.err}, nil), "/api/v1/recommendations/a@example.com")
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Message)
		assert.Equal(t, rec.Header().Get(echo.HeaderXRequestID), body.RequestID)
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rec := serve(t, New(&stubRanker{err: errors.New("pq: password authentication failed")}, zap.New(core)), "/api/v1/recommendations/a@example.com")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, 1, logs.FilterMessage("request failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("request").Len())
}

func TestCompare(t *testing.T) {
	ranker := &stubRanker{match: &scoring.CompatibilityScore{CandidateID: "b@example.com", Score: 71.5, Explanation: "Both cook."}}
	srv := New(ranker, nil)

	rec := serve(t, srv, "/api/v1/compare/a@example.com/b@example.com?enhanced=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, [2]string{"a@example.com", "b@example.com"}, ranker.pair)
	assert.True(t, ranker.enhance)

	var body scoring.CompatibilityScore
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.InDelta(t, 71.5, body.Score, 1e-9)
	assert.Equal(t, "Both cook.", body.Explanation)

	ranker.match = nil
	rec = serve(t, srv, "/api/v1/compare/a@example.com/c@example.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ranker.enhance)
	assert.JSONEq(t, `{"match":null}`, rec.Body.String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-42")
	rec := httptest.NewRecorder()

	New(&stubRanker{}, nil).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(echo.HeaderXRequestID))
}

func TestHealth(t *testing.T) {
	rec := serve(t, New(&stubRanker{}, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	failing := Check{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}
	healthy := Check{Name: "postgres", Ping: func(context.Context) error { return nil }}
	rec = serve(t, New(&stubRanker{}, nil, healthy, failing), "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(t, New(&stubRanker{}, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
