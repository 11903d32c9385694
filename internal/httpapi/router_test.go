package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/lead-scorer/internal/ai"
	"github.com/spigell/lead-scorer/internal/leads"
	"github.com/spigell/lead-scorer/internal/scoring"
	"github.com/spigell/lead-scorer/internal/session"
)

const leadsCSV = "name,role,company,industry,location,linkedin_bio\n" +
	"Ava,Engineer,Initech,retail,LA,bio\n" +
	"Jo,CEO,Acme,fintech,NY,bio\n"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	session *session.Session
	engine  *gin.Engine
}

func newTestServer(t *testing.T, runner Runner) *testServer {
	t.Helper()
	s := session.New()
	if runner == nil {
		classifier := ai.ClassifierFunc(func(_ context.Context, lead leads.Lead, _ leads.Offer) (*ai.Classification, error) {
			if lead.Role == "CEO" {
				return &ai.Classification{Intent: leads.IntentHigh, Reasoning: "budget owner"}, nil
			}
			return &ai.Classification{Intent: leads.IntentMedium, Reasoning: "may influence"}, nil
		})
		runner = scoring.New(s, nil, classifier, scoring.Config{}, zap.NewNop())
	}
	return &testServer{session: s, engine: NewRouter(s, runner, Config{}, zap.NewNop())}
}

func (ts *testServer) do(t *testing.T, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func (ts *testServer) postJSON(t *testing.T, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return ts.do(t, http.MethodPost, path, "application/json", body)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestScoringFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.postJSON(t, "/offer", leads.Offer{
		Name:          " X ",
		ValueProps:    []string{"a"},
		IdealUseCases: []string{"fintech"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	offer := decode[offerResponse](t, w)
	assert.Equal(t, "X", offer.Offer.Name)

	w = ts.do(t, http.MethodPost, "/leads/upload", "text/csv", []byte(leadsCSV))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	up := decode[map[string]any](t, w)
	assert.EqualValues(t, 2, up["accepted"])
	assert.EqualValues(t, 0, up["skipped"])

	w = ts.do(t, http.MethodPost, "/score", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	scored := decode[scoreResponse](t, w)
	require.Len(t, scored.Results, 2)
	assert.Equal(t, "Ava", scored.Results[0].Lead.Name, "score response keeps upload order")
	assert.Equal(t, 100, scored.Results[1].FinalScore)
	assert.Equal(t, 2, scored.Summary.Leads)

	w = ts.do(t, http.MethodGet, "/results", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ranked := decode[resultsResponse](t, w)
	require.Len(t, ranked.Results, 2)
	assert.Equal(t, "Jo", ranked.Results[0].Lead.Name)
	assert.Equal(t, "score", ranked.Order)

	w = ts.do(t, http.MethodGet, "/results?order=upload&intent=medium", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	filtered := decode[resultsResponse](t, w)
	require.Len(t, filtered.Results, 1)
	assert.Equal(t, "Ava", filtered.Results[0].Lead.Name)

	w = ts.do(t, http.MethodGet, "/results/export", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "1,Jo,CEO"), lines[1])

	w = ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"scored"`)

	w = ts.do(t, http.MethodDelete, "/session", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.StateUninitialized, ts.session.State())
}

func TestScoreWithoutOffer(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.postJSON(t, "/leads", []any{map[string]any{"name": "Ava"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/score", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "no_offer_configured", resp.Error)

	w = ts.do(t, http.MethodGet, "/results", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "no_results", decode[ErrorResponse](t, w).Error)
}

func TestScoreWithoutLeads(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.postJSON(t, "/offer", leads.Offer{Name: "X", ValueProps: []string{"a"}, IdealUseCases: []string{"b"}})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/score", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no_leads_uploaded", decode[ErrorResponse](t, w).Error)
}

func TestInvalidOffer(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.postJSON(t, "/offer", map[string]any{"name": "", "value_props": []string{}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode[struct {
		Error   string             `json:"error"`
		Details []leads.FieldError `json:"details"`
	}](t, w)
	assert.Equal(t, "invalid_offer", resp.Error)

	fields := make([]string, 0, len(resp.Details))
	for _, d := range resp.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"name", "value_props", "ideal_use_cases"}, fields)

	w = ts.do(t, http.MethodPost, "/offer", "application/json", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/offer", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadMalformedRow(t *testing.T) {
	ts := newTestServer(t, nil)

	input := "name,role,company,industry,location,linkedin_bio\n" +
		"Ava,CEO,Acme,fintech,NY,bio\n" +
		"broken,row\n" +
		"Ben,Manager,Initech,retail,LA,bio\n"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(input))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := ts.do(t, http.MethodPost, "/leads/upload", mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[struct {
		Accepted int `json:"accepted"`
		Skipped  int `json:"skipped"`
		Errors   []struct {
			Row int `json:"row"`
		} `json:"errors"`
	}](t, w)
	assert.Equal(t, 2, resp.Accepted)
	assert.Equal(t, 1, resp.Skipped)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 2, resp.Errors[0].Row)

	w = ts.do(t, http.MethodGet, "/leads", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stored := decode[leadsResponse](t, w)
	require.Len(t, stored.Leads, 2)
	assert.Equal(t, "Ava", stored.Leads[0].Name)
	assert.Equal(t, "Ben", stored.Leads[1].Name)
}

func TestUploadRejectsUnreadableFile(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.session.SetLeads([]leads.Lead{{Name: "kept"}})

	w := ts.do(t, http.MethodPost, "/leads/upload", "text/csv", []byte("\n\n"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_upload", decode[ErrorResponse](t, w).Error)

	w = ts.do(t, http.MethodPost, "/leads/upload", "text/csv", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/leads", "application/json", []byte(`{"name":"not an array"}`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode[ErrorResponse](t, w).Error)

	batch, err := ts.session.Leads()
	require.NoError(t, err)
	assert.Equal(t, "kept", batch[0].Name)
}

func TestResultsQueryValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/results?order=random", "/results?intent=maybe"} {
		w := ts.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

type runnerFunc func(ctx context.Context) (leads.Results, scoring.Summary, error)

func (f runnerFunc) Run(ctx context.Context) (leads.Results, scoring.Summary, error) { return f(ctx) }

func TestScoreConflicts(t *testing.T) {
	for _, err := range []error{session.ErrRunInProgress, session.ErrSessionChanged} {
		ts := newTestServer(t, runnerFunc(func(context.Context) (leads.Results, scoring.Summary, error) {
			return nil, scoring.Summary{}, err
		}))

		w := ts.do(t, http.MethodPost, "/score", "", nil)
		assert.Equal(t, http.StatusConflict, w.Code, err.Error())
	}
}

func TestInternalErrorAndPanic(t *testing.T) {
	ts := newTestServer(t, runnerFunc(func(context.Context) (leads.Results, scoring.Summary, error) {
		return nil, scoring.Summary{}, errors.New("disk on fire")
	}))
	w := ts.do(t, http.MethodPost, "/score", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decode[ErrorResponse](t, w).Error)

	ts = newTestServer(t, runnerFunc(func(context.Context) (leads.Results, scoring.Summary, error) {
		panic("boom")
	}))
	w = ts.do(t, http.MethodPost, "/score", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	const id = "0b4f3f0e-4a8b-4d3a-9a50-0e6a3b0c7a11"
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))
}
