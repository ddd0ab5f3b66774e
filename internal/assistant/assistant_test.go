package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"legal-rag/internal/config"
	"legal-rag/internal/db"
	"legal-rag/internal/llmservice"
	"legal-rag/internal/models"
)

// investigationStub serves /investigation with a fixed status and body.
func investigationStub(t *testing.T, status int, body string, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		assert.Equal(t, "/investigation", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["question"])
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func postUser(t *testing.T, h http.Handler, body string) (int, userResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/user", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out userResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func newHandler(t *testing.T, remote Investigator, model *llmservice.MockModel, modelErr error) http.Handler {
	t.Helper()
	return newLoggingHandler(t, remote, model, modelErr, nil)
}

func newLoggingHandler(t *testing.T, remote Investigator, model *llmservice.MockModel, modelErr error, queryDB *bun.DB) http.Handler {
	t.Helper()
	var a *Assistant
	var err error
	if model == nil {
		a, err = NewAssistant(remote, nil, modelErr)
	} else {
		a, err = NewAssistant(remote, model, modelErr)
	}
	require.NoError(t, err)
	return NewServer(a, queryDB, &config.AssistantConfig{}, nil).Handler()
}

func TestUser_Success(t *testing.T) {
	remote := investigationStub(t, http.StatusOK, `{"answer":"Report to the Anti-Corruption Bureau."}`, nil)
	model := llmservice.NewMockModel("1. Immediate Steps\n2. Your Rights\n3. How to Report\n4. Additional Precautions")
	h := newHandler(t, NewRAGClient(remote.URL, 5*time.Second), model, nil)

	code, resp := postUser(t, h, `{"question":"A clerk demanded a bribe for my licence"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Contains(t, resp.Answer, "How to Report")

	prompt := model.Prompts()[0]
	assert.Contains(t, prompt, "User Query: A clerk demanded a bribe for my licence")
	assert.Contains(t, prompt, "Reference Information: Report to the Anti-Corruption Bureau.")
}

func TestUser_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	queryDB, err := db.Open(ctx, &config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = queryDB.Close() })

	remote := investigationStub(t, http.StatusOK, `{"answer":"Report to the Anti-Corruption Bureau."}`, nil)
	h := newLoggingHandler(t, NewRAGClient(remote.URL, 5*time.Second), llmservice.NewMockModel("1. Immediate Steps"), nil, queryDB)

	code, _ := postUser(t, h, `{"question":" A clerk demanded a bribe "}`)
	require.Equal(t, http.StatusOK, code)

	failing := investigationStub(t, http.StatusInternalServerError, `{"detail":"down"}`, nil)
	h = newLoggingHandler(t, NewRAGClient(failing.URL, 5*time.Second), llmservice.NewMockModel("unused"), nil, queryDB)
	code, _ = postUser(t, h, `{"question":"second"}`)
	require.Equal(t, http.StatusBadGateway, code)

	code, _ = postUser(t, h, `{"question":""}`)
	require.Equal(t, http.StatusBadRequest, code)

	logs, err := db.ListQueries(ctx, queryDB, models.QueryTypeAssistant, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	byQuestion := map[string]db.QueryLog{}
	for _, l := range logs {
		byQuestion[l.Question] = l
	}
	assert.Contains(t, byQuestion["A clerk demanded a bribe"].Answer, "Immediate Steps")
	assert.Empty(t, byQuestion["A clerk demanded a bribe"].Error)
	assert.Contains(t, byQuestion["second"].Error, "500")
}

func TestUser_RemoteFailure(t *testing.T) {
	remote := investigationStub(t, http.StatusInternalServerError, `{"detail":"Investigation system not initialized"}`, nil)
	model := llmservice.NewMockModel("unused")
	h := newHandler(t, NewRAGClient(remote.URL, 5*time.Second), model, nil)

	code, resp := postUser(t, h, `{"question":"q"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "error", resp.Status)
	assert.Empty(t, resp.Answer)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "500")
	assert.Empty(t, model.Prompts())
}

func TestUser_RemoteUnreachable(t *testing.T) {
	remote := investigationStub(t, http.StatusOK, `{}`, nil)
	url := remote.URL
	remote.Close()

	h := newHandler(t, NewRAGClient(url, time.Second), llmservice.NewMockModel("unused"), nil)
	code, resp := postUser(t, h, `{"question":"q"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, "error", resp.Status)
}

func TestUser_MissingKeySkipsRemote(t *testing.T) {
	var hits atomic.Int64
	remote := investigationStub(t, http.StatusOK, `{"answer":"x"}`, &hits)
	h := newHandler(t, NewRAGClient(remote.URL, time.Second), nil,
		fmt.Errorf("%w: GROQ_API_KEY not set", models.ErrUpstream))

	code, resp := postUser(t, h, `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "GROQ_API_KEY")
	assert.Equal(t, int64(0), hits.Load())
}

func TestUser_ModelFailure(t *testing.T) {
	remote := investigationStub(t, http.StatusOK, `{"answer":"x"}`, nil)
	model := llmservice.NewMockModel("")
	model.Err = fmt.Errorf("rate limited")
	h := newHandler(t, NewRAGClient(remote.URL, time.Second), model, nil)

	code, resp := postUser(t, h, `{"question":"q"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, *resp.Error, "rate limited")
}

func TestUser_BadInput(t *testing.T) {
	h := newHandler(t, NewRAGClient("http://127.0.0.1:1", time.Second), llmservice.NewMockModel("x"), nil)

	code, resp := postUser(t, h, `{"question":""}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", resp.Status)

	code, _ = postUser(t, h, `{`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestRoot(t *testing.T) {
	h := newHandler(t, NewRAGClient("", time.Second), nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, statusMessage, body["message"])
}

func TestRAGClient_MissingAnswer(t *testing.T) {
	remote := investigationStub(t, http.StatusOK, `{"detail":"nope"}`, nil)
	_, err := NewRAGClient(remote.URL+"/", time.Second).Investigate(context.Background(), "q")
	require.ErrorIs(t, err, models.ErrRemoteCall)

	_, err = NewRAGClient("", time.Second).Investigate(context.Background(), "q")
	require.ErrorIs(t, err, models.ErrRemoteCall)
}
