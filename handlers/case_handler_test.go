package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"aijudge-backend/extraction"
	"aijudge-backend/llm"
	"aijudge-backend/repository"
	"aijudge-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGenerator struct{}

func (fixedGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	return "1. VERDICT: In favor of Side A\n2. REASONING: test", nil
}

var _ llm.Generator = fixedGenerator{}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.NewCaseService(
		service.WithCaseStore(repository.NewMemoryCaseStore()),
		service.WithGenerator(fixedGenerator{}),
		service.WithExtractor(extraction.NewLocalExtractor()),
	)
	handler := NewCaseHandler(svc, nil)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/cases", handler.CreateCase)
	api.GET("/cases", handler.ListCases)
	api.GET("/cases/:id", handler.GetCase)
	api.POST("/cases/:id/sides/:side/material", handler.SubmitMaterial)
	api.POST("/cases/:id/sides/:side/documents", handler.SubmitDocuments)
	api.POST("/cases/:id/verdict", handler.RequestVerdict)
	api.POST("/cases/:id/follow-ups", handler.SubmitFollowUp)
	api.POST("/cases/:id/close", handler.CloseCase)
	api.GET("/cases/:id/similar", handler.SimilarCases)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	require.Equal(t, false, body["success"])
	errObj, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	code, _ := errObj["code"].(string)
	return code
}

func TestCreateCaseEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "c1", data["case_id"])
	assert.Equal(t, "collecting_evidence", data["status"])

	// Empty body generates an id
	w = doJSON(t, r, http.MethodPost, "/api/cases", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	data = decode(t, w)["data"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(data["case_id"].(string), "case-"))

	// Duplicate is a conflict
	w = doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CASE_EXISTS", errorCode(t, w))
}

func TestSubmitMaterialEndpoint(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})

	w := doJSON(t, r, http.MethodPost, "/api/cases/c1/sides/A/material", map[string]string{
		"text": "A breached the contract",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := decode(t, w)["data"].(map[string]interface{})
	segments := data["text_segments"].([]interface{})
	assert.Equal(t, []interface{}{"A breached the contract"}, segments)
}

func TestSubmitMaterialInvalidSideEndpoint(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})

	w := doJSON(t, r, http.MethodPost, "/api/cases/c1/sides/C/material", map[string]string{
		"text": "who am I",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SIDE", errorCode(t, w))
}

func TestSubmitMaterialUnknownCaseEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/cases/ghost/sides/A/material", map[string]string{
		"text": "text",
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CASE_NOT_FOUND", errorCode(t, w))
}

func TestSubmitDocumentsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "exhibit.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("signed contract dated March 1"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cases/c1/sides/B/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	submission := data["submission"].(map[string]interface{})
	segments := submission["text_segments"].([]interface{})
	require.Len(t, segments, 1)
	assert.Contains(t, segments[0], "signed contract")
	assert.Empty(t, data["failures"])
}

func TestSubmitDocumentsRejectsUnsupportedType(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "payload.exe")
	require.NoError(t, err)
	_, err = part.Write([]byte("not evidence"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/cases/c1/sides/A/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNSUPPORTED_FILE_TYPE", errorCode(t, w))
}

func TestVerdictAndFollowUpFlow(t *testing.T) {
	r := newTestRouter(t)
	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})
	doJSON(t, r, http.MethodPost, "/api/cases/c1/sides/A/material", map[string]string{"text": "claim"})

	// Verdict before both sides submitted is a bad request
	w := doJSON(t, r, http.MethodPost, "/api/cases/c1/verdict", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INCOMPLETE_CASE", errorCode(t, w))

	doJSON(t, r, http.MethodPost, "/api/cases/c1/sides/B/material", map[string]string{"text": "defence"})

	w = doJSON(t, r, http.MethodPost, "/api/cases/c1/verdict", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Contains(t, data["verdict"], "In favor of Side A")
	assert.Equal(t, false, data["cached"])

	// Re-requesting is a state conflict
	w = doJSON(t, r, http.MethodPost, "/api/cases/c1/verdict", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, w))

	// Five rounds, then the ceiling
	for i := 1; i <= service.MaxFollowUps; i++ {
		side := "A"
		if i%2 == 0 {
			side = "B"
		}
		w = doJSON(t, r, http.MethodPost, "/api/cases/c1/follow-ups", map[string]string{
			"side":     side,
			"argument": fmt.Sprintf("round %d", i),
		})
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]interface{})
		round := data["round"].(map[string]interface{})
		assert.Equal(t, float64(i), round["sequence_number"])
	}

	w = doJSON(t, r, http.MethodPost, "/api/cases/c1/follow-ups", map[string]string{
		"side":     "B",
		"argument": "one too many",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "FOLLOW_UP_LIMIT", errorCode(t, w))

	// Close and verify terminal state
	w = doJSON(t, r, http.MethodPost, "/api/cases/c1/close", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/cases/c1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "closed", data["status"])
}

func TestListCasesEndpoint(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/cases", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["count"])

	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c1"})
	doJSON(t, r, http.MethodPost, "/api/cases", map[string]string{"case_id": "c2"})

	w = doJSON(t, r, http.MethodGet, "/api/cases", nil)
	data = decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["count"])
}

func TestSimilarCasesUnavailable(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/cases/c1/similar", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "SIMILARITY_UNAVAILABLE", errorCode(t, w))
}
