package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, "test-token", WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return client
}

func TestCreateWorkspace(t *testing.T) {
	var gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/projects", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		gotKey = r.Header.Get("Idempotency-Key")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Q1 Campaign", body["name"])

		json.NewEncoder(w).Encode(Workspace{ID: "ws-1", Name: "Q1 Campaign"})
	})

	ws, err := client.CreateWorkspace(context.Background(), "Q1 Campaign", "desc", []string{"agent-brand"}, "key-123")
	require.NoError(t, err)
	assert.Equal(t, "ws-1", ws.ID)
	assert.Equal(t, "key-123", gotKey)
}

func TestCreateWorkspaceBlankNameRejectedLocally(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.CreateWorkspace(context.Background(), "   ", "", nil, "key")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.False(t, called, "blank name must never reach the network")
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   ErrorKind
	}{
		{422, KindValidation},
		{404, KindNotFound},
		{401, KindUnauthorized},
		{413, KindUpload},
		{500, KindServer},
		{503, KindServer},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			json.NewEncoder(w).Encode(map[string]string{"detail": "boom"})
		})
		_, err := client.ListWorkspaces(context.Background())
		require.Error(t, err)
		assert.Equal(t, tc.kind, KindOf(err), "status %d", tc.status)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "boom", apiErr.Reason)
	}
}

func TestListRulesQueryAndValidation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "50", q.Get("page_size"))
		assert.Equal(t, "true", q.Get("is_active"))
		assert.Equal(t, "g1", q.Get("source_guideline_id"))
		json.NewEncoder(w).Encode([]Rule{{
			ID:       "r1",
			Text:     "No superlatives without substantiation",
			Category: CategoryBrand,
			Severity: SeverityHigh,
			IsActive: true,
		}})
	})

	active := true
	rules, err := client.ListRules(context.Background(), ListRulesParams{
		Page:              2,
		PageSize:          50,
		ActiveOnly:        &active,
		SourceGuidelineID: "g1",
	})
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "r1", rules[0].ID)
}

func TestListRulesRejectsUnknownSeverity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Rule{{ID: "r1", Category: CategoryBrand, Severity: "fatal"}})
	})

	_, err := client.ListRules(context.Background(), ListRulesParams{PageSize: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestUploadGuidelineDocument(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/projects/ws-1/guidelines", r.URL.Path)
		assert.Equal(t, "upload-key", r.Header.Get("Idempotency-Key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "brand.pdf", header.Filename)
		json.NewEncoder(w).Encode(UploadResult{GuidelineID: "g1", ExtractedCount: 12, Success: true})
	})

	result, err := client.UploadGuidelineDocument(context.Background(), "ws-1", "brand.pdf", strings.NewReader("pdf bytes"), "upload-key")
	require.NoError(t, err)
	assert.Equal(t, "g1", result.GuidelineID)
	assert.Equal(t, 12, result.ExtractedCount)
}

func TestUploadExtractionFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(UploadResult{Success: false})
	})

	_, err := client.UploadGuidelineDocument(context.Background(), "ws-1", "brand.pdf", strings.NewReader("x"), "")
	require.Error(t, err)
	assert.Equal(t, KindExtraction, KindOf(err))
}

func TestDeactivateAndReactivateRule(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/rules/r1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/rules/r1/restore":
			json.NewEncoder(w).Encode(Rule{ID: "r1", Category: CategoryBrand, Severity: SeverityLow, IsActive: true})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, client.DeactivateRule(context.Background(), "r1"))
	rule, err := client.ReactivateRule(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, rule.IsActive)
}

func TestUpdateRuleEmptyPatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("empty patch must not reach the server")
	})
	_, err := client.UpdateRule(context.Background(), "r1", RulePatch{})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestRefineRule(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rules/r1/refine", r.URL.Path)
		var body refineRuleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "make it stricter", body.Instruction)
		json.NewEncoder(w).Encode(Rule{ID: "r1", Text: "stricter text", Category: CategorySEO, Severity: SeverityMedium, IsActive: true})
	})

	rule, err := client.RefineRule(context.Background(), "r1", "make it stricter")
	require.NoError(t, err)
	assert.Equal(t, "stricter text", rule.Text)
}
