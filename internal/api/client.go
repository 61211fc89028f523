// internal/api/client.go
//
// HTTP client for the compliance service. Request/response structs that
// exist only on the wire stay private to this package; the exported types
// in types.go are the contract the rest of the client programs against.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	// Document upload triggers rule extraction server-side, which can run
	// for a minute on large guideline PDFs.
	uploadTimeout = 180 * time.Second
)

// Client talks to the compliance service REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	uploads    *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (primarily for tests).
// The same client is used for uploads, so test servers see every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
			c.uploads = hc
		}
	}
}

// NewClient builds a client for the given service base URL. The token is
// sent as a bearer credential on every request.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultTimeout},
		uploads:    &http.Client{Timeout: uploadTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// --- Workspaces ---

type createWorkspaceRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	AgentIDs    []string `json:"agent_ids,omitempty"`
}

// CreateWorkspace provisions a new workspace. The idempotency key must be
// minted once per logical attempt and reused on retries of that attempt so
// a double-submit under network ambiguity cannot create two workspaces.
func (c *Client) CreateWorkspace(ctx context.Context, name, description string, agentIDs []string, idempotencyKey string) (Workspace, error) {
	if strings.TrimSpace(name) == "" {
		return Workspace{}, &APIError{Kind: KindValidation, Reason: "workspace name is required"}
	}
	var ws Workspace
	headers := map[string]string{"Idempotency-Key": idempotencyKey}
	err := c.doJSON(ctx, http.MethodPost, "/projects", createWorkspaceRequest{
		Name:        name,
		Description: description,
		AgentIDs:    agentIDs,
	}, headers, &ws)
	if err != nil {
		return Workspace{}, fmt.Errorf("api: create workspace: %w", err)
	}
	return ws, nil
}

// ListWorkspaces returns the caller's workspaces.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := c.doJSON(ctx, http.MethodGet, "/projects", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: list workspaces: %w", err)
	}
	return out, nil
}

// ListGuidelines returns the guideline documents uploaded to a workspace.
func (c *Client) ListGuidelines(ctx context.Context, workspaceID string) ([]Guideline, error) {
	if workspaceID == "" {
		return nil, fmt.Errorf("api: list guidelines: workspace id is required")
	}
	var out []Guideline
	path := fmt.Sprintf("/projects/%s/guidelines", url.PathEscape(workspaceID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: list guidelines: %w", err)
	}
	return out, nil
}

// ListAgents returns the specialist agents available at workspace creation.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	if err := c.doJSON(ctx, http.MethodGet, "/agents", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: list agents: %w", err)
	}
	return out, nil
}

// --- Documents ---

// UploadGuidelineDocument streams a guideline document to a workspace and
// blocks until the server finishes extracting rules from it. Callers should
// surface in-flight status while this runs; it routinely takes tens of
// seconds.
func (c *Client) UploadGuidelineDocument(ctx context.Context, workspaceID, filename string, content io.Reader, idempotencyKey string) (UploadResult, error) {
	if workspaceID == "" {
		return UploadResult{}, fmt.Errorf("api: upload guideline: workspace id is required")
	}
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("api: upload guideline: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("api: upload guideline: read document: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("api: upload guideline: %w", err)
	}

	path := fmt.Sprintf("/projects/%s/guidelines", url.PathEscape(workspaceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("api: upload guideline: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	c.authorize(req)

	resp, err := c.uploads.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("api: upload guideline: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadResult{}, fmt.Errorf("api: upload guideline: %w", c.errorFromResponse(resp))
	}
	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, fmt.Errorf("api: upload guideline: decode response: %w", err)
	}
	if !result.Success {
		return UploadResult{}, fmt.Errorf("api: upload guideline: %w", &APIError{
			Kind:   KindExtraction,
			Reason: "the server accepted the document but extraction produced no result",
		})
	}
	return result, nil
}

// --- Rules ---

// ListRulesParams narrows a rule listing request. The server supports page
// number, page size, and simple field filters only; there is no filter for
// "rules whose source guideline is in set S", so the catalog synchronizer
// reconstructs that view client-side.
type ListRulesParams struct {
	Page     int
	PageSize int

	// ActiveOnly, when set, filters on is_active.
	ActiveOnly *bool

	// SourceGuidelineID filters on a single guideline when the server-side
	// filter suffices (single-scope views).
	SourceGuidelineID string
}

// ListRules fetches one page of the rule listing. A page shorter than the
// requested size means no further pages exist; the server does not report a
// total count.
func (c *Client) ListRules(ctx context.Context, params ListRulesParams) ([]Rule, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		return nil, fmt.Errorf("api: list rules: page size must be positive")
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(params.Page))
	q.Set("page_size", strconv.Itoa(params.PageSize))
	if params.ActiveOnly != nil {
		q.Set("is_active", strconv.FormatBool(*params.ActiveOnly))
	}
	if params.SourceGuidelineID != "" {
		q.Set("source_guideline_id", params.SourceGuidelineID)
	}
	var out []Rule
	if err := c.doJSON(ctx, http.MethodGet, "/rules?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("api: list rules: %w", err)
	}
	for _, rule := range out {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("api: list rules: %w", err)
		}
	}
	return out, nil
}

type createRuleRequest struct {
	Text            string   `json:"rule_text"`
	Category        Category `json:"category"`
	Severity        Severity `json:"severity"`
	PointsDeduction float64  `json:"points_deduction"`
}

// CreateRule authors a rule directly, with no source guideline.
func (c *Client) CreateRule(ctx context.Context, text string, category Category, severity Severity, pointsDeduction float64) (Rule, error) {
	if strings.TrimSpace(text) == "" {
		return Rule{}, &APIError{Kind: KindValidation, Reason: "rule text is required"}
	}
	if !category.Valid() || !severity.Valid() {
		return Rule{}, &APIError{Kind: KindValidation, Reason: "unknown category or severity"}
	}
	var rule Rule
	err := c.doJSON(ctx, http.MethodPost, "/rules", createRuleRequest{
		Text:            text,
		Category:        category,
		Severity:        severity,
		PointsDeduction: pointsDeduction,
	}, nil, &rule)
	if err != nil {
		return Rule{}, fmt.Errorf("api: create rule: %w", err)
	}
	return rule, nil
}

// UpdateRule applies a partial update and returns the server's
// authoritative post-mutation record.
func (c *Client) UpdateRule(ctx context.Context, id string, patch RulePatch) (Rule, error) {
	if id == "" {
		return Rule{}, fmt.Errorf("api: update rule: id is required")
	}
	if patch.Empty() {
		return Rule{}, &APIError{Kind: KindValidation, Reason: "nothing to update"}
	}
	var rule Rule
	path := "/rules/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPatch, path, patch, nil, &rule); err != nil {
		return Rule{}, fmt.Errorf("api: update rule: %w", err)
	}
	return rule, nil
}

// DeactivateRule soft-deletes a rule. Deactivating an already-inactive
// rule succeeds; the server treats it as a no-op.
func (c *Client) DeactivateRule(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("api: deactivate rule: id is required")
	}
	if err := c.doJSON(ctx, http.MethodDelete, "/rules/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("api: deactivate rule: %w", err)
	}
	return nil
}

// ReactivateRule restores a soft-deleted rule and returns its record.
func (c *Client) ReactivateRule(ctx context.Context, id string) (Rule, error) {
	if id == "" {
		return Rule{}, fmt.Errorf("api: reactivate rule: id is required")
	}
	var rule Rule
	path := fmt.Sprintf("/rules/%s/restore", url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPost, path, nil, nil, &rule); err != nil {
		return Rule{}, fmt.Errorf("api: reactivate rule: %w", err)
	}
	return rule, nil
}

type refineRuleRequest struct {
	Instruction string `json:"instruction"`
}

// RefineRule asks the server to rewrite a rule per the operator's
// instruction. The rewriting itself is opaque to this client.
func (c *Client) RefineRule(ctx context.Context, id, instruction string) (Rule, error) {
	if id == "" {
		return Rule{}, fmt.Errorf("api: refine rule: id is required")
	}
	if strings.TrimSpace(instruction) == "" {
		return Rule{}, &APIError{Kind: KindValidation, Reason: "refinement instruction is required"}
	}
	var rule Rule
	path := fmt.Sprintf("/rules/%s/refine", url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPost, path, refineRuleRequest{Instruction: instruction}, nil, &rule); err != nil {
		return Rule{}, fmt.Errorf("api: refine rule: %w", err)
	}
	return rule, nil
}

// --- Plumbing ---

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, headers map[string]string, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.errorFromResponse(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// serverError matches the service's error body ({"detail": "..."}).
type serverError struct {
	Detail string `json:"detail"`
}

func (c *Client) errorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed serverError
	_ = json.Unmarshal(raw, &parsed)
	return &APIError{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Reason:     strings.TrimSpace(parsed.Detail),
	}
}
