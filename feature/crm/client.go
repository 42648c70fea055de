package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"crm-sync/core/metrics"
	"crm-sync/core/reconcile"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// metaKey is the per-record metadata object the API adds to every record.
const metaKey = "attributes"

// Client is a reconcile.Remote backed by the CRM REST API.
// It also implements reconcile.StampQuerier, reconcile.Counter and reconcile.Pager.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.RWMutex
	fields map[string][]string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a REST client.
func NewClient(cfg Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("crm base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid crm base url: %w", err)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "59.0"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout()},
		limiter: rate.NewLimiter(rate.Inf, 0),
		logger:  logger,
		fields:  make(map[string][]string),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BatchSize is the most ids a single FetchMultiple call sends.
func (c *Client) BatchSize() int {
	return c.cfg.BatchSize
}

// RegisterFields sets the fields selected when fetching records of a type.
func (c *Client) RegisterFields(recordType string, fields []string) error {
	if !validName(recordType) {
		return fmt.Errorf("invalid record type %q", recordType)
	}
	for _, f := range fields {
		if !validName(f) {
			return fmt.Errorf("invalid field %q for %s", f, recordType)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[recordType] = append([]string{}, fields...)
	return nil
}

func (c *Client) fieldList(recordType string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fields := c.fields[recordType]
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields registered for %s", recordType)
	}
	return fields, nil
}

type updatedResponse struct {
	IDs []string `json:"ids"`
}

type deletedResponse struct {
	DeletedRecords []struct {
		ID string `json:"id"`
	} `json:"deletedRecords"`
}

func (c *Client) GetUpdatedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	var out updatedResponse
	if err := c.window(ctx, "get_updated", recordType, "updated", start, end, &out); err != nil {
		return nil, err
	}
	if out.IDs == nil {
		return []string{}, nil
	}
	return out.IDs, nil
}

func (c *Client) GetDeletedIDs(ctx context.Context, recordType string, start, end time.Time) ([]string, error) {
	var out deletedResponse
	if err := c.window(ctx, "get_deleted", recordType, "deleted", start, end, &out); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(out.DeletedRecords))
	for _, r := range out.DeletedRecords {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (c *Client) window(ctx context.Context, op, recordType, kind string, start, end time.Time, out any) error {
	q := url.Values{}
	q.Set("start", formatTime(start))
	q.Set("end", formatTime(end))
	_, err := c.do(ctx, op, http.MethodGet, c.apiURL("/sobjects/"+url.PathEscape(recordType)+"/"+kind, q), nil, out)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Replication() {
		c.logger.Warn("Change window not replicable",
			zap.String("record_type", recordType),
			zap.Time("start", start),
			zap.Time("end", end),
			zap.String("code", apiErr.Code),
		)
		return fmt.Errorf("%w: %s", reconcile.ErrWindowUnavailable, apiErr.Message)
	}
	return err
}

func (c *Client) FetchMultiple(ctx context.Context, recordType string, ids []string) ([]reconcile.RemoteRecord, error) {
	if len(ids) == 0 {
		return []reconcile.RemoteRecord{}, nil
	}
	fields, err := c.fieldList(recordType)
	if err != nil {
		return nil, err
	}

	out := make([]reconcile.RemoteRecord, 0, len(ids))
	for start := 0; start < len(ids); start += c.cfg.BatchSize {
		end := min(start+c.cfg.BatchSize, len(ids))
		q := url.Values{}
		q.Set("ids", strings.Join(ids[start:end], ","))
		q.Set("fields", strings.Join(fields, ","))

		var rows []map[string]any
		if _, err := c.do(ctx, "fetch_multiple", http.MethodGet, c.apiURL("/composite/sobjects/"+url.PathEscape(recordType), q), nil, &rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			if row == nil {
				continue
			}
			out = append(out, toRecord(recordType, row))
		}
	}
	return out, nil
}

func (c *Client) Find(ctx context.Context, recordType, id string) (*reconcile.RemoteRecord, error) {
	q := url.Values{}
	if fields, err := c.fieldList(recordType); err == nil {
		q.Set("fields", strings.Join(fields, ","))
	}
	var row map[string]any
	status, err := c.do(ctx, "find", http.MethodGet, c.apiURL(recordPath(recordType, id), q), nil, &row)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec := toRecord(recordType, row)
	if rec.ID == "" {
		rec.ID = id
	}
	return &rec, nil
}

type createResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

func (c *Client) Create(ctx context.Context, recordType string, attrs reconcile.Attributes) (string, error) {
	var out createResponse
	status, err := c.do(ctx, "create", http.MethodPost, c.apiURL("/sobjects/"+url.PathEscape(recordType), nil), attrs, &out)
	if err != nil {
		return "", err
	}
	if !out.Success || out.ID == "" {
		return "", &APIError{Status: status, Message: "create returned no id"}
	}
	return out.ID, nil
}

func (c *Client) Update(ctx context.Context, recordType, id string, attrs reconcile.Attributes) error {
	_, err := c.do(ctx, "update", http.MethodPatch, c.apiURL(recordPath(recordType, id), nil), attrs, nil)
	return err
}

// Delete removes a record. Deleting an absent record succeeds.
func (c *Client) Delete(ctx context.Context, recordType, id string) error {
	status, err := c.do(ctx, "delete", http.MethodDelete, c.apiURL(recordPath(recordType, id), nil), nil, nil)
	if status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) apiURL(path string, q url.Values) string {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/services/data/v" + c.cfg.APIVersion + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// do performs one throttled call and decodes a JSON response into out.
// It returns the response status, or zero when no response was received.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveRemoteCall(op, "error", time.Since(started))
		return 0, fmt.Errorf("crm %s failed: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.ObserveRemoteCall(op, statusClass(resp.StatusCode), time.Since(started))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp.StatusCode, data)
		c.logger.Debug("CRM call failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code),
		)
		return resp.StatusCode, apiErr
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

func recordPath(recordType, id string) string {
	return "/sobjects/" + url.PathEscape(recordType) + "/" + url.PathEscape(id)
}

func toRecord(recordType string, row map[string]any) reconcile.RemoteRecord {
	attrs := make(reconcile.Attributes, len(row))
	for k, v := range row {
		if k == metaKey {
			continue
		}
		attrs[k] = v
	}
	id, _ := attrs[reconcile.DefaultIDField].(string)
	return reconcile.RemoteRecord{Type: recordType, ID: id, Attributes: attrs}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
