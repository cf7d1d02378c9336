// Package airtable is a minimal REST client for the Airtable API,
// covering the list/create/update/delete operations the reservation
// service needs. Requests are paced with a client-side rate limiter
// (Airtable enforces 5 requests per second per base) and list reads can
// be served from an optional Redis read-through cache.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.airtable.com/v0"

// Record is one Airtable record: an opaque id plus a loose field map.
// The store package normalizes these into typed entities; nothing above
// it should touch the raw map.
type Record struct {
	ID          string         `json:"id"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// ListParams narrows a list call.
type ListParams struct {
	FilterByFormula string
	View            string
	Fields          []string
	PageSize        int
	MaxRecords      int
}

// StatusError is a non-2xx reply from Airtable.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("airtable: http %d: %s", e.StatusCode, e.Body)
}

// Client talks to one Airtable base.
type Client struct {
	baseURL    string
	token      string
	baseID     string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// New constructs a client for the given base. The limiter tracks
// Airtable's documented 5 req/s per-base ceiling.
func New(token, baseID string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		baseID:     baseID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
}

// WithBaseURL overrides the API endpoint. Tests point this at a local
// httptest server.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// UseRedisCache configures optional Redis caching for list reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
}

// List fetches one page of records.
func (c *Client) List(ctx context.Context, table string, params ListParams) ([]Record, string, error) {
	return c.listPage(ctx, table, params, "")
}

// ListAll follows the offset cursor until every matching record has been
// fetched.
func (c *Client) ListAll(ctx context.Context, table string, params ListParams) ([]Record, error) {
	cacheKey := c.listCacheKey(table, params)
	var cached []Record
	if c.readCache(ctx, cacheKey, &cached) {
		return cached, nil
	}

	var all []Record
	offset := ""
	for {
		records, next, err := c.listPage(ctx, table, params, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if next == "" {
			break
		}
		offset = next
	}

	c.writeCache(ctx, cacheKey, all)
	return all, nil
}

// FindOne returns the first record matching the formula, or nil.
func (c *Client) FindOne(ctx context.Context, table, formula string) (*Record, error) {
	records, _, err := c.List(ctx, table, ListParams{FilterByFormula: formula, PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Get fetches a single record by its id.
func (c *Client) Get(ctx context.Context, table, recordID string) (*Record, error) {
	endpoint := c.tableURL(table) + "/" + url.PathEscape(recordID)
	var rec Record
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create writes a new record and returns it with the assigned id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	body := map[string]any{"fields": fields}
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update patches the given fields on an existing record.
func (c *Client) Update(ctx context.Context, table, recordID string, fields map[string]any) (*Record, error) {
	endpoint := c.tableURL(table) + "/" + url.PathEscape(recordID)
	body := map[string]any{"fields": fields}
	var rec Record
	if err := c.do(ctx, http.MethodPatch, endpoint, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, table, recordID string) error {
	endpoint := c.tableURL(table) + "/" + url.PathEscape(recordID)
	return c.do(ctx, http.MethodDelete, endpoint, nil, nil)
}

func (c *Client) listPage(ctx context.Context, table string, params ListParams, offset string) ([]Record, string, error) {
	q := url.Values{}
	if params.FilterByFormula != "" {
		q.Set("filterByFormula", params.FilterByFormula)
	}
	if params.View != "" {
		q.Set("view", params.View)
	}
	for _, f := range params.Fields {
		q.Add("fields[]", f)
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if params.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(params.MaxRecords))
	}
	if offset != "" {
		q.Set("offset", offset)
	}

	endpoint := c.tableURL(table) + "?" + q.Encode()
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Records, resp.Offset, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) listCacheKey(table string, params ListParams) string {
	return fmt.Sprintf("airtable:%s:%s:%s:%s", table, params.View, params.FilterByFormula, params.Fields)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}
