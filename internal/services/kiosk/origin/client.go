// Package origin is the thin HTTP client for the catalog REST surface.
package origin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppoulin/vitrine/internal/catalog"
)

// defaultTimeout bounds each origin round trip.
const defaultTimeout = 15 * time.Second

// Client calls the catalog REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithToken attaches an admin session token to mutating requests.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// New creates a client for the origin at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("origin base url is required")
	}
	client := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SetToken replaces the session token used for mutating requests.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// apiEnvelope mirrors the origin's response shape.
type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// lastModifiedBody is the probe payload; LastModified is null for an empty
// collection.
type lastModifiedBody struct {
	LastModified *int64 `json:"lastModified"`
}

// Products fetches the full product collection.
func (c *Client) Products(ctx context.Context) ([]catalog.Product, error) {
	return do[[]catalog.Product](ctx, c, http.MethodGet, "/api/products", nil)
}

// ProductsLastModified probes the newest product change. ok is false when
// the origin reports an empty collection.
func (c *Client) ProductsLastModified(ctx context.Context) (time.Time, bool, error) {
	return c.lastModified(ctx, "/api/products/last-modified")
}

// CreateProduct creates a product through the admin surface.
func (c *Client) CreateProduct(ctx context.Context, input catalog.CreateProductInput) (catalog.Product, error) {
	return do[catalog.Product](ctx, c, http.MethodPost, "/api/products", productBody(input))
}

// UpdateProduct replaces a product's fields.
func (c *Client) UpdateProduct(ctx context.Context, product catalog.Product) (catalog.Product, error) {
	return do[catalog.Product](ctx, c, http.MethodPut, "/api/products/"+product.ID, productBody(catalog.CreateProductInput{
		Name:        product.Name,
		Description: product.Description,
		Price:       product.Price,
		Image:       product.Image,
		Category:    product.Category,
		Featured:    product.Featured,
		Order:       product.Order,
	}))
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, productID string) error {
	_, err := do[map[string]string](ctx, c, http.MethodDelete, "/api/products/"+productID, nil)
	return err
}

// WeeklyPDFs fetches the flyer index.
func (c *Client) WeeklyPDFs(ctx context.Context) ([]catalog.WeeklyPDF, error) {
	return do[[]catalog.WeeklyPDF](ctx, c, http.MethodGet, "/api/pdfs", nil)
}

// WeeklyPDFsLastModified probes the newest flyer change.
func (c *Client) WeeklyPDFsLastModified(ctx context.Context) (time.Time, bool, error) {
	return c.lastModified(ctx, "/api/pdfs/last-modified")
}

// CreateWeeklyPDF registers a flyer through the admin surface.
func (c *Client) CreateWeeklyPDF(ctx context.Context, input catalog.CreateWeeklyPDFInput) (catalog.WeeklyPDF, error) {
	return do[catalog.WeeklyPDF](ctx, c, http.MethodPost, "/api/pdfs", map[string]any{
		"name": input.Name,
		"url":  input.URL,
		"week": input.Week,
		"year": input.Year,
	})
}

// DeleteWeeklyPDF removes a flyer.
func (c *Client) DeleteWeeklyPDF(ctx context.Context, pdfID string) error {
	_, err := do[map[string]string](ctx, c, http.MethodDelete, "/api/pdfs/"+pdfID, nil)
	return err
}

// Login exchanges admin credentials for a session token and stores it on
// the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := do[struct {
		Token string `json:"token"`
	}](ctx, c, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	c.SetToken(resp.Token)
	return resp.Token, nil
}

// CheckSession verifies the stored session token against the origin.
func (c *Client) CheckSession(ctx context.Context) (string, error) {
	resp, err := do[struct {
		Subject string `json:"subject"`
	}](ctx, c, http.MethodGet, "/api/auth/session", nil)
	if err != nil {
		return "", err
	}
	return resp.Subject, nil
}

func (c *Client) lastModified(ctx context.Context, path string) (time.Time, bool, error) {
	body, err := do[lastModifiedBody](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return time.Time{}, false, err
	}
	if body.LastModified == nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(*body.LastModified).UTC(), true, nil
}

func productBody(input catalog.CreateProductInput) map[string]any {
	return map[string]any{
		"name":        input.Name,
		"description": input.Description,
		"price":       input.Price,
		"image":       input.Image,
		"category":    string(input.Category),
		"featured":    input.Featured,
		"order":       input.Order,
	}
}

func do[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var zero T
	if c == nil || c.httpClient == nil {
		return zero, fmt.Errorf("origin client is not configured")
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return zero, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return zero, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", path, err)
	}
	if !envelope.Success {
		message := envelope.Error
		if message == "" {
			message = resp.Status
		}
		return zero, fmt.Errorf("%s %s: %s", method, path, message)
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return zero, nil
	}
	var decoded T
	if err := json.Unmarshal(envelope.Data, &decoded); err != nil {
		return zero, fmt.Errorf("decode %s payload: %w", path, err)
	}
	return decoded, nil
}
