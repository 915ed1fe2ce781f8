// Package remote wraps interactions with the external inventory system's API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config groups the static credentials and identifiers for the remote API.
type Config struct {
	BaseURL         string
	Token           string
	CompanyID       int64
	DefaultMasterID int64
}

// Client wraps interactions with the remote inventory API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	validate   *validator.Validate
}

// NewClient constructs a new client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		validate: validator.New(),
	}
}

// Configured reports whether the client carries usable credentials.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.BaseURL != "" && c.cfg.Token != "" && c.cfg.CompanyID > 0
}

// FetchGoods retrieves one page of goods. Pages are 1-based; a page shorter
// than pageSize marks the end of the listing.
func (c *Client) FetchGoods(ctx context.Context, page, pageSize int) ([]Good, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("remote: page and page size must be positive")
	}
	url := fmt.Sprintf("%s/api/v1/companies/%d/goods?page=%d&limit=%d", c.cfg.BaseURL, c.cfg.CompanyID, page, pageSize)
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	var envelope goodsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: goods page %d: %v", ErrBadResponse, page, err)
	}
	return envelope.Response, nil
}

// PostDocument creates an arrival or departure header and returns its id.
func (c *Client) PostDocument(ctx context.Context, input DocumentInput) (Document, error) {
	if err := c.validate.Struct(input); err != nil {
		return Document{}, fmt.Errorf("remote: invalid document input: %w", err)
	}
	payload := documentPayload{
		TypeID:     input.TypeID,
		Comment:    input.Comment,
		StorageID:  input.StorageID,
		CreateDate: formatCreateDate(input.CreateDate, input.Timezone),
		Timezone:   TimezoneOffset(input.Timezone, input.CreateDate),
	}
	url := fmt.Sprintf("%s/api/v1/companies/%d/documents", c.cfg.BaseURL, c.cfg.CompanyID)
	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return Document{}, err
	}
	var envelope documentEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Response == nil || envelope.Response.ID == 0 {
		return Document{}, fmt.Errorf("%w: document create", ErrBadResponse)
	}
	return *envelope.Response, nil
}

// PostOperation posts one per-good quantity/cost line against a document.
// The operation needs a staff/master identity; when the input carries none
// the configured default is used, and without either the call fails before
// touching the network.
func (c *Client) PostOperation(ctx context.Context, documentID int64, input OperationInput) error {
	if documentID <= 0 {
		return fmt.Errorf("remote: document id must be positive")
	}
	if input.MasterID == 0 {
		if c.cfg.DefaultMasterID == 0 {
			return ErrNoMasterID
		}
		input.MasterID = c.cfg.DefaultMasterID
	}
	if err := c.validate.Struct(input); err != nil {
		return fmt.Errorf("remote: invalid operation input: %w", err)
	}
	url := fmt.Sprintf("%s/api/v1/companies/%d/documents/%d/operations", c.cfg.BaseURL, c.cfg.CompanyID, documentID)
	body, err := c.do(ctx, http.MethodPost, url, input)
	if err != nil {
		return err
	}
	var envelope operationEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || !envelope.Response {
		return fmt.Errorf("%w: operation for good %d", ErrBadResponse, input.GoodID)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("remote: encode payload: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", method, url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Status: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}
