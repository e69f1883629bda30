package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dealhub/internal/models"
)

// APIError is a non-2xx response of the API.
type APIError struct {
	Status  int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("dealhub: %d %s: %s", e.Status, e.Message, e.Detail)
	}
	return fmt.Sprintf("dealhub: %d %s", e.Status, e.Message)
}

// Client calls the REST API and authenticates with the session token.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// New creates a Client for baseURL, e.g. "http://localhost:3001/api".
// A nil httpClient uses a client with a 30 second timeout.
func New(baseURL string, session *Session, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		session: session,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session { return c.session }

// Login authenticates and stores the issued token in the session.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var out struct {
		Token string `json:"token"`
	}
	body := models.Credentials{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return err
	}
	return c.session.Save(out.Token)
}

// Register creates an account, stores its token and returns the new id.
func (c *Client) Register(ctx context.Context, email, username, password string) (uint, error) {
	var out struct {
		ID    uint   `json:"id"`
		Token string `json:"token"`
	}
	body := models.UserCreate{Email: email, Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/users", body, &out); err != nil {
		return 0, err
	}
	return out.ID, c.session.Save(out.Token)
}

// UpdateProfile changes the session user's account and stores the re-issued token.
func (c *Client) UpdateProfile(ctx context.Context, upd models.UserUpdate) error {
	claims := c.session.Claims()
	if claims == nil {
		return fmt.Errorf("dealhub: not logged in")
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPut, "/users/"+strconv.FormatUint(uint64(claims.ID), 10), upd, &out); err != nil {
		return err
	}
	return c.session.Save(out.Token)
}

// ListDeals fetches one page of deals. Zero page or pageSize use the server defaults.
func (c *Client) ListDeals(ctx context.Context, page, pageSize int, name string) (*models.DealPage, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	if name != "" {
		q.Set("name", name)
	}
	path := "/deals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out models.DealPage
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDeal fetches a deal by id.
func (c *Client) GetDeal(ctx context.Context, id uint) (*models.Deal, error) {
	var out models.Deal
	if err := c.do(ctx, http.MethodGet, dealPath(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDeal creates a deal owned by the session user and returns its id.
func (c *Client) CreateDeal(ctx context.Context, in models.DealInput) (uint, error) {
	var out struct {
		ID uint `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/deals", in, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// UpdateDeal writes the non-nil fields of in and returns the updated deal.
func (c *Client) UpdateDeal(ctx context.Context, id uint, in models.DealInput) (*models.Deal, error) {
	var out struct {
		Deal models.Deal `json:"deal"`
	}
	if err := c.do(ctx, http.MethodPut, dealPath(id), in, &out); err != nil {
		return nil, err
	}
	return &out.Deal, nil
}

// DeleteDeal deletes a deal.
func (c *Client) DeleteDeal(ctx context.Context, id uint) error {
	return c.do(ctx, http.MethodDelete, dealPath(id), nil, nil)
}

func dealPath(id uint) string {
	return "/deals/" + strconv.FormatUint(uint64(id), 10)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("dealhub: failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("dealhub: failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dealhub: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			if payload.Message != "" {
				apiErr.Message = payload.Message
			}
			apiErr.Detail = payload.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("dealhub: failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
