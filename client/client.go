package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clientlookup/brand"
	"clientlookup/lookup"
)

// Client calls the lookup service's JSON API. It satisfies lookup.Resolver,
// so a remote service can back a local Controller.
type Client struct {
	baseURL string
	http    *http.Client
}

// APIError is a non-success response from the API. It unwraps to the
// sentinel matching its kind so lookup.KindOf classifies it like a local
// failure.
type APIError struct {
	Status  int
	Kind    lookup.ErrorKind
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("lookup api: status %d", e.Status)
	}
	return fmt.Sprintf("lookup api: %s (status %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Kind {
	case lookup.KindNetwork:
		return lookup.ErrNetwork
	case lookup.KindMarkerNotFound:
		return brand.ErrMarkerNotFound
	case lookup.KindAttributeEmpty:
		return brand.ErrAttributeEmpty
	case lookup.KindDecode:
		return brand.ErrDecode
	default:
		return nil
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: lookup.DefaultTimeout + 5*time.Second}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: httpClient}
}

// Lookup fetches the details of one client ID.
func (c *Client) Lookup(ctx context.Context, clientID string) (brand.Details, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return brand.Details{}, errors.New("client id required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/clients/"+url.PathEscape(clientID), nil)
	if err != nil {
		return brand.Details{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return brand.Details{}, fmt.Errorf("%w: call lookup api: %v", lookup.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode}
		var body struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
			apiErr.Message = body.Error
			apiErr.Kind = lookup.ErrorKind(body.Kind)
		}
		return brand.Details{}, apiErr
	}

	var details brand.Details
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return brand.Details{}, fmt.Errorf("decode lookup response: %w", err)
	}
	return details, nil
}

// Resolve implements lookup.Resolver.
func (c *Client) Resolve(ctx context.Context, clientID string) (brand.Details, error) {
	return c.Lookup(ctx, clientID)
}
