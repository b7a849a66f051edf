package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	// apiKeySeparator splits the credentials entry "API_KEY : <uuid>".
	apiKeySeparator = " : "

	// maxErrorBodyBytes limits how much of an error response body is kept
	// for diagnostics.
	maxErrorBodyBytes = 1024

	// tokenRedactPrefix is how many characters of a bearer token stay
	// visible in logs.
	tokenRedactPrefix = 6
)

// Doer is the abstract HTTP capability consumed by the client.
// *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the minimal logging surface needed by this package.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Client calls the Haven cloud API.
//
// Thread Safety: all methods are safe for concurrent use; the client keeps
// no per-call state.
type Client struct {
	baseURL string
	http    Doer
	logger  Logger
}

// NewClient creates a cloud API client.
//
// Parameters:
//   - baseURL: API origin, e.g. "https://api.havenlighting.com"
//   - doer: HTTP capability (typically an *http.Client with a timeout)
//   - logger: Logger for request/response observability (required)
//
// Returns:
//   - *Client: Ready client
//   - error: If any dependency is missing
func NewClient(baseURL string, doer Doer, logger Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("cloud: base URL is required")
	}
	if doer == nil {
		return nil, fmt.Errorf("cloud: http client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("cloud: logger is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    doer,
		logger:  logger,
	}, nil
}

// GetAPIKey fetches the per-device API key for a controller.
//
// The endpoint answers 200 with a one-element JSON array whose single
// string is "API_KEY : <uuid>". Classification:
//   - empty array: ErrNotRegistered
//   - element without separator: ErrProtocol
//   - 401: ErrAuthExpired, 404: ErrNotFound
//   - other non-200: *ServerError
//
// Parameters:
//   - ctx: Context for cancellation/timeout
//   - mac: Normalized device MAC (uppercase, no separators)
//   - controllerTypeID: Numeric controller type code
//   - bearer: Cloud bearer token
//
// Returns:
//   - string: The API key
//   - error: Classified failure
func (c *Client) GetAPIKey(ctx context.Context, mac string, controllerTypeID int, bearer string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/device/credentials/%s?controllerTypeId=%d",
		c.baseURL, url.PathEscape(mac), controllerTypeID)

	c.logger.Debug("cloud request",
		"method", http.MethodGet,
		"endpoint", endpoint,
		"bearer", redactToken(bearer),
	)

	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil, bearer)
	if err != nil {
		return "", err
	}

	if err := classifyStatus(status, body, http.StatusOK); err != nil {
		c.logger.Warn("cloud credentials call failed",
			"endpoint", endpoint, "status", status, "body", truncate(body))
		return "", err
	}

	var entries []string
	if err := json.Unmarshal(body, &entries); err != nil {
		return "", fmt.Errorf("%w: credentials body is not a string array: %w", ErrProtocol, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: mac %s", ErrNotRegistered, mac)
	}

	_, key, found := strings.Cut(entries[0], apiKeySeparator)
	if !found || key == "" {
		return "", fmt.Errorf("%w: credentials entry %q has no %q separator",
			ErrProtocol, entries[0], apiKeySeparator)
	}

	c.logger.Debug("cloud credentials ok", "mac", mac)
	return key, nil
}

// registrationRequest is the AddDeviceToLocation payload.
type registrationRequest struct {
	DeviceID   string `json:"deviceId"`
	LocationID int    `json:"locationId"`
}

// AddDeviceToLocation registers a device under a cloud location.
//
// 200/201 succeed. 409 (already registered) is treated as success, not an
// error: re-provisioning a device that already belongs to the location is
// routine. 401 is ErrAuthExpired; other statuses are *ServerError.
//
// Parameters:
//   - ctx: Context for cancellation/timeout
//   - mac: Normalized device MAC
//   - locationID: Numeric location id (resolved and validated upstream)
//   - bearer: Cloud bearer token
//
// Returns:
//   - error: nil on success (including 409), classified failure otherwise
func (c *Client) AddDeviceToLocation(ctx context.Context, mac string, locationID int, bearer string) error {
	endpoint := c.baseURL + "/api/v1/location/devices"

	payload, err := json.Marshal(registrationRequest{DeviceID: mac, LocationID: locationID})
	if err != nil {
		return fmt.Errorf("cloud: marshalling registration: %w", err)
	}

	c.logger.Debug("cloud request",
		"method", http.MethodPost,
		"endpoint", endpoint,
		"location_id", locationID,
		"bearer", redactToken(bearer),
	)

	status, body, err := c.do(ctx, http.MethodPost, endpoint, payload, bearer)
	if err != nil {
		return err
	}

	switch status {
	case http.StatusOK, http.StatusCreated:
		c.logger.Debug("cloud registration ok", "mac", mac, "location_id", locationID)
		return nil
	case http.StatusConflict:
		// Already registered under this location; success by decree.
		c.logger.Debug("device already registered", "mac", mac, "location_id", locationID)
		return nil
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: registering %s", ErrAuthExpired, mac)
	default:
		c.logger.Warn("cloud registration failed",
			"endpoint", endpoint, "status", status, "body", truncate(body))
		return &ServerError{Status: status, Body: truncate(body)}
	}
}

// do executes one HTTP exchange and returns status and body.
func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, bearer string) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("cloud: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("cloud: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read side already consumed

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("cloud: reading response: %w", err)
	}

	return resp.StatusCode, body, nil
}

// classifyStatus maps a status code to the error taxonomy, with ok as the
// single success status.
func classifyStatus(status int, body []byte, ok int) error {
	switch status {
	case ok:
		return nil
	case http.StatusUnauthorized:
		return ErrAuthExpired
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return &ServerError{Status: status, Body: truncate(body)}
	}
}

// redactToken shortens a bearer token to a recognisable prefix for logs.
func redactToken(token string) string {
	if len(token) <= tokenRedactPrefix {
		return "…"
	}
	return token[:tokenRedactPrefix] + "…"
}

// truncate bounds a body copy kept for diagnostics.
func truncate(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		return string(body[:maxErrorBodyBytes]) + "…"
	}
	return string(body)
}
