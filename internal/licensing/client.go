package licensing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout bounds every remote call. Operations are invoked
// synchronously by the billing platform, so latency has to stay short.
const DefaultTimeout = 5 * time.Second

// Expected creation status differs between endpoint variants of the
// remote service: plain create answers 200, create-by-key during renewal
// answers 201. Both are configurable on the client.
const (
	DefaultCreateStatus   = http.StatusOK
	DefaultRecreateStatus = http.StatusCreated
)

// connectionHints maps probe status codes to remediation hints shown to
// the operator by the connectivity test.
var connectionHints = map[int]string{
	0:   "Check the connector log for a more detailed error.",
	401: "Authorization header either missing or not provided.",
	403: "Double check the API key configured as the server password.",
	404: "Result not found.",
	422: "Validation error.",
	500: "Panel errored, check panel logs.",
}

// ClientConfig carries everything needed to reach one tenant of the
// remote license service.
type ClientConfig struct {
	// BaseURL is the normalized scheme://host of the remote panel,
	// without a trailing slash.
	BaseURL string
	// TeamID selects the tenant; it becomes part of the path prefix.
	TeamID string
	// APIKey is sent as a bearer token on every call.
	APIKey string
	// Timeout bounds each call; DefaultTimeout when zero.
	Timeout time.Duration
	// CreateStatus / RecreateStatus override the expected creation
	// success codes when the target panel deviates from the defaults.
	CreateStatus   int
	RecreateStatus int
	// UserAgent identifies the connector to the remote service.
	UserAgent string
}

// Client is a typed façade over the remote license service REST API.
// Every method performs exactly one authenticated call (ListLicenses
// performs one per page), logs it, and returns a typed result. A network
// level failure surfaces as *APIError with StatusCode 0.
type Client struct {
	httpClient     *http.Client
	prefix         string
	apiKey         string
	userAgent      string
	createStatus   int
	recreateStatus int
	logger         *slog.Logger
	metrics        *Metrics
}

// NewClient builds a client for one tenant. The logger is required; pass
// the application logger, it gets a component attribute attached.
// Metrics may be nil.
func NewClient(cfg ClientConfig, logger *slog.Logger, metrics *Metrics) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	createStatus := cfg.CreateStatus
	if createStatus == 0 {
		createStatus = DefaultCreateStatus
	}
	recreateStatus := cfg.RecreateStatus
	if recreateStatus == 0 {
		recreateStatus = DefaultRecreateStatus
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "license-bridge"
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		prefix:         fmt.Sprintf("%s/api/v1/dev/teams/%s", cfg.BaseURL, cfg.TeamID),
		apiKey:         cfg.APIKey,
		userAgent:      userAgent,
		createStatus:   createStatus,
		recreateStatus: recreateStatus,
		logger:         logger.With(slog.String("component", "license_client")),
		metrics:        metrics,
	}
}

// apiEnvelope is the common response wrapper of the remote service.
type apiEnvelope struct {
	Success *bool           `json:"success,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type licensePage struct {
	Licenses    []LicenseRecord `json:"licenses"`
	HasNextPage bool            `json:"hasNextPage"`
}

// do performs one authenticated call and logs method, URL, request body,
// response body and any transport error. Logging never changes the
// outcome of the call.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) (int, apiEnvelope, error) {
	fullURL := c.prefix + endpoint
	start := time.Now()

	var reqBody []byte
	var reader io.Reader
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return 0, apiEnvelope{}, NewAPIError(0, fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return 0, apiEnvelope{}, NewAPIError(0, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logCall(ctx, method, fullURL, reqBody, 0, nil, err, time.Since(start))
		return 0, apiEnvelope{}, NewAPIError(0, err.Error())
	}
	defer resp.Body.Close()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		c.logCall(ctx, method, fullURL, reqBody, resp.StatusCode, nil, readErr, time.Since(start))
		return resp.StatusCode, apiEnvelope{}, NewAPIError(0, readErr.Error())
	}

	var env apiEnvelope
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &env); err != nil {
			// Keep the raw body as the message so a failed decode still
			// produces a diagnosable error result.
			env = apiEnvelope{Message: string(respBody)}
		}
	}

	c.logCall(ctx, method, fullURL, reqBody, resp.StatusCode, respBody, nil, time.Since(start))
	return resp.StatusCode, env, nil
}

func (c *Client) logCall(ctx context.Context, method, fullURL string, reqBody []byte, status int, respBody []byte, transportErr error, duration time.Duration) {
	attrs := []any{
		slog.String("method", method),
		slog.String("url", fullURL),
		slog.String("request_body", string(reqBody)),
		slog.Int("status", status),
		slog.String("response_body", string(respBody)),
		slog.Duration("duration", duration),
	}
	if transportErr != nil {
		attrs = append(attrs, slog.String("transport_error", transportErr.Error()))
		c.logger.ErrorContext(ctx, "remote call failed", attrs...)
	} else {
		c.logger.InfoContext(ctx, "remote call", attrs...)
	}
	c.metrics.RecordRemoteCall(ctx, method, status, duration)
}

// ListLicenses returns every license of the tenant, optionally filtered
// by customer and/or product, paginating transparently until the remote
// stops signalling a next page. An empty result set is not an error.
func (c *Client) ListLicenses(ctx context.Context, customerID, productID string) ([]LicenseRecord, error) {
	var all []LicenseRecord
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		if customerID != "" {
			query.Set("customerId", customerID)
		}
		if productID != "" {
			query.Set("productId", productID)
		}

		status, env, err := c.do(ctx, http.MethodGet, "/licenses?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusBadRequest {
			return nil, NewAPIError(status, env.Message)
		}

		var pageData licensePage
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &pageData); err != nil {
				return nil, NewAPIError(status, fmt.Sprintf("decode license page: %v", err))
			}
		}
		all = append(all, pageData.Licenses...)
		if !pageData.HasNextPage {
			return all, nil
		}
	}
}

// FindByServiceAndUsername scans the full license list for a record whose
// metadata carries both the given serviceid and username. List order is
// API order; the first match wins. Returns ErrLicenseNotFound when no
// record matches.
func (c *Client) FindByServiceAndUsername(ctx context.Context, serviceID, username string) (*LicenseRecord, error) {
	licenses, err := c.ListLicenses(ctx, "", "")
	if err != nil {
		return nil, err
	}
	for i := range licenses {
		var matchedUsername, matchedService bool
		for _, m := range licenses[i].Metadata {
			if m.Key == MetaUsername && m.Value == username {
				matchedUsername = true
			}
			if m.Key == MetaServiceID && m.Value == serviceID {
				matchedService = true
			}
		}
		if matchedUsername && matchedService {
			return &licenses[i], nil
		}
	}
	return nil, ErrLicenseNotFound
}

// FindByKey looks a license up by its formatted key. A transport failure
// surfaces as *APIError; any other non-2xx response or a record without
// an id means the license does not exist.
func (c *Client) FindByKey(ctx context.Context, licenseKey string) (*LicenseRecord, error) {
	status, env, err := c.do(ctx, http.MethodGet, "/licenses/key/"+url.PathEscape(licenseKey), nil)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, ErrLicenseNotFound
	}
	record, err := decodeRecord(env.Data)
	if err != nil || record.ID == "" {
		return nil, ErrLicenseNotFound
	}
	return record, nil
}

// GetLicense reads one license by id. Renew uses it to probe whether a
// previously located record still exists.
func (c *Client) GetLicense(ctx context.Context, id string) (*LicenseRecord, error) {
	status, env, err := c.do(ctx, http.MethodGet, "/licenses/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewAPIError(status, env.Message)
	}
	return decodeRecord(env.Data)
}

// CreateLicense creates a brand new license. The call fails unless the
// remote answers the configured creation success status.
func (c *Client) CreateLicense(ctx context.Context, payload CreateLicenseRequest) (*LicenseRecord, error) {
	return c.create(ctx, payload, c.createStatus)
}

// RecreateLicense re-creates a license under a caller-chosen key, the
// path Renew takes when the record no longer exists remotely. The keyed
// endpoint variant answers a different success status than plain create.
func (c *Client) RecreateLicense(ctx context.Context, payload UpdateLicenseRequest) (*LicenseRecord, error) {
	return c.create(ctx, payload, c.recreateStatus)
}

func (c *Client) create(ctx context.Context, payload any, expect int) (*LicenseRecord, error) {
	status, env, err := c.do(ctx, http.MethodPost, "/licenses", payload)
	if err != nil {
		return nil, err
	}
	if status != expect {
		return nil, NewAPIError(status, env.Message)
	}
	return decodeRecord(env.Data)
}

// UpdateLicense applies a partial update to the license with the given
// id. Callers must populate every preserved field from a fresh read.
func (c *Client) UpdateLicense(ctx context.Context, id string, payload UpdateLicenseRequest) (*LicenseRecord, error) {
	status, env, err := c.do(ctx, http.MethodPatch, "/licenses/"+url.PathEscape(id), payload)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, NewAPIError(status, env.Message)
	}
	return decodeRecord(env.Data)
}

// DeleteLicense destroys the license with the given id.
func (c *Client) DeleteLicense(ctx context.Context, id string) error {
	status, env, err := c.do(ctx, http.MethodDelete, "/licenses/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return NewAPIError(status, env.Message)
	}
	return nil
}

// TestConnection probes the licenses endpoint and translates a failure
// into an operator-facing hint.
func (c *Client) TestConnection(ctx context.Context) ConnectionStatus {
	status, _, err := c.do(ctx, http.MethodGet, "/licenses?page=1", nil)
	if err != nil {
		status = 0
	}
	if status == http.StatusOK {
		return ConnectionStatus{Success: true}
	}
	hint, ok := connectionHints[status]
	if !ok {
		hint = "None."
	}
	return ConnectionStatus{
		Success: false,
		Error:   fmt.Sprintf("Invalid status_code received: %d. Possible solutions: %s", status, hint),
	}
}

func decodeRecord(data json.RawMessage) (*LicenseRecord, error) {
	var record LicenseRecord
	if len(data) > 0 {
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, NewAPIError(0, fmt.Sprintf("decode license record: %v", err))
		}
	}
	return &record, nil
}
