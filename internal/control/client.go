// Package control talks to the device management backend on behalf of the
// console: control updates, door and lock commands, sharing and device links.
package control

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"alert_console/internal/config"
	"alert_console/internal/logger"
	"alert_console/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

var (
	ErrBackendDisabled    = errors.New("device backend is not configured")
	ErrBackendUnavailable = errors.New("device backend unavailable")
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Client is the backend REST client. Calls go through a circuit breaker that
// opens after a run of transport failures or 5xx answers.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
	enabled bool
}

func NewClient(cfg config.BackendConfig, log *logger.Logger) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryableRead)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "device-backend",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < http500
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warnw("backend_breaker_state", "name", name, "from", from.String(), "to", to.String())
			}
		},
	})

	return &Client{http: rc, breaker: breaker, log: log, enabled: cfg.BaseURL != ""}
}

const http500 = http.StatusInternalServerError

// retryableRead retries only idempotent reads, and only on transport errors or 5xx.
func retryableRead(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
		return false
	}
	return err != nil || resp.StatusCode() >= http500
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if !c.enabled {
		return ErrBackendDisabled
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req := c.http.R().SetContext(ctx).SetError(&errorBody{})
		if body != nil {
			req.SetBody(body)
		}
		if result != nil {
			req.SetResult(result)
		}
		resp, err := req.Execute(method, path)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			apiErr := &APIError{Status: resp.StatusCode()}
			if eb, ok := resp.Error().(*errorBody); ok {
				apiErr.Message = eb.Error
				if apiErr.Message == "" {
					apiErr.Message = eb.Message
				}
			}
			return nil, apiErr
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if err != nil {
		if c.log != nil {
			c.log.Warnw("backend_call_failed", "method", method, "path", path, "err", err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

func devicePath(deviceID string, parts ...string) string {
	p := "/devices/" + url.PathEscape(deviceID)
	for _, s := range parts {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// UpdateControl pushes the full set of control values for a device.
func (c *Client) UpdateControl(ctx context.Context, deviceID string, values map[string]any) error {
	return c.do(ctx, http.MethodPut, devicePath(deviceID, "controls"), map[string]any{"values": values}, nil)
}

func (c *Client) TogglePower(ctx context.Context, deviceID string) (models.PowerState, error) {
	var out models.PowerState
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "power"), nil, &out)
	return out, err
}

func (c *Client) ToggleDoor(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	var out models.DoorStatus
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "door"), nil, &out)
	return out, err
}

func (c *Client) DoorStatus(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	var out models.DoorStatus
	err := c.do(ctx, http.MethodGet, devicePath(deviceID, "door"), nil, &out)
	return out, err
}

func (c *Client) Lock(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	var out models.DoorStatus
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "lock"), nil, &out)
	return out, err
}

func (c *Client) Unlock(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	var out models.DoorStatus
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "unlock"), nil, &out)
	return out, err
}

// CreateShareTicket asks the backend for a ticket granting permission on the device.
func (c *Client) CreateShareTicket(ctx context.Context, deviceID, permission string) (models.ShareTicket, error) {
	var out models.ShareTicket
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "share"), map[string]string{"permission": permission}, &out)
	return out, err
}

func (c *Client) ListSharedUsers(ctx context.Context, deviceID string) ([]models.SharedUser, error) {
	var out []models.SharedUser
	err := c.do(ctx, http.MethodGet, devicePath(deviceID, "shared-users"), nil, &out)
	return out, err
}

func (c *Client) RemoveSharedUser(ctx context.Context, deviceID, userID string) error {
	return c.do(ctx, http.MethodDelete, devicePath(deviceID, "shared-users", userID), nil, nil)
}

func (c *Client) ListLinks(ctx context.Context, deviceID string) ([]models.DeviceLink, error) {
	var out []models.DeviceLink
	err := c.do(ctx, http.MethodGet, devicePath(deviceID, "links"), nil, &out)
	return out, err
}

func (c *Client) CreateLink(ctx context.Context, deviceID string, link models.DeviceLink) (models.DeviceLink, error) {
	link.SourceDeviceID = deviceID
	var out models.DeviceLink
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "links"), link, &out)
	return out, err
}

func (c *Client) DeleteLink(ctx context.Context, deviceID, linkID string) error {
	return c.do(ctx, http.MethodDelete, devicePath(deviceID, "links", linkID), nil, nil)
}
