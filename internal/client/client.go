package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/handler/dto"
	"github.com/mtlprog/teamtask/internal/live"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap maps the status onto the domain error categories.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return domain.ErrValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrAuthorization
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusServiceUnavailable:
		return domain.ErrTransientStore
	default:
		return nil
	}
}

// Client talks to the notification API as one member.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Client. httpClient must not have a Timeout if Stream is
// used; nil means a plain http.Client.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var errResp dto.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != "" {
		apiErr.Code = errResp.Error.Code
		apiErr.Message = errResp.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// ListNotifications fetches the member's notifications, newest first. The
// server scopes the list to the token's member, so RecipientID is left empty.
func (c *Client) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	var resp dto.NotificationsListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Notification, len(resp.Notifications))
	for i, n := range resp.Notifications {
		out[i] = dto.ToDomainNotification(n, "")
	}
	return out, nil
}

// MarkAllRead marks every notification of the member as read.
func (c *Client) MarkAllRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/notifications/read", nil)
}

// MarkRead marks a single notification as read.
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/notifications/"+url.PathEscape(notificationID)+"/read", nil)
}

// Stream opens the live stream. Signals arrive on the returned channel,
// which is closed when the connection ends or ctx is done. Stream returns
// once the server has confirmed the subscription.
func (c *Client) Stream(ctx context.Context) (<-chan live.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/notifications/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("build stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	reader := bufio.NewReader(resp.Body)
	if err := awaitConnected(reader); err != nil {
		resp.Body.Close()
		return nil, err
	}

	signals := make(chan live.Signal, 1)
	go func() {
		defer close(signals)
		defer resp.Body.Close()

		if err := readEvents(ctx, reader, signals); err != nil && ctx.Err() == nil {
			slog.Warn("notification stream ended", "error", err)
		}
	}()
	return signals, nil
}

// awaitConnected consumes the stream up to the first blank line.
func awaitConnected(r *bufio.Reader) error {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read stream preamble: %w", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			return nil
		}
	}
}

// readEvents parses Server-Sent Events frames. Only the event name is used;
// comments and data lines are ignored.
func readEvents(ctx context.Context, r *bufio.Reader, signals chan<- live.Signal) error {
	event := ""
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if event == "" {
				continue
			}
			select {
			case signals <- live.Signal(event):
			case <-ctx.Done():
				return ctx.Err()
			}
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		}
	}
}
