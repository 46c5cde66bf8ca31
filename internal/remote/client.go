// Package remote talks to the marketplace backend API and classifies
// its failures so callers can decide between retrying and giving up.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gearhaus/market-runtime/internal/config"
	"github.com/gearhaus/market-runtime/internal/markerr"
	"github.com/gearhaus/market-runtime/internal/syncq"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Vehicle struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        int    `json:"year"`
	PriceCents  int64  `json:"price_cents"`
	MileageKM   int64  `json:"mileage_km"`
	SellerID    string `json:"seller_id"`
	Status      string `json:"status"`
	Description string `json:"description"`
	City        string `json:"city"`
}

type ListVehiclesResponse struct {
	Items []Vehicle `json:"items"`
	Count int       `json:"count"`
}

type Notification struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	Read          bool   `json:"read"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type ListNotificationsResponse struct {
	Items []Notification `json:"items"`
	Count int            `json:"count"`
}

type Conversation struct {
	ID          string `json:"id"`
	VehicleID   string `json:"vehicle_id"`
	BuyerID     string `json:"buyer_id"`
	SellerID    string `json:"seller_id"`
	LastMessage string `json:"last_message"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Body           string `json:"body"`
	SentAtUnix     int64  `json:"sent_at_unix"`
	Delivered      bool   `json:"delivered"`
}

func New(cfg config.Config) *Client {
	timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
	if timeout < time.Second {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		token:   strings.TrimSpace(cfg.APIToken),
		http:    &http.Client{Timeout: timeout},
	}
}

// Apply implements the sync queue's writer by dispatching on the task
// kind. The task id travels as the idempotency key, so a retry of the
// same task is a no-op on the backend.
func (c *Client) Apply(ctx context.Context, task syncq.Task) error {
	switch task.Kind {
	case syncq.KindConversationSave:
		return c.postJSON(ctx, "/api/v1/conversations", task.Payload, task.ID, nil)
	case syncq.KindMessageAppend:
		return c.postJSON(ctx, "/api/v1/messages", task.Payload, task.ID, nil)
	case syncq.KindNotificationSave:
		return c.postJSON(ctx, "/api/v1/notifications", task.Payload, task.ID, nil)
	case syncq.KindVehicleUpdate:
		return c.postJSON(ctx, "/api/v1/vehicles/update", task.Payload, task.ID, nil)
	}
	return fmt.Errorf("%w: unknown task kind %q", markerr.ErrValidation, task.Kind)
}

func (c *Client) SaveConversation(ctx context.Context, conversation Conversation) error {
	requestBody, err := json.Marshal(conversation)
	if err != nil {
		return err
	}
	idempotencyKey := syncq.TaskID(syncq.KindConversationSave, conversation.ID)
	return c.postJSON(ctx, "/api/v1/conversations", requestBody, idempotencyKey, nil)
}

func (c *Client) AppendMessage(ctx context.Context, message Message) error {
	requestBody, err := json.Marshal(message)
	if err != nil {
		return err
	}
	idempotencyKey := syncq.TaskID(syncq.KindMessageAppend, message.ID)
	return c.postJSON(ctx, "/api/v1/messages", requestBody, idempotencyKey, nil)
}

func (c *Client) SaveNotification(ctx context.Context, notification Notification) error {
	requestBody, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	idempotencyKey := syncq.TaskID(syncq.KindNotificationSave, notification.ID)
	return c.postJSON(ctx, "/api/v1/notifications", requestBody, idempotencyKey, nil)
}

func (c *Client) UpdateVehicle(ctx context.Context, vehicleID string, fields map[string]any) error {
	vehicleID = strings.TrimSpace(vehicleID)
	if vehicleID == "" {
		return fmt.Errorf("%w: vehicle id is required", markerr.ErrValidation)
	}
	requestBody, err := json.Marshal(map[string]any{
		"id":     vehicleID,
		"fields": fields,
	})
	if err != nil {
		return err
	}
	idempotencyKey := syncq.TaskID(syncq.KindVehicleUpdate, vehicleID)
	return c.postJSON(ctx, "/api/v1/vehicles/update", requestBody, idempotencyKey, nil)
}

func (c *Client) ListVehicles(ctx context.Context, city string, limit int) ([]Vehicle, error) {
	query := url.Values{}
	if strings.TrimSpace(city) != "" {
		query.Set("city", strings.TrimSpace(city))
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	endpoint := c.baseURL + "/api/v1/vehicles"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var response ListVehiclesResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", markerr.ErrValidation)
	}
	query := url.Values{}
	query.Set("user_id", userID)
	if unreadOnly {
		query.Set("unread_only", "true")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/notifications?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var response ListNotificationsResponse
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(idempotencyKey) != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", markerr.ErrTransient, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return classifyStatus(res.StatusCode, apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classifyStatus(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", markerr.ErrAuthExpired, message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", markerr.ErrNotFound, message)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", markerr.ErrValidation, message)
	case status >= http.StatusInternalServerError || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", markerr.ErrTransient, message)
	}
	return fmt.Errorf("unexpected status %d: %s", status, message)
}
