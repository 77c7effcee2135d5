package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/nandalalm/Fixeify-sub002/internal/entity"
	"github.com/nandalalm/Fixeify-sub002/internal/transport"

	"github.com/pkg/errors"
)

// Client implements transport.Transport against the Fixeify REST API.
type Client struct {
	baseUrl    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseUrl string, token string) *Client {
	return &Client{
		baseUrl:    baseUrl,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		token:      token,
	}
}

// SetToken swaps the bearer token after a credential refresh.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// envelope is the response wrapper every endpoint uses.
type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	u := c.baseUrl + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.bearer())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Message != "" {
			return errors.Errorf("%s %s: %s (status %d)", method, path, env.Message, resp.StatusCode)
		}
		return errors.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "%s %s: decode response", method, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Wrapf(err, "%s %s: decode data", method, path)
	}
	return nil
}

var ErrNotFound = errors.New("not found")

func (c *Client) FetchConversations(ctx context.Context, actorId string, role entity.Role) ([]entity.Conversation, error) {
	q := url.Values{}
	q.Set("actorId", actorId)
	q.Set("role", string(role))

	var conversations []entity.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/chats", q, nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (c *Client) FetchExistingConversation(ctx context.Context, actorId, otherId string, role entity.Role) (*entity.Conversation, error) {
	q := url.Values{}
	q.Set("actorId", actorId)
	q.Set("otherId", otherId)
	q.Set("role", string(role))

	var conversation entity.Conversation
	err := c.do(ctx, http.MethodGet, "/api/chats/existing", q, nil, &conversation)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (c *Client) CreateConversation(ctx context.Context, actorId, otherId string, role entity.Role) (entity.Conversation, error) {
	body := map[string]string{
		"actorId": actorId,
		"otherId": otherId,
		"role":    string(role),
	}

	var conversation entity.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/chats", nil, body, &conversation); err != nil {
		return entity.Conversation{}, err
	}
	return conversation, nil
}

func (c *Client) FetchMessages(ctx context.Context, chatId string, page, limit int, role entity.Role) (transport.MessagePage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("role", string(role))

	var result transport.MessagePage
	path := fmt.Sprintf("/api/chats/%s/messages", chatId)
	if err := c.do(ctx, http.MethodGet, path, q, nil, &result); err != nil {
		return transport.MessagePage{}, err
	}
	for i := range result.Messages {
		result.Messages[i].Normalize()
	}
	return result, nil
}

func (c *Client) SendMessage(ctx context.Context, input transport.SendMessageInput) (entity.Message, error) {
	var message entity.Message
	path := fmt.Sprintf("/api/chats/%s/messages", input.ChatId)
	if err := c.do(ctx, http.MethodPost, path, nil, input, &message); err != nil {
		return entity.Message{}, err
	}
	message.Normalize()
	return message, nil
}

func (c *Client) MarkMessagesRead(ctx context.Context, chatId, actorId string, role entity.Role) error {
	body := map[string]string{
		"actorId": actorId,
		"role":    string(role),
	}
	path := fmt.Sprintf("/api/chats/%s/read", chatId)
	return c.do(ctx, http.MethodPatch, path, nil, body, nil)
}

func (c *Client) FetchNotifications(ctx context.Context, view entity.NotificationView, actorId string, role entity.Role, page, limit int, filter transport.ReadFilter) (transport.NotificationPage, error) {
	q := url.Values{}
	q.Set("view", string(view))
	q.Set("actorId", actorId)
	q.Set("role", string(role))
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("filter", string(filter))

	var result transport.NotificationPage
	if err := c.do(ctx, http.MethodGet, "/api/notifications", q, nil, &result); err != nil {
		return transport.NotificationPage{}, err
	}
	return result, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	path := fmt.Sprintf("/api/notifications/%s/read", id)
	return c.do(ctx, http.MethodPatch, path, nil, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, view entity.NotificationView, actorId string, role entity.Role) error {
	q := url.Values{}
	q.Set("view", string(view))
	body := map[string]string{
		"actorId": actorId,
		"role":    string(role),
	}
	return c.do(ctx, http.MethodPatch, "/api/notifications/read-all", q, body, nil)
}
