// Package api fetches chat history over REST to hydrate local state before
// the realtime channel takes over.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"

	"github.com/tinyland-inc/proxima/pkg/logger"
	"github.com/tinyland-inc/proxima/pkg/model"
)

var ErrNotFound = errors.New("not found")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

type Client struct {
	rest *resty.Client
}

// NewClient builds a client for baseURL. With tokens set, every request
// carries the bearer token. A zero timeout leaves requests unbounded.
func NewClient(baseURL string, tokens oauth2.TokenSource, timeout time.Duration) *Client {
	hc := &http.Client{}
	if tokens != nil {
		hc = oauth2.NewClient(context.Background(), tokens)
	}
	hc.Timeout = timeout

	rest := resty.NewWithClient(hc).
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	return &Client{rest: rest}
}

func (c *Client) do(ctx context.Context, method, path string, req *resty.Request) error {
	start := time.Now()
	resp, err := req.SetContext(ctx).Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	logger.DebugCF("api", "Request complete", map[string]any{
		"method":   method,
		"path":     resp.Request.URL,
		"status":   resp.StatusCode(),
		"duration": time.Since(start).String(),
	})
	if resp.IsError() {
		return &StatusError{Method: method, Path: resp.Request.URL, Code: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// GetUserChats lists every chat userID takes part in.
func (c *Client) GetUserChats(ctx context.Context, userID string) ([]model.Chat, error) {
	var chats []model.Chat
	req := c.rest.R().SetPathParam("userId", userID).SetResult(&chats)
	if err := c.do(ctx, http.MethodGet, "/chats/user/{userId}", req); err != nil {
		return nil, err
	}
	return chats, nil
}

func (c *Client) GetChatByMatchID(ctx context.Context, matchID string) (model.Chat, error) {
	var chat model.Chat
	req := c.rest.R().SetPathParam("matchId", matchID).SetResult(&chat)
	if err := c.do(ctx, http.MethodGet, "/chats/match/{matchId}", req); err != nil {
		return model.Chat{}, err
	}
	return chat, nil
}

// MarkRead marks chatID's messages from others than userID as read.
func (c *Client) MarkRead(ctx context.Context, chatID, userID string) error {
	req := c.rest.R().
		SetPathParam("chatId", chatID).
		SetBody(map[string]string{"userId": userID})
	return c.do(ctx, http.MethodPut, "/chats/{chatId}/read", req)
}
