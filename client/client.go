// Package client conversa com o gateway do lado do consumidor: login e a rota
// de demonstração /hello.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// maxBody limita quanto do corpo de /hello é lido.
const maxBody = 1 << 20

// ErrLoginFailed é devolvido quando /login não responde 2xx.
var ErrLoginFailed = errors.New("login failed")

type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Prefix é o mount_prefix do gateway (ex.: "/api").
	Prefix string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type Hello struct {
	Service string `json:"service"`
	Message string `json:"message"`
}

// HelloResult tem Data quando OK e Detail (texto cru) caso contrário.
type HelloResult struct {
	OK         bool
	Status     int
	Data       Hello
	Detail     string
	RetryAfter time.Duration
}

// Login troca o username por um access token.
func (c *Client) Login(ctx context.Context, username string) (string, error) {
	endpoint := c.BaseURL + "/login?username=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrLoginFailed, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrLoginFailed)
	}
	return body.AccessToken, nil
}

// Hello chama GET <prefix>/hello com o token. Respostas não-2xx não são erro:
// voltam em HelloResult com o corpo como Detail.
func (c *Client) Hello(ctx context.Context, token string) (HelloResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+c.Prefix+"/hello", nil)
	if err != nil {
		return HelloResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return HelloResult{}, fmt.Errorf("hello: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return HelloResult{}, fmt.Errorf("read hello response: %w", err)
	}
	text := strings.TrimSpace(string(raw))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if text == "" {
			text = "Too many requests. Try again later."
		}
		return HelloResult{
			Status:     resp.StatusCode,
			Detail:     text,
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		if text == "" {
			text = fmt.Sprintf("Error %d", resp.StatusCode)
		}
		return HelloResult{Status: resp.StatusCode, Detail: text}, nil
	}

	var data Hello
	if err := json.Unmarshal(raw, &data); err != nil {
		// upstream respondeu algo que não é JSON
		data = Hello{Service: "Server", Message: text}
	}
	return HelloResult{OK: true, Status: resp.StatusCode, Data: data}, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
