// Package api is the HTTP client of the cardkeeper JSON API. It keeps the
// caller's tokens and transparently refreshes an expired access token once
// per request.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cardkeeper/internal/common"
)

var ErrUnavailable = errors.New("server unavailable")

// Response codes of card mutations.
const (
	CodeOK     = 0
	CodeTooNew = 1
	CodeStale  = 2
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type Client struct {
	baseURL string
	http    *http.Client

	mu       sync.Mutex
	tokens   TokenPair
	onTokens func(TokenPair)
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) SetTokens(t TokenPair) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = t
}

func (c *Client) Tokens() TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// OnTokensRefreshed registers fn to be called with the new pair after an
// automatic refresh, so the caller can persist it.
func (c *Client) OnTokensRefreshed(fn func(TokenPair)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTokens = fn
}

type errorBody struct {
	Msg string `json:"msg"`
}

// StatusError is returned for non-2xx responses that do not map to a
// sentinel error.
type StatusError struct {
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Msg)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any, authorized bool) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return err
		}
	}

	status, body, err := c.send(ctx, method, path, query, payload, authorized)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && authorized && errorMsg(body) == common.ErrTokenExpired.Error() {
		if rerr := c.refresh(ctx); rerr != nil {
			return rerr
		}
		if status, body, err = c.send(ctx, method, path, query, payload, authorized); err != nil {
			return err
		}
	}

	if status < 200 || status > 299 {
		return mapStatus(status, errorMsg(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, authorized bool) (int, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var r io.Reader
	if payload != nil {
		r = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.Tokens().AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) refresh(ctx context.Context) error {
	rt := c.Tokens().RefreshToken
	if rt == "" {
		return common.ErrorUnauthorized
	}

	var tp TokenPair
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, map[string]string{"refresh_token": rt}, &tp, false); err != nil {
		return err
	}

	c.mu.Lock()
	c.tokens = tp
	fn := c.onTokens
	c.mu.Unlock()

	if fn != nil {
		fn(tp)
	}
	return nil
}

func errorMsg(body []byte) string {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	return eb.Msg
}

func mapStatus(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrUserExists
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", common.ErrorValidation, msg)
	default:
		return &StatusError{Status: status, Msg: msg}
	}
}

func cursorQuery(cursor int64) url.Values {
	return url.Values{"last_clid": []string{strconv.FormatInt(cursor, 10)}}
}

func cardPath(id int64) string {
	return "/cards/" + strconv.FormatInt(id, 10)
}
