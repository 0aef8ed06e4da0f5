// Package concierge é o cliente HTTP do endpoint do concierge. Ele traduz
// cada resposta em um cooldown.Outcome.
package concierge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"concierge-gateway/client/cooldown"
	"concierge-gateway/contract"
)

// Client fala com o gateway.
type Client struct {
	BaseURL string
	// Token é enviado como bearer; vazio não envia Authorization.
	Token string
	HTTP  *http.Client
	// Now é usado para interpretar Retry-After em formato de data.
	Now func() time.Time
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 45 * time.Second},
		Now:     time.Now,
	}
}

// Ask devolve um Requester que sempre reenvia o mesmo prompt.
func (c *Client) Ask(prompt string) cooldown.Requester {
	body, _ := json.Marshal(contract.AskRequest{Prompt: prompt})
	return cooldown.RequesterFunc(func(ctx context.Context) (cooldown.Outcome, error) {
		return c.post(ctx, body)
	})
}

func (c *Client) post(ctx context.Context, body []byte) (cooldown.Outcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+contract.ConciergePath, bytes.NewReader(body))
	if err != nil {
		return cooldown.Outcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpc := c.HTTP
	if httpc == nil {
		httpc = http.DefaultClient
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return cooldown.Outcome{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return cooldown.Outcome{}, fmt.Errorf("read response: %w", err)
	}
	return c.classify(resp, raw), nil
}

// classify mapeia status e corpo para o Outcome.
func (c *Client) classify(resp *http.Response, raw []byte) cooldown.Outcome {
	out := cooldown.Outcome{Status: resp.StatusCode}
	out.Limit, out.Remaining = quotaHeaders(resp.Header)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		out.Kind = cooldown.OutcomeSuccess
		var body contract.AskResponse
		if err := json.Unmarshal(raw, &body); err == nil {
			out.Answer = body.Answer
			if body.Quota != nil {
				out.Limit, out.Remaining = body.Quota.Limit, body.Quota.Remaining
			}
		}

	case resp.StatusCode == http.StatusTooManyRequests:
		out.Kind = cooldown.OutcomeRateLimited
		out.Remaining = 0
		secs, ok := -1, false
		var body contract.ThrottleResponse
		if err := json.Unmarshal(raw, &body); err == nil && body.Error == contract.CodeRateLimited {
			secs, ok = body.RetryAfterSeconds, true
			if body.Limit > 0 {
				out.Limit = body.Limit
			}
		}
		if !ok {
			secs, ok = contract.ParseRetryAfter(resp.Header.Get(contract.HeaderRetryAfter), c.now())
		}
		if ok && secs > 0 {
			out.RetryAfter = time.Duration(secs) * time.Second
		}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		out.Kind = cooldown.OutcomeFailure
		out.Retryable = false
		out.Message = cooldown.MessageAuth

	case resp.StatusCode >= 500:
		out.Kind = cooldown.OutcomeFailure
		out.Retryable = true
		out.Message = cooldown.MessageServer

	default:
		out.Kind = cooldown.OutcomeFailure
		out.Retryable = false
		out.Message = errorMessage(raw, resp.StatusCode)
	}
	return out
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func quotaHeaders(h http.Header) (limit, remaining int) {
	limit, _ = atoi(h.Get(contract.HeaderLimit))
	remaining, _ = atoi(h.Get(contract.HeaderRemaining))
	return limit, remaining
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func errorMessage(raw []byte, status int) string {
	var body contract.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	return fmt.Sprintf("The concierge rejected the request (%d)", status)
}
