// Package provider implements dialect-native HTTP transport: addressing,
// authentication, and request/response delivery for a chosen upstream.
// Dialect translation itself lives in internal/dialect; this package only
// moves bytes.
//
// Grounded on internal/llm/anthropic.go and internal/llm/openai.go for the
// request-construction shape, generalized into one dialect-agnostic
// Transport so the proxy doesn't need a provider-specific type switch.
package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/outpost-run/tiermesh/internal/keys"
	"github.com/outpost-run/tiermesh/internal/registry"
)

// Request is one outbound upstream call, already dialect-translated.
type Request struct {
	Dialect registry.Dialect
	Access  keys.Access
	Path    string // e.g. "/v1/chat/completions", "/v1/messages"
	Body    []byte
	Stream  bool
}

// Response is what a Transport hands back. For streaming and non-streaming
// requests alike, Body is the live upstream body; the caller reads it and
// closes it.
type Response struct {
	Status  int
	Headers http.Header
	Body    io.ReadCloser
}

// Transport dispatches a translated request to an upstream and returns its
// raw response. Implementations must not touch dialect semantics.
type Transport interface {
	Dispatch(ctx context.Context, req Request) (Response, error)
}

// HTTPTransport is the default Transport, built on net/http the way every
// teacher provider (openai.go, anthropic.go, openrouter.go) does.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport builds an HTTPTransport using client, or a fresh
// *http.Client if client is nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Dispatch issues req against req.Access.BaseURL+req.Path, with
// dialect-appropriate auth headers (spec.md §4.3 "Authorization headers").
func (t *HTTPTransport) Dispatch(ctx context.Context, req Request) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Access.BaseURL+req.Path, bytes.NewReader(req.Body))
	if err != nil {
		return Response{}, fmt.Errorf("provider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range AuthHeaders(req.Dialect, req.Access) {
		httpReq.Header[k] = v
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("provider: dispatch: %w", err)
	}
	return Response{Status: resp.StatusCode, Headers: resp.Header, Body: resp.Body}, nil
}
