// Package subrpc is a JSON-RPC 2.0 client for Substrate nodes over HTTP.
//
// Each Client owns its request id counter. Batched responses are matched to
// requests by id, never by position.
package subrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"chainbal/internal/fault"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultTimeout = 10 * time.Second

	// batch responses larger than this are rejected
	maxResponseBytes = 32 << 20
)

type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	idCounter  atomic.Uint64
	tracer     trace.Tracer
	observer   Observer
}

type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
}

// Observer receives one event per finished call or batch.
type Observer interface {
	ObserveRPC(method string, calls int, duration time.Duration, err error)
}

// Request is one entry of a batch.
type Request struct {
	Method string
	Params []any
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, &fault.ConfigError{Key: "RPC_URL", Reason: "is required"}
	}
	parsed, err := url.Parse(cfg.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, &fault.ConfigError{Key: "RPC_URL", Reason: fmt.Sprintf("invalid endpoint %q", cfg.URL)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
		timeout:    cfg.Timeout,
		tracer:     otel.Tracer("chainbal/subrpc"),
		observer:   cfg.Observer,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) nextID() uint64 {
	return c.idCounter.Add(1)
}

func (c *Client) newRequest(method string, params []any) rpcRequest {
	if params == nil {
		params = []any{}
	}
	return rpcRequest{JSONRPC: "2.0", ID: c.nextID(), Method: method, Params: params}
}

// Call sends one request and decodes its result into result. A JSON null
// result leaves pointer targets nil.
func (c *Client) Call(ctx context.Context, method string, params []any, result any) (err error) {
	request := c.newRequest(method, params)

	ctx, span := c.tracer.Start(ctx, "subrpc.call", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("rpc.method", method),
		attribute.Int64("rpc.id", int64(request.ID)),
	)
	start := time.Now()
	defer func() {
		c.finish(span, method, 1, start, err)
	}()

	body, err := c.post(ctx, method, request)
	if err != nil {
		return err
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return &fault.DecodeError{What: method + " response", Err: err}
	}
	if decoded.Error != nil {
		return &fault.RPCError{Method: method, Code: decoded.Error.Code, Message: decoded.Error.Message}
	}
	if decoded.ID != request.ID {
		return fault.Decodef(method+" response", "id %d does not match request %d", decoded.ID, request.ID)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(normalizeResult(decoded.Result), result); err != nil {
		return &fault.DecodeError{What: method + " result", Err: err}
	}
	return nil
}

// Batch sends all requests in one POST and returns the raw results in the
// order the requests were given. Any error result fails the whole batch.
func (c *Client) Batch(ctx context.Context, requests []Request) (results []json.RawMessage, err error) {
	if len(requests) == 0 {
		return nil, nil
	}
	envelopes := make([]rpcRequest, len(requests))
	for i, r := range requests {
		envelopes[i] = c.newRequest(r.Method, r.Params)
	}

	ctx, span := c.tracer.Start(ctx, "subrpc.batch", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.Int("rpc.batch_size", len(requests)),
		attribute.Int64("rpc.first_id", int64(envelopes[0].ID)),
	)
	start := time.Now()
	defer func() {
		c.finish(span, "batch", len(requests), start, err)
	}()

	body, err := c.post(ctx, "batch", envelopes)
	if err != nil {
		return nil, err
	}

	var responses []rpcResponse
	if err := json.Unmarshal(body, &responses); err != nil {
		// some nodes answer a rejected batch with a single error envelope
		var single rpcResponse
		if json.Unmarshal(body, &single) == nil && single.Error != nil {
			return nil, &fault.RPCError{Method: "batch", Code: single.Error.Code, Message: single.Error.Message}
		}
		return nil, &fault.DecodeError{What: "batch response", Err: err}
	}
	// ids start at 1, so id 0 is an entry the node could not attribute
	for _, response := range responses {
		if response.ID == 0 && response.Error != nil {
			return nil, &fault.RPCError{Method: "batch", Code: response.Error.Code, Message: response.Error.Message}
		}
	}
	if len(responses) != len(envelopes) {
		return nil, fault.Decodef("batch response", "got %d responses for %d requests", len(responses), len(envelopes))
	}

	// ids were allocated in request order, so sorting by id restores it
	sort.Slice(responses, func(a, b int) bool { return responses[a].ID < responses[b].ID })

	results = make([]json.RawMessage, len(envelopes))
	for i, envelope := range envelopes {
		response := responses[i]
		if response.ID != envelope.ID {
			return nil, fault.Decodef("batch response", "missing response for id %d (%s)", envelope.ID, envelope.Method)
		}
		if response.Error != nil {
			return nil, &fault.RPCError{Method: envelope.Method, Code: response.Error.Code, Message: response.Error.Message}
		}
		results[i] = normalizeResult(response.Result)
	}
	return results, nil
}

func (c *Client) post(ctx context.Context, method string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &fault.DecodeError{What: method + " request", Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(encoded))
	if err != nil {
		return nil, &fault.TransportError{Method: method, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(callCtx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(callCtx, method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &fault.TransportError{Method: method, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(callCtx, method, err)
	}
	return body, nil
}

func (c *Client) finish(span trace.Span, method string, calls int, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if c.observer != nil {
		c.observer.ObserveRPC(method, calls, time.Since(start), err)
	}
}

func transportError(ctx context.Context, method string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &fault.TransportError{Method: method, Timeout: true, Err: context.DeadlineExceeded}
	}
	return &fault.TransportError{Method: method, Err: err}
}

// normalizeResult maps an absent result to JSON null.
func normalizeResult(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("null")
	}
	return raw
}
