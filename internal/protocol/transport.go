package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Transport handles JSON-RPC 2.0 communication over stdio.
// It implements the base protocol with Content-Length headers and routes
// traffic in both directions: outbound calls and notifications, inbound
// responses, notifications, and requests.
type Transport struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu        sync.Mutex
	nextID    atomic.Int64
	pending   map[int64]chan *response
	notifiers map[string]NotificationHandler
	handlers  map[string]RequestHandler

	closed atomic.Bool
	done   chan struct{}
}

// NotificationHandler handles an inbound notification.
type NotificationHandler func(method string, params json.RawMessage)

// RequestHandler answers an inbound request. The returned value is marshaled
// as the result; a returned *ResponseError is sent as-is, any other error is
// reported as an internal error.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// request is an outbound JSON-RPC request or notification.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is an inbound JSON-RPC response to one of our calls.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// reply is an outbound response to a server-initiated request. The ID is
// echoed verbatim so servers using string ids are answered correctly.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// inbound is the probe shape used to classify an incoming message.
type inbound struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *ResponseError  `json:"error"`
}

// NewTransport creates a transport over the given connection, typically the
// stdin/stdout pipes of the server process.
func NewTransport(r io.Reader, w io.Writer, c io.Closer) *Transport {
	return &Transport{
		reader:    bufio.NewReaderSize(r, 64*1024),
		writer:    w,
		closer:    c,
		pending:   make(map[int64]chan *response),
		notifiers: make(map[string]NotificationHandler),
		handlers:  make(map[string]RequestHandler),
		done:      make(chan struct{}),
	}
}

// Start begins reading messages from the connection.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// Close closes the transport and releases resources.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil // Already closed
	}

	close(t.done)

	// Drop pending calls; waiters are released via t.done. The channels are
	// not closed to avoid racing handleResponse.
	t.mu.Lock()
	t.pending = make(map[int64]chan *response)
	t.mu.Unlock()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// IsClosed reports whether the transport has been closed.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Done is closed when the transport shuts down.
func (t *Transport) Done() <-chan struct{} {
	return t.done
}

// Call sends a request and waits for its response. A non-nil result is
// unmarshaled from the response payload.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	id := t.nextID.Add(1)
	ch := make(chan *response, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := &request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	if err := t.send(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case resp, ok := <-ch:
		if !ok {
			return ErrShutdown
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// Notify sends a notification (no response expected).
func (t *Transport) Notify(ctx context.Context, method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	return t.send(&request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// OnNotification registers a handler for inbound notifications. The method
// "*" matches anything without a dedicated handler.
func (t *Transport) OnNotification(method string, handler NotificationHandler) {
	t.mu.Lock()
	t.notifiers[method] = handler
	t.mu.Unlock()
}

// OnRequest registers a handler for inbound requests.
func (t *Transport) OnRequest(method string, handler RequestHandler) {
	t.mu.Lock()
	t.handlers[method] = handler
	t.mu.Unlock()
}

// send writes a message with the Content-Length header.
func (t *Transport) send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := io.WriteString(t.writer, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}

	return nil
}

// readLoop reads messages from the connection until shutdown or EOF.
func (t *Transport) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		msg, err := t.readMessage()
		if err != nil {
			if t.closed.Load() {
				return
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			// Framing error on a live connection; skip the message.
			continue
		}

		t.dispatch(ctx, msg)
	}
}

// readMessage reads a single Content-Length framed message.
func (t *Transport) readMessage() (json.RawMessage, error) {
	var contentLength int
	for {
		line, err := t.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				length, err := strconv.Atoi(strings.TrimSpace(parts[1]))
				if err == nil {
					contentLength = length
				}
			}
		}
		// Content-Type and other headers are ignored.
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(t.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// dispatch classifies an inbound message and routes it.
// A message with a method and an id is a server-initiated request; a method
// without an id is a notification; an id with a result or error is a
// response to one of our calls.
func (t *Transport) dispatch(ctx context.Context, data json.RawMessage) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch {
	case msg.Method != "" && len(msg.ID) > 0 && string(msg.ID) != "null":
		t.handleRequest(ctx, &msg)
	case msg.Method != "":
		t.handleNotification(&msg)
	case len(msg.ID) > 0 && (msg.Result != nil || msg.Error != nil):
		t.handleResponse(&msg)
	}
}

// handleResponse routes a response to its waiting caller.
func (t *Transport) handleResponse(msg *inbound) {
	if t.closed.Load() {
		return
	}

	// Our outbound ids are always integers.
	id, err := strconv.ParseInt(string(msg.ID), 10, 64)
	if err != nil {
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if ok {
		resp := &response{ID: id, Result: msg.Result, Error: msg.Error}
		select {
		case ch <- resp:
		default:
			// Channel full, drop response
		}
	}
}

// handleNotification routes a notification to its handler.
func (t *Transport) handleNotification(msg *inbound) {
	t.mu.Lock()
	handler, ok := t.notifiers[msg.Method]
	if !ok {
		handler, ok = t.notifiers["*"]
	}
	t.mu.Unlock()

	if ok && handler != nil {
		// Run handler in a goroutine to keep the read loop draining.
		method, params := msg.Method, msg.Params
		go handler(method, params)
	}
}

// handleRequest answers a server-initiated request. Handlers run off the
// read loop so a slow answer (a pending user prompt, the migration gate)
// never stalls other traffic.
func (t *Transport) handleRequest(ctx context.Context, msg *inbound) {
	t.mu.Lock()
	handler, ok := t.handlers[msg.Method]
	t.mu.Unlock()

	if !ok || handler == nil {
		t.reply(msg.ID, nil, &ResponseError{
			Code:    CodeMethodNotFound,
			Message: fmt.Sprintf("method not found: %s", msg.Method),
		})
		return
	}

	id, params := msg.ID, msg.Params
	go func() {
		result, err := handler(ctx, params)
		if err != nil {
			var respErr *ResponseError
			if re, isRPC := err.(*ResponseError); isRPC {
				respErr = re
			} else {
				respErr = &ResponseError{Code: CodeInternalError, Message: err.Error()}
			}
			t.reply(id, nil, respErr)
			return
		}
		t.reply(id, result, nil)
	}()
}

// reply writes a response to a server-initiated request.
func (t *Transport) reply(id json.RawMessage, result any, respErr *ResponseError) {
	if t.closed.Load() {
		return
	}
	if respErr == nil && result == nil {
		// A success response must carry a result member.
		result = json.RawMessage("null")
	}
	_ = t.send(&reply{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
		Error:   respErr,
	})
}
