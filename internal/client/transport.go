package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"go-knowledge/internal/bridge"
	"go-knowledge/internal/model"
)

// Envelope is a bridge result whose payload is still encoded.
type Envelope = model.Result[json.RawMessage]

// Transport carries one channel call across the process boundary. A non-nil
// error means the call never completed; a failed operation comes back as an
// Envelope with Success=false.
type Transport interface {
	Invoke(ctx context.Context, channel string, args ...any) (Envelope, error)
}

// HTTPTransport talks to a bridge mounted at <BaseURL>/ipc/.
type HTTPTransport struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) Invoke(ctx context.Context, channel string, args ...any) (Envelope, error) {
	if args == nil {
		args = []any{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s args: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/ipc/"+channel, bytes.NewReader(body))
	if err != nil {
		return Envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: %w", channel, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: read response: %w", channel, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%s: decode response (%d): %w", channel, resp.StatusCode, err)
	}
	return env, nil
}

// LocalTransport calls a bridge in the same process. Arguments and results
// are still passed through JSON so nothing live crosses the boundary.
type LocalTransport struct {
	Bridge *bridge.Bridge
}

func (t LocalTransport) Invoke(ctx context.Context, channel string, args ...any) (Envelope, error) {
	raws := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s args: %w", channel, err)
		}
		raws = append(raws, b)
	}

	res := t.Bridge.Invoke(ctx, channel, raws)
	env := Envelope{Success: res.Success, Error: res.Error}
	if res.Data != nil {
		b, err := json.Marshal(res.Data)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s result: %w", channel, err)
		}
		env.Data = b
	}
	return env, nil
}
