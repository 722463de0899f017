package reolinkclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

var (
	errEmptyBatch = errors.New("command batch is empty")
	errEmptyValue = errors.New("result has no value")
)

// TokenSource provides the token attached to command requests. An empty token
// means no token parameter is sent.
type TokenSource interface {
	Token() string
}

type noToken struct{}

func (noToken) Token() string { return "" }

// Dispatcher sends command batches to the camera and parses the answers.
// It keeps no state between calls besides what is injected at construction.
type Dispatcher struct {
	log       *slog.Logger
	transport Transport
	tokens    TokenSource
}

func NewDispatcher(log *slog.Logger, transport Transport, tokens TokenSource) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if tokens == nil {
		tokens = noToken{}
	}
	return &Dispatcher{
		log:       log.With("svc", "dispatcher"),
		transport: transport,
		tokens:    tokens,
	}
}

// Execute submits batch in one request. command is sent as the cmd query parameter.
// The returned results are in the same order as batch, one per command.
// Device reported failures of single commands are left in CommandResult.Code.
func (d *Dispatcher) Execute(ctx context.Context, command string, batch []Command) ([]CommandResult, error) {
	if len(batch) == 0 {
		return nil, &ProtocolError{Command: command, Err: errEmptyBatch}
	}

	body, err := json.Marshal(batch)
	if err != nil {
		return nil, &ProtocolError{Command: command, Err: fmt.Errorf("fail to encode batch: %w", err)}
	}

	query := url.Values{}
	query.Set("cmd", command)
	if command == CmdLogin {
		query.Set("token", "null")
	} else if token := d.tokens.Token(); token != "" {
		query.Set("token", token)
	}

	resp, err := d.transport.Post(ctx, query, body)
	if err != nil {
		return nil, &TransportError{Command: command, Err: redactURL(err)}
	}

	d.log.DebugContext(ctx, "Resp", "cmd", command, "code", resp.StatusCode, "body", string(resp.Body))

	if resp.StatusCode != http.StatusOK {
		return nil, &DeviceCommandError{Command: command, StatusCode: resp.StatusCode, Body: resp.Body}
	}

	return parseResults(command, batch, resp.Body)
}

func parseResults(command string, batch []Command, body []byte) ([]CommandResult, error) {
	var results []CommandResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, &ProtocolError{Command: command, Body: body, Err: err}
	}

	if len(results) != len(batch) {
		return nil, &ProtocolError{
			Command: command,
			Body:    body,
			Err:     fmt.Errorf("got %d results for %d commands", len(results), len(batch)),
		}
	}

	for i := range results {
		// firmware echoes cmd; an empty echo is accepted and filled from the batch
		if results[i].Cmd == "" {
			results[i].Cmd = batch[i].Cmd
			continue
		}
		if results[i].Cmd != batch[i].Cmd {
			return nil, &ProtocolError{
				Command: command,
				Body:    body,
				Err:     fmt.Errorf("result %d is for %q, expected %q", i, results[i].Cmd, batch[i].Cmd),
			}
		}
	}

	return results, nil
}

// ExecuteOne runs a single command and returns its result, turning a device
// reported failure into a *DeviceCommandError.
func (d *Dispatcher) ExecuteOne(ctx context.Context, cmd Command) (*CommandResult, error) {
	results, err := d.Execute(ctx, cmd.Cmd, []Command{cmd})
	if err != nil {
		return nil, err
	}
	res := &results[0]
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

type Download struct {
	ContentType string
	Body        []byte
}

// Download issues a GET against the command endpoint and returns the raw body.
// It is used by endpoints that answer with bytes instead of JSON (Snap).
func (d *Dispatcher) Download(ctx context.Context, query url.Values) (*Download, error) {
	command := query.Get("cmd")

	resp, err := d.transport.Get(ctx, query)
	if err != nil {
		return nil, &TransportError{Command: command, Err: redactURL(err)}
	}

	d.log.DebugContext(ctx, "Resp", "cmd", command, "code", resp.StatusCode, "size", len(resp.Body))

	if resp.StatusCode != http.StatusOK {
		return nil, &DeviceCommandError{Command: command, StatusCode: resp.StatusCode, Body: resp.Body}
	}

	return &Download{ContentType: resp.ContentType, Body: resp.Body}, nil
}
