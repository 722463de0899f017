package reolinkclient

import (
	"encoding/json"
)

const (
	// ActionQuery returns only the current value.
	ActionQuery = 0
	// ActionQueryWithRange also returns the "initial" and "range" blocks.
	ActionQueryWithRange = 1
)

const (
	CmdLogin  = "Login"
	CmdLogout = "Logout"
	CmdSnap   = "Snap"
)

// Command is a single operation sent to the device. A batch is an ordered []Command
// submitted in one request.
type Command struct {
	Cmd    string         `json:"cmd"`
	Action int            `json:"action"`
	Param  map[string]any `json:"param"`
}

func NewCommand(cmd string, action int, param map[string]any) Command {
	if param == nil {
		param = map[string]any{}
	}
	return Command{Cmd: cmd, Action: action, Param: param}
}

// ChannelCommand builds the common {"channel": n} query.
func ChannelCommand(cmd string, action int, channel int) Command {
	return NewCommand(cmd, action, map[string]any{"channel": channel})
}

// CommandResult is the device answer to one Command of a batch.
type CommandResult struct {
	Cmd     string          `json:"cmd"`
	Code    int             `json:"code"`
	Value   json.RawMessage `json:"value,omitempty"`
	Initial json.RawMessage `json:"initial,omitempty"`
	Range   json.RawMessage `json:"range,omitempty"`
	Error   *ResultError    `json:"error,omitempty"`
}

type ResultError struct {
	Detail  string `json:"detail"`
	RspCode int    `json:"rspCode"`
}

// Err reports a device side failure of the command, nil if it succeeded.
func (r *CommandResult) Err() error {
	if r.Code == 0 {
		return nil
	}
	e := &DeviceCommandError{Command: r.Cmd, Code: r.Code}
	if r.Error != nil {
		e.RspCode = r.Error.RspCode
		e.Detail = r.Error.Detail
	}
	return e
}

// Decode unmarshals the result value into v.
func (r *CommandResult) Decode(v any) error {
	if len(r.Value) == 0 {
		return &ProtocolError{Command: r.Cmd, Err: errEmptyValue}
	}
	if err := json.Unmarshal(r.Value, v); err != nil {
		return &ProtocolError{Command: r.Cmd, Body: r.Value, Err: err}
	}
	return nil
}
