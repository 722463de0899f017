package reolinkclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "LoggedIn"
	}
	return "LoggedOut"
}

type Credentials struct {
	Username string
	Password string
}

// Session owns the authentication token of one camera.
//
// A Session is not safe for concurrent use: callers sharing one between goroutines
// must synchronize access themselves.
type Session struct {
	log         *slog.Logger
	credentials Credentials
	dispatcher  *Dispatcher

	token string
	lease time.Duration
}

// NewSession creates a logged out session together with the dispatcher that
// attaches its token.
func NewSession(log *slog.Logger, transport Transport, credentials Credentials) *Session {
	if log == nil {
		log = slog.Default()
	}
	s := &Session{
		log:         log.With("svc", "session"),
		credentials: credentials,
	}
	s.dispatcher = NewDispatcher(log, transport, s)
	return s
}

func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func (s *Session) Credentials() Credentials {
	return s.credentials
}

func (s *Session) Token() string {
	return s.token
}

// Lease is the token lifetime announced by the device at login.
func (s *Session) Lease() time.Duration {
	return s.lease
}

func (s *Session) IsLoggedIn() bool {
	return s.token != ""
}

func (s *Session) State() State {
	if s.IsLoggedIn() {
		return LoggedIn
	}
	return LoggedOut
}

type loginValue struct {
	Token struct {
		LeaseTime int    `json:"leaseTime"`
		Name      string `json:"name"`
	} `json:"Token"`
}

// Login authenticates against the device and stores the issued token, replacing
// any previous one. On failure the session is left untouched.
func (s *Session) Login(ctx context.Context) error {
	cmd := NewCommand(CmdLogin, ActionQuery, map[string]any{
		"User": map[string]any{
			"userName": s.credentials.Username,
			"password": s.credentials.Password,
		},
	})

	results, err := s.dispatcher.Execute(ctx, CmdLogin, []Command{cmd})
	if err != nil {
		return err
	}

	res := results[0]
	if res.Code != 0 {
		authErr := &AuthenticationError{Username: s.credentials.Username}
		if res.Error != nil {
			authErr.RspCode = res.Error.RspCode
			authErr.Detail = res.Error.Detail
		}
		return authErr
	}

	var value loginValue
	if err := json.Unmarshal(res.Value, &value); err != nil {
		return &ProtocolError{Command: CmdLogin, Body: res.Value, Err: err}
	}
	if value.Token.Name == "" {
		return &AuthenticationError{Username: s.credentials.Username, Detail: "no token issued"}
	}

	s.token = value.Token.Name
	s.lease = time.Duration(value.Token.LeaseTime) * time.Second
	s.log.InfoContext(ctx, "Logged in", "user", s.credentials.Username, "lease", s.lease)
	return nil
}

// Logout tells the device to drop the token. The local token is cleared whatever
// the device answers; the dispatch error, if any, is returned for information.
func (s *Session) Logout(ctx context.Context) error {
	if !s.IsLoggedIn() {
		return nil
	}

	_, err := s.dispatcher.ExecuteOne(ctx, NewCommand(CmdLogout, ActionQuery, nil))

	s.token = ""
	s.lease = 0

	if err != nil {
		s.log.WarnContext(ctx, "logout not confirmed by device", "err", err)
		return err
	}
	s.log.InfoContext(ctx, "Logged out")
	return nil
}
