package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	reolinkclient "github.com/tuzkov/reolinkCam/reolinkClient"
	"github.com/tuzkov/reolinkCam/rtsp"
)

// Reolink is the entry point for one camera. It owns the session and exposes
// every capability as a method.
//
// Reolink is not safe for concurrent use; the service package holds a guarded
// wrapper.
type Reolink struct {
	log *slog.Logger
	cfg Config

	session *reolinkclient.Session
	opener  rtsp.Opener
	nonce   func() string
}

type Option func(*Reolink)

// WithStreamOpener replaces the RTSP client used by OpenVideoStream.
func WithStreamOpener(opener rtsp.Opener) Option {
	return func(r *Reolink) {
		r.opener = opener
	}
}

func WithNonce(nonce func() string) Option {
	return func(r *Reolink) {
		r.nonce = nonce
	}
}

// New creates the camera client. Unless cfg.DeferLogin is set it logs in right
// away and fails if the login fails.
func New(ctx context.Context, log *slog.Logger, cfg *Config, opts ...Option) (*Reolink, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.IP == "" {
		return nil, errors.New("config ip is empty")
	}
	if log == nil {
		log = slog.Default()
	}
	c := cfg.withDefaults()

	transport, err := reolinkclient.NewTransport(log, &reolinkclient.TransportConfig{
		Address:         c.IP,
		HTTPS:           c.HTTPS,
		Timeout:         c.Timeout,
		Proxy:           c.Proxy,
		GatewayUsername: c.GatewayUsername,
		GatewayPassword: c.GatewayPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("fail to create transport: %w", err)
	}

	return newWithTransport(ctx, log, c, transport, opts...)
}

// NewWithTransport is New with a caller supplied transport.
func NewWithTransport(ctx context.Context, log *slog.Logger, cfg *Config, transport reolinkclient.Transport, opts ...Option) (*Reolink, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if transport == nil {
		return nil, errors.New("transport is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return newWithTransport(ctx, log, cfg.withDefaults(), transport, opts...)
}

func newWithTransport(ctx context.Context, log *slog.Logger, cfg Config, transport reolinkclient.Transport, opts ...Option) (*Reolink, error) {
	r := &Reolink{
		log: log.With("svc", "camera", "ip", cfg.IP),
		cfg: cfg,
		session: reolinkclient.NewSession(log, transport, reolinkclient.Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
		}),
		nonce: randomNonce,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.opener == nil {
		r.opener = rtsp.NewOpener(log, rtsp.Config{ProxyAddr: cfg.RTSPProxy})
	}

	if cfg.DeferLogin {
		return r, nil
	}
	if err := r.Login(ctx); err != nil {
		return nil, fmt.Errorf("fail to login: %w", err)
	}
	return r, nil
}

func (r *Reolink) Login(ctx context.Context) error {
	return r.session.Login(ctx)
}

func (r *Reolink) Logout(ctx context.Context) error {
	return r.session.Logout(ctx)
}

func (r *Reolink) IsLoggedIn() bool {
	return r.session.IsLoggedIn()
}

func (r *Reolink) State() reolinkclient.State {
	return r.session.State()
}

// Dispatcher gives access to the raw command API for commands without a typed
// method.
func (r *Reolink) Dispatcher() *reolinkclient.Dispatcher {
	return r.session.Dispatcher()
}

func (r *Reolink) Config() Config {
	return r.cfg
}
