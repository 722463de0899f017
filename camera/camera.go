package camera

import (
	"context"
	"time"
)

type Camera interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	Stream(ctx context.Context, profile Profile) (*Stream, error)
}

// Configured exposes the recording configuration queries.
type Configured interface {
	GetRecordingEncoding(ctx context.Context) (*Encoding, error)
	GetRecordingAdvanced(ctx context.Context) (*Recording, error)
}

type Session interface {
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	IsLoggedIn() bool
}

type CameraWithSession interface {
	Camera
	Configured
	Session
}

type Config struct {
	IP       string
	Username string
	Password string
	HTTPS    bool

	// DeferLogin skips the login at construction
	DeferLogin bool

	// Proxy is used for HTTP traffic to the camera (http:// or socks5:// URL)
	Proxy string
	// RTSPProxy is a SOCKS5 host:port the video stream is tunnelled through
	RTSPProxy string

	Channel         int
	Timeout         time.Duration
	SnapshotTimeout time.Duration

	// digest credentials of a reverse proxy in front of the camera
	GatewayUsername string
	GatewayPassword string
}

const (
	DefaultUsername        = "admin"
	DefaultSnapshotTimeout = 3 * time.Second
)

func (cfg *Config) withDefaults() Config {
	c := *cfg
	if c.Username == "" {
		c.Username = DefaultUsername
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = DefaultSnapshotTimeout
	}
	return c
}
