package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/tuzkov/reolinkCam/camera"
)

const defaultStreamInterval = 2 * time.Second

type PreviewService interface {
	Snapshot(ctx context.Context, width uint) (Snapshot, error)
	Stream(ctx context.Context) (Stream, error)
	Encoding(ctx context.Context) (*camera.Encoding, error)
	Recording(ctx context.Context) (*camera.Recording, error)
	Close(ctx context.Context) error
}

// Snapshot is a JPEG encoded image.
type Snapshot []byte

// Stream delivers JPEG frames until the context passed to Stream is done.
type Stream chan []byte

type Config struct {
	camera.Config

	// SnapshotWidth is the default width snapshots are scaled to, 0 keeps the original
	SnapshotWidth  uint
	StreamInterval time.Duration
}

type Camera interface {
	camera.Configured
	Snapshot(ctx context.Context) (*camera.Snapshot, error)
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	IsLoggedIn() bool
}

type service struct {
	log *slog.Logger
	cfg *Config

	// the camera client is not safe for concurrent use
	sync.Mutex
	camera Camera
}

func NewService(ctx context.Context, log *slog.Logger, cfg *Config) (PreviewService, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if log == nil {
		log = slog.Default()
	}

	cam, err := camera.New(ctx, log, &cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("fail to create camera: %w", err)
	}

	return NewWithCamera(log, cfg, cam), nil
}

func NewWithCamera(log *slog.Logger, cfg *Config, cam Camera) PreviewService {
	if log == nil {
		log = slog.Default()
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = defaultStreamInterval
	}
	return &service{
		log:    log.With("svc", "service"),
		cfg:    cfg,
		camera: cam,
	}
}

// ensureLogin logs in when the camera was created with a deferred login or was
// logged out. It must be called with the mutex held.
func (svc *service) ensureLogin(ctx context.Context) error {
	if svc.camera.IsLoggedIn() {
		return nil
	}
	svc.log.DebugContext(ctx, "Not logged in, logging in")
	if err := svc.camera.Login(ctx); err != nil {
		return fmt.Errorf("fail to login: %w", err)
	}
	return nil
}

func (svc *service) Snapshot(ctx context.Context, width uint) (Snapshot, error) {
	svc.Lock()
	snap, err := svc.camera.Snapshot(ctx)
	svc.Unlock()
	if err != nil {
		return nil, fmt.Errorf("fail to get snapshot: %w", err)
	}

	if width == 0 {
		width = svc.cfg.SnapshotWidth
	}
	if width == 0 && snap.ContentType == "image/jpeg" {
		return snap.Raw, nil
	}

	img := snap.Image
	if width != 0 && int(width) < snap.Width() {
		img = resize.Resize(width, 0, img, resize.Lanczos3)
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, nil); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (svc *service) Stream(ctx context.Context) (Stream, error) {
	stream := make(Stream, 10)

	go func() {
		defer close(stream)
		after := time.After(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-after:
			}
			after = time.After(svc.cfg.StreamInterval)

			frame, err := svc.Snapshot(ctx, 0)
			if err != nil {
				svc.log.Warn("fail to get frame", "err", err)
				continue
			}
			select {
			case stream <- frame:
			default:
				svc.log.Warn("buffer overflow")
			}
		}
	}()

	return stream, nil
}

func (svc *service) Encoding(ctx context.Context) (*camera.Encoding, error) {
	svc.Lock()
	defer svc.Unlock()

	if err := svc.ensureLogin(ctx); err != nil {
		return nil, err
	}
	enc, err := svc.camera.GetRecordingEncoding(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to get encoding: %w", err)
	}
	return enc, nil
}

func (svc *service) Recording(ctx context.Context) (*camera.Recording, error) {
	svc.Lock()
	defer svc.Unlock()

	if err := svc.ensureLogin(ctx); err != nil {
		return nil, err
	}
	rec, err := svc.camera.GetRecordingAdvanced(ctx)
	if err != nil {
		return nil, fmt.Errorf("fail to get recording: %w", err)
	}
	return rec, nil
}

func (svc *service) Close(ctx context.Context) error {
	svc.Lock()
	defer svc.Unlock()
	return svc.camera.Logout(ctx)
}
