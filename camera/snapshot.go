package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/rand"
	"net/url"
	"strconv"
	"time"

	reolinkclient "github.com/tuzkov/reolinkCam/reolinkClient"
)

const (
	nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	nonceLength   = 10
)

type Snapshot struct {
	Image       image.Image
	Raw         []byte
	ContentType string
	// Nonce is the cache-busting rs parameter the request was sent with
	Nonce string
}

func (s *Snapshot) Width() int {
	return s.Image.Bounds().Dx()
}

func (s *Snapshot) Height() int {
	return s.Image.Bounds().Dy()
}

func randomNonce() string {
	b := make([]byte, nonceLength)
	for i := range b {
		b[i] = nonceAlphabet[rand.Intn(len(nonceAlphabet))]
	}
	return string(b)
}

// Snapshot captures a still image with the configured snapshot timeout.
func (r *Reolink) Snapshot(ctx context.Context) (*Snapshot, error) {
	return r.CaptureSnapshot(ctx, r.cfg.SnapshotTimeout)
}

// CaptureSnapshot fetches and decodes one still image. Every call is a fresh
// request; a non-200 answer is a *reolinkclient.DeviceCommandError.
func (r *Reolink) CaptureSnapshot(ctx context.Context, timeout time.Duration) (*Snapshot, error) {
	if timeout <= 0 {
		timeout = DefaultSnapshotTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	nonce := r.nonce()
	query := url.Values{}
	query.Set("cmd", reolinkclient.CmdSnap)
	query.Set("channel", strconv.Itoa(r.cfg.Channel))
	query.Set("rs", nonce)
	query.Set("user", r.cfg.Username)
	query.Set("password", r.cfg.Password)

	dl, err := r.Dispatcher().Download(ctx, query)
	if err != nil {
		r.log.WarnContext(ctx, "fail to retrieve snapshot", "err", err)
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(dl.Body))
	if err != nil {
		return nil, &reolinkclient.ProtocolError{
			Command: reolinkclient.CmdSnap,
			Body:    dl.Body,
			Err:     fmt.Errorf("fail to decode image: %w", err),
		}
	}

	return &Snapshot{
		Image:       img,
		Raw:         dl.Body,
		ContentType: dl.ContentType,
		Nonce:       nonce,
	}, nil
}
