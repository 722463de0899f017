package camera

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/tuzkov/reolinkCam/rtsp"
)

type Profile string

const (
	ProfileMain Profile = "main"
	ProfileSub  Profile = "sub"

	rtspPort = "554"
)

func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileMain, ProfileSub:
		return p, nil
	default:
		return "", fmt.Errorf("unknown stream profile %q, expected main or sub", s)
	}
}

// Stream is an open live video session. It must be closed; Close can be called
// any number of times.
type Stream struct {
	rtsp.Stream
	Profile Profile
}

// StreamURL builds the RTSP address of the given profile.
func (r *Reolink) StreamURL(profile Profile) string {
	u := url.URL{
		Scheme: "rtsp",
		User:   url.UserPassword(r.cfg.Username, r.cfg.Password),
		Host:   net.JoinHostPort(r.cfg.IP, rtspPort),
		Path:   fmt.Sprintf("/h264Preview_%02d_%s", r.cfg.Channel+1, profile),
	}
	return u.String()
}

// OpenVideoStream connects to the live stream. The caller owns the returned
// stream and must Close it; WithVideoStream does that automatically.
func (r *Reolink) OpenVideoStream(ctx context.Context, profile Profile) (*Stream, error) {
	if _, err := ParseProfile(string(profile)); err != nil {
		return nil, err
	}

	s, err := r.opener.Open(ctx, r.StreamURL(profile))
	if err != nil {
		return nil, fmt.Errorf("fail to open %s stream: %w", profile, err)
	}
	r.log.InfoContext(ctx, "Video stream opened", "profile", profile)
	return &Stream{Stream: s, Profile: profile}, nil
}

func (r *Reolink) Stream(ctx context.Context, profile Profile) (*Stream, error) {
	return r.OpenVideoStream(ctx, profile)
}

// WithVideoStream opens the stream, runs fn with it and closes it on every exit
// path, including a panic in fn.
func (r *Reolink) WithVideoStream(ctx context.Context, profile Profile, fn func(*Stream) error) (err error) {
	s, err := r.OpenVideoStream(ctx, profile)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("fail to close stream: %w", cerr)
		}
		r.log.InfoContext(ctx, "Video stream closed", "profile", profile)
	}()

	return fn(s)
}
