package rtsp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"
)

const (
	defaultReadTimeout = 10 * time.Second
	defaultBuffer      = 256
)

// Packet is one RTP packet received from the camera.
type Packet struct {
	Media     string
	Codec     string
	Sequence  uint16
	Timestamp uint32
	Payload   []byte
}

// Stream is an open RTSP session. Packets is closed once the session ends,
// either by Close or because the connection dropped. Err is nil after Close and
// holds the failure otherwise.
type Stream interface {
	Packets() <-chan Packet
	Tracks() []string
	Err() error
	Close() error
}

type Opener interface {
	Open(ctx context.Context, rawURL string) (Stream, error)
}

type Config struct {
	// ProxyAddr is a SOCKS5 proxy (host:port) used to tunnel the connection
	ProxyAddr   string
	ReadTimeout time.Duration
	// Buffer is the packet channel capacity, packets are dropped when it is full
	Buffer int
}

type opener struct {
	log *slog.Logger
	cfg Config
}

func NewOpener(log *slog.Logger, cfg Config) Opener {
	if log == nil {
		log = slog.Default()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = defaultReadTimeout
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	return &opener{
		log: log.With("svc", "rtsp"),
		cfg: cfg,
	}
}

func (o *opener) Open(ctx context.Context, rawURL string) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u, err := base.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("fail to parse rtsp url: %w", err)
	}

	dial, err := NewDialer(o.cfg.ProxyAddr)
	if err != nil {
		return nil, err
	}

	// tcp only, udp can't go through the socks tunnel
	transport := gortsplib.TransportTCP
	c := &gortsplib.Client{
		Transport:   &transport,
		DialContext: dial,
		ReadTimeout: o.cfg.ReadTimeout,
	}

	if err := c.Start(u.Scheme, u.Host); err != nil {
		return nil, fmt.Errorf("fail to connect: %w", err)
	}

	desc, _, err := c.Describe(u)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("fail to describe stream: %w", err)
	}

	if err := c.SetupAll(desc.BaseURL, desc.Medias); err != nil {
		c.Close()
		return nil, fmt.Errorf("fail to setup medias: %w", err)
	}

	s := &stream{
		log:     o.log,
		client:  c,
		packets: make(chan Packet, o.cfg.Buffer),
		done:    make(chan struct{}),
	}
	for _, medi := range desc.Medias {
		for _, forma := range medi.Formats {
			s.tracks = append(s.tracks, fmt.Sprintf("%s/%s", medi.Type, forma.Codec()))
		}
	}

	c.OnPacketRTPAny(func(medi *description.Media, forma format.Format, pkt *rtp.Packet) {
		s.deliver(Packet{
			Media:     string(medi.Type),
			Codec:     forma.Codec(),
			Sequence:  pkt.SequenceNumber,
			Timestamp: pkt.Timestamp,
			Payload:   append([]byte(nil), pkt.Payload...),
		})
	})

	if _, err := c.Play(nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("fail to play: %w", err)
	}

	go s.wait()
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	go func() {
		<-s.done
		stop()
	}()

	o.log.InfoContext(ctx, "Stream opened", "host", u.Host, "tracks", s.tracks)
	return s, nil
}

type stream struct {
	log    *slog.Logger
	client *gortsplib.Client
	tracks []string

	packets   chan Packet
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	err     error
	dropped int
}

func (s *stream) Packets() <-chan Packet {
	return s.packets
}

func (s *stream) Tracks() []string {
	return s.tracks
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) deliver(pkt Packet) {
	select {
	case s.packets <- pkt:
	default:
		s.mu.Lock()
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()
		// consumer too slow
		if dropped%100 == 1 {
			s.log.Warn("packet buffer overflow", "dropped", dropped)
		}
	}
}

// wait blocks until the client is gone; no callback runs after Wait returns, so
// the channel can be closed safely.
func (s *stream) wait() {
	err := s.client.Wait()
	s.mu.Lock()
	if !s.closed {
		s.err = err
	}
	s.mu.Unlock()
	close(s.packets)
	close(s.done)
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.client.Close()
		<-s.done
		s.log.Info("Stream closed")
	})
	return nil
}
