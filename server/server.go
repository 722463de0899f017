package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"

	reolinkclient "github.com/tuzkov/reolinkCam/reolinkClient"
	"github.com/tuzkov/reolinkCam/service"
)

type Server interface {
	Start() error
	Handler() http.Handler
}

type server struct {
	log *slog.Logger
	cfg *Config

	addr string
	svc  service.PreviewService
}

type Config struct {
	service.Config

	Addr     string
	LogLevel string
}

func NewServer(log *slog.Logger, cfg *Config, svc service.PreviewService) (Server, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if svc == nil {
		return nil, errors.New("service is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &server{
		log: log.With("svc", "server"),
		cfg: cfg,

		addr: cfg.Addr,
		svc:  svc,
	}, nil
}

func (srv *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", srv.Snapshot)
	mux.HandleFunc("/stream", srv.Stream)
	mux.HandleFunc("/encoding", srv.Encoding)
	mux.HandleFunc("/recording", srv.Recording)
	return mux
}

func (srv *server) Start() error {
	srv.log.Info("Listening", "addr", srv.addr)
	return http.ListenAndServe(srv.addr, srv.Handler())
}

// statusFor maps camera errors to the bridge response code.
func statusFor(err error) int {
	var (
		authErr  *reolinkclient.AuthenticationError
		trErr    *reolinkclient.TransportError
		devErr   *reolinkclient.DeviceCommandError
		protoErr *reolinkclient.ProtocolError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &trErr):
		return http.StatusGatewayTimeout
	case errors.As(err, &devErr), errors.As(err, &protoErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (srv *server) fail(w http.ResponseWriter, op string, err error) {
	srv.log.Error(op, "err", err)
	http.Error(w, err.Error(), statusFor(err))
}

func (srv *server) Snapshot(w http.ResponseWriter, req *http.Request) {
	srv.log.Debug("Snapshot call")

	var width uint64
	if v := req.URL.Query().Get("width"); v != "" {
		var err error
		width, err = strconv.ParseUint(v, 10, 32)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid width %q", v), http.StatusBadRequest)
			return
		}
	}

	frame, err := srv.svc.Snapshot(req.Context(), uint(width))
	if err != nil {
		srv.fail(w, "snapshot", err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")

	_, err = w.Write(frame)
	if err != nil {
		srv.log.Error("Snapshot write error", "err", err)
	}
}

func (srv *server) Stream(w http.ResponseWriter, req *http.Request) {
	srv.log.Info("Started stream")

	ctx, cancel := context.WithCancel(req.Context())
	stream, err := srv.svc.Stream(ctx)
	if err != nil {
		cancel()
		srv.fail(w, "stream", err)
		return
	}

	const boundary = `frame`
	w.Header().Set("Content-Type", `multipart/x-mixed-replace;boundary=`+boundary)
	mpWriter := multipart.NewWriter(w)
	mpWriter.SetBoundary(boundary)

	defer func() {
		srv.log.Info("Finished stream")
		// exaust chan
		for range stream {
		}
	}()
	// stops the producer before the drain above
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-stream:
			if !ok {
				return
			}

			iw, err := mpWriter.CreatePart(textproto.MIMEHeader{
				"Content-Type":   []string{"image/jpeg"},
				"Content-Length": []string{strconv.Itoa(len(frame))},
			})
			if err != nil {
				srv.log.Error("fail to send part", "err", err)
				return
			}

			_, err = iw.Write(frame)
			if err != nil {
				srv.log.Error("fail to write part", "err", err)
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

func (srv *server) Encoding(w http.ResponseWriter, req *http.Request) {
	srv.log.Debug("Encoding call")
	enc, err := srv.svc.Encoding(req.Context())
	if err != nil {
		srv.fail(w, "encoding", err)
		return
	}
	srv.writeJSON(w, enc)
}

func (srv *server) Recording(w http.ResponseWriter, req *http.Request) {
	srv.log.Debug("Recording call")
	rec, err := srv.svc.Recording(req.Context())
	if err != nil {
		srv.fail(w, "recording", err)
		return
	}
	srv.writeJSON(w, rec)
}

func (srv *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		srv.log.Error("fail to write json", "err", err)
	}
}
