package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/tuzkov/reolinkCam/camera"
	reolinkclient "github.com/tuzkov/reolinkCam/reolinkClient"
	"github.com/tuzkov/reolinkCam/service"
)

type fakeService struct {
	width uint
	err   error
}

func (s *fakeService) Snapshot(ctx context.Context, width uint) (service.Snapshot, error) {
	s.width = width
	if s.err != nil {
		return nil, s.err
	}
	return service.Snapshot{0xff, 0xd8, 0xff, 0xd9}, nil
}

func (s *fakeService) Stream(ctx context.Context) (service.Stream, error) {
	stream := make(service.Stream, 2)
	stream <- []byte{1, 2, 3}
	stream <- []byte{4, 5}
	close(stream)
	return stream, nil
}

func (s *fakeService) Encoding(ctx context.Context) (*camera.Encoding, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &camera.Encoding{MainStream: camera.StreamEncoding{BitRate: 4096, Size: "3072*1728"}}, nil
}

func (s *fakeService) Recording(ctx context.Context) (*camera.Recording, error) {
	return &camera.Recording{PostRec: "15 Seconds"}, nil
}

func (s *fakeService) Close(ctx context.Context) error { return nil }

func newTestServer(t *testing.T, svc service.PreviewService) *httptest.Server {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	srv, err := NewServer(log, &Config{Addr: ":0"}, svc)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSnapshotHandler(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	resp, err := http.Get(ts.URL + "/snapshot?width=320")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type %q", ct)
	}
	if svc.width != 320 {
		t.Errorf("width = %d", svc.width)
	}
}

func TestSnapshotHandlerBadWidth(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	resp, err := http.Get(ts.URL + "/snapshot?width=big")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&reolinkclient.AuthenticationError{Username: "admin"}, http.StatusUnauthorized},
		{&reolinkclient.TransportError{Command: "Snap", Err: errors.New("refused")}, http.StatusGatewayTimeout},
		{&reolinkclient.DeviceCommandError{Command: "Snap", StatusCode: 500}, http.StatusBadGateway},
		{&reolinkclient.ProtocolError{Command: "GetEnc", Err: errors.New("bad json")}, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		ts := newTestServer(t, &fakeService{err: tc.err})
		resp, err := http.Get(ts.URL + "/encoding")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%T: status %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
	}
}

func TestEncodingHandler(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	resp, err := http.Get(ts.URL + "/encoding")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var enc camera.Encoding
	if err := json.NewDecoder(resp.Body).Decode(&enc); err != nil {
		t.Fatal(err)
	}
	if enc.MainStream.BitRate != 4096 {
		t.Errorf("unexpected encoding %+v", enc)
	}
}

func TestStreamHandler(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	resp, err := http.Get(ts.URL + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("content type %q", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(body), "--frame"); n != 2 {
		t.Errorf("expected 2 parts, got %d", n)
	}
}

func TestSnapshotUnreachableCameraHidesPassword(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(dead.URL, "http://")
	dead.Close()

	svc, err := service.NewService(context.Background(), nil, &service.Config{
		Config: camera.Config{IP: addr, Password: "s3cret", DeferLogin: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, svc)

	resp, err := http.Get(ts.URL + "/snapshot")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("status %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "s3cret") {
		t.Errorf("password in response: %s", body)
	}
}
