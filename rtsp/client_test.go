package rtsp

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestNewDialerDirect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	dial, err := NewDialer("")
	if err != nil {
		t.Fatal(err)
	}
	conn, err := dial(context.Background(), "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()
}

func TestNewDialerSocksUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	proxyAddr := ln.Addr().String()
	ln.Close()

	dial, err := NewDialer(proxyAddr)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if conn, err := dial(ctx, "tcp", "192.0.2.1:554"); err == nil {
		conn.Close()
		t.Fatal("expected error when the proxy is down")
	}
}

func TestOpenCancelledContext(t *testing.T) {
	o := NewOpener(testLogger(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Open(ctx, "rtsp://127.0.0.1:554/h264Preview_01_main"); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

func TestOpenInvalidURL(t *testing.T) {
	o := NewOpener(testLogger(), Config{})
	if _, err := o.Open(context.Background(), "http://%zz"); err == nil {
		t.Fatal("expected error on invalid url")
	}
}

func TestOpenUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	o := NewOpener(testLogger(), Config{ReadTimeout: time.Second})
	if _, err := o.Open(context.Background(), "rtsp://"+addr+"/h264Preview_01_sub"); err == nil {
		t.Fatal("expected error for closed port")
	}
}
