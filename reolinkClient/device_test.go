package reolinkclient

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
)

// fakeDevice is a minimal camera command endpoint.
type fakeDevice struct {
	t *testing.T

	sync.Mutex
	requests []*http.Request
	bodies   [][]Command
	tokens   int

	// handle answers a command batch; nil means echo every command with code 0
	handle func(w http.ResponseWriter, query url.Values, batch []Command)
}

func newFakeDevice(t *testing.T) (*fakeDevice, *httptest.Server) {
	dev := &fakeDevice{t: t}
	srv := httptest.NewServer(dev)
	t.Cleanup(srv.Close)
	return dev, srv
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != apiPath {
		http.NotFound(w, req)
		return
	}

	var batch []Command
	if req.Method == http.MethodPost {
		data, _ := io.ReadAll(req.Body)
		if err := json.Unmarshal(data, &batch); err != nil {
			d.t.Errorf("device got invalid batch %q: %v", data, err)
		}
	}

	d.Lock()
	d.requests = append(d.requests, req)
	d.bodies = append(d.bodies, batch)
	d.Unlock()

	query := req.URL.Query()
	if d.handle != nil {
		d.handle(w, query, batch)
		return
	}

	if query.Get("cmd") == CmdLogin {
		d.Lock()
		d.tokens++
		n := d.tokens
		d.Unlock()
		writeJSON(w, []map[string]any{loginOK(tokenName(n))})
		return
	}

	results := make([]map[string]any, 0, len(batch))
	for _, c := range batch {
		results = append(results, map[string]any{"cmd": c.Cmd, "code": 0, "value": map[string]any{"ok": true}})
	}
	writeJSON(w, results)
}

func (d *fakeDevice) count() int {
	d.Lock()
	defer d.Unlock()
	return len(d.requests)
}

func (d *fakeDevice) last() *http.Request {
	d.Lock()
	defer d.Unlock()
	return d.requests[len(d.requests)-1]
}

func tokenName(n int) string {
	return "token" + strings.Repeat("x", n)
}

func loginOK(token string) map[string]any {
	return map[string]any{
		"cmd":  CmdLogin,
		"code": 0,
		"value": map[string]any{
			"Token": map[string]any{"leaseTime": 3600, "name": token},
		},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestTransport(t *testing.T, srv *httptest.Server) Transport {
	tr, err := NewTransport(testLogger(), &TransportConfig{Address: strings.TrimPrefix(srv.URL, "http://")})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}
