package reolinkclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/icholy/digest"
)

const (
	apiPath        = "/cgi-bin/api.cgi"
	defaultTimeout = 15 * time.Second
)

// Transport performs raw requests against the camera command endpoint.
type Transport interface {
	Post(ctx context.Context, query url.Values, body []byte) (*Response, error)
	Get(ctx context.Context, query url.Values) (*Response, error)
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type TransportConfig struct {
	Address string
	HTTPS   bool
	Timeout time.Duration

	// Proxy is a proxy URL for the camera HTTP traffic, e.g. socks5://127.0.0.1:8000
	Proxy string

	// credentials of an authenticating (digest) gateway in front of the camera
	GatewayUsername string
	GatewayPassword string
}

type restyTransport struct {
	log  *slog.Logger
	http *resty.Client
	url  string
}

func NewTransport(log *slog.Logger, cfg *TransportConfig) (Transport, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if cfg.Address == "" {
		return nil, errors.New("config address is empty")
	}
	if log == nil {
		log = slog.Default()
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// cameras ship self-signed certificates
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("fail to parse proxy url: %w", err)
		}
		base.Proxy = http.ProxyURL(proxyURL)
	}

	var rt http.RoundTripper = base
	if cfg.GatewayUsername != "" {
		rt = &digest.Transport{
			Username:  cfg.GatewayUsername,
			Password:  cfg.GatewayPassword,
			Transport: base,
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	r := resty.NewWithClient(&http.Client{Transport: rt})
	r.SetTimeout(timeout)
	r.SetHeader("Accept", "application/json")

	return &restyTransport{
		log:  log.With("svc", "transport"),
		http: r,
		url:  EndpointURL(cfg.Address, cfg.HTTPS),
	}, nil
}

// EndpointURL returns the command endpoint for the camera address.
func EndpointURL(address string, https bool) string {
	scheme := "http"
	if https {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s%s", scheme, address, apiPath)
}

func (t *restyTransport) Post(ctx context.Context, query url.Values, body []byte) (*Response, error) {
	t.log.DebugContext(ctx, "POST", "cmd", query.Get("cmd"), "body", string(body))
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(t.url)
	if err != nil {
		return nil, err
	}
	return toResponse(resp), nil
}

func (t *restyTransport) Get(ctx context.Context, query url.Values) (*Response, error) {
	t.log.DebugContext(ctx, "GET", "cmd", query.Get("cmd"))
	resp, err := t.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		Get(t.url)
	if err != nil {
		return nil, err
	}
	return toResponse(resp), nil
}

func toResponse(resp *resty.Response) *Response {
	return &Response{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}
}
