package rtsp

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"
)

type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// NewDialer returns the dial function used for the RTSP connection. An empty
// proxyAddr dials directly, otherwise the connection goes through the SOCKS5
// proxy at proxyAddr (host:port).
func NewDialer(proxyAddr string) (DialContextFunc, error) {
	direct := &net.Dialer{}
	if proxyAddr == "" {
		return direct.DialContext, nil
	}

	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, direct)
	if err != nil {
		return nil, fmt.Errorf("fail to create socks5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return dialer.Dial(network, address)
	}, nil
}
