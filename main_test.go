package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/tuzkov/reolinkCam/camera"
)

func TestSetLogLevel(t *testing.T) {
	defer loglevel.Set(slog.LevelInfo)

	setLogLevel("DEBUG")
	if loglevel.Level() != slog.LevelDebug {
		t.Errorf("level = %v", loglevel.Level())
	}
	setLogLevel("bogus")
	if loglevel.Level() != slog.LevelDebug {
		t.Error("unknown level must keep the current one")
	}
}

func TestGetServerConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	initConfig()

	viper.Set("camera.ip", "192.168.1.10")
	viper.Set("camera.gateway.username", "gw")
	viper.Set("port", 9000)

	cfg := getServerConfig()
	if cfg.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.IP != "192.168.1.10" || cfg.GatewayUsername != "gw" {
		t.Errorf("unexpected camera config %+v", cfg.Config.Config)
	}
	if cfg.Username != camera.DefaultUsername {
		t.Errorf("username = %q", cfg.Username)
	}
	if cfg.Timeout != 15*time.Second || cfg.SnapshotTimeout != camera.DefaultSnapshotTimeout {
		t.Errorf("timeouts %v %v", cfg.Timeout, cfg.SnapshotTimeout)
	}
	if cfg.StreamInterval != 2*time.Second {
		t.Errorf("stream interval = %v", cfg.StreamInterval)
	}
}
