package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tuzkov/reolinkCam/camera"
	"github.com/tuzkov/reolinkCam/server"
	"github.com/tuzkov/reolinkCam/service"
)

var loglevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:   "reolinkcam",
	Short: "Client for the Reolink camera HTTP API and RTSP stream",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogLevel(viper.GetString("loglevel"))
	},
}

func initConfig() {
	// .env is optional
	_ = godotenv.Load()

	viper.SetDefault("camera.username", camera.DefaultUsername)
	viper.SetDefault("camera.password", "")
	viper.SetDefault("camera.https", false)
	viper.SetDefault("camera.deferLogin", false)
	viper.SetDefault("camera.channel", 0)
	viper.SetDefault("camera.timeout", 15*time.Second)
	viper.SetDefault("snapshot.timeout", camera.DefaultSnapshotTimeout)
	viper.SetDefault("snapshot.width", 0)
	viper.SetDefault("stream.interval", 2*time.Second)
	viper.SetDefault("port", 8080)
	viper.SetDefault("loglevel", "info")

	viper.SetEnvPrefix("reolink")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.ReadInConfig()
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: loglevel,
	}))
}

func getCameraConfig() camera.Config {
	return camera.Config{
		IP:              viper.GetString("camera.ip"),
		Username:        viper.GetString("camera.username"),
		Password:        viper.GetString("camera.password"),
		HTTPS:           viper.GetBool("camera.https"),
		DeferLogin:      viper.GetBool("camera.deferLogin"),
		Proxy:           viper.GetString("camera.proxy"),
		RTSPProxy:       viper.GetString("camera.rtspProxy"),
		Channel:         viper.GetInt("camera.channel"),
		Timeout:         viper.GetDuration("camera.timeout"),
		SnapshotTimeout: viper.GetDuration("snapshot.timeout"),
		GatewayUsername: viper.GetString("camera.gateway.username"),
		GatewayPassword: viper.GetString("camera.gateway.password"),
	}
}

func getServerConfig() *server.Config {
	return &server.Config{
		Addr:     ":" + viper.GetString("port"),
		LogLevel: viper.GetString("loglevel"),

		Config: service.Config{
			Config:         getCameraConfig(),
			SnapshotWidth:  viper.GetUint("snapshot.width"),
			StreamInterval: viper.GetDuration("stream.interval"),
		},
	}
}

func setLogLevel(level string) {
	level = strings.ToLower(level)
	switch level {
	case "debug":
		loglevel.Set(slog.LevelDebug)
	case "info":
		loglevel.Set(slog.LevelInfo)
	case "warn":
		loglevel.Set(slog.LevelWarn)
	case "error":
		loglevel.Set(slog.LevelError)
	default:
		slog.Warn("unknown log level, using INFO instead", "level", level)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("ip", "", "Camera address")
	viper.BindPFlag("camera.ip", flags.Lookup("ip"))
	flags.StringP("username", "u", camera.DefaultUsername, "Camera user")
	viper.BindPFlag("camera.username", flags.Lookup("username"))
	flags.StringP("password", "p", "", "Camera password")
	viper.BindPFlag("camera.password", flags.Lookup("password"))
	flags.Bool("https", false, "Connect to the camera over https")
	viper.BindPFlag("camera.https", flags.Lookup("https"))
	flags.String("proxy", "", "Proxy URL for camera HTTP traffic (http:// or socks5://)")
	viper.BindPFlag("camera.proxy", flags.Lookup("proxy"))
	flags.String("loglevel", "info", "Log level (debug, info, warn, error)")
	viper.BindPFlag("loglevel", flags.Lookup("loglevel"))

	rootCmd.AddCommand(serveCmd, snapshotCmd, encodingCmd, recordingCmd, streamCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
