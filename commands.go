package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tuzkov/reolinkCam/camera"
	"github.com/tuzkov/reolinkCam/server"
	"github.com/tuzkov/reolinkCam/service"
)

// run executes fn with a context cancelled on SIGINT/SIGTERM and turns its error
// into a non-zero exit.
func run(fn func(ctx context.Context, log *slog.Logger) error) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := newLogger()
		if err := fn(ctx, log); err != nil {
			log.Error("command failed", "cmd", cmd.Name(), "err", err)
			stop()
			os.Exit(1)
		}
	}
}

func openCamera(ctx context.Context, log *slog.Logger) (*camera.Reolink, error) {
	cfg := getCameraConfig()
	cam, err := camera.New(ctx, log, &cfg)
	if err != nil {
		return nil, fmt.Errorf("fail to create camera: %w", err)
	}
	return cam, nil
}

// logout is best effort, the command result does not depend on it
func logout(log *slog.Logger, cam *camera.Reolink) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cam.Logout(ctx); err != nil {
		log.Warn("logout failed", "err", err)
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots, a JPEG preview stream and camera settings over HTTP",
	Run: run(func(ctx context.Context, log *slog.Logger) error {
		cfg := getServerConfig()
		log.Info("Starting service", "addr", cfg.Addr, "camera", cfg.IP, "loglevel", cfg.LogLevel)

		svc, err := service.NewService(ctx, log, &cfg.Config)
		if err != nil {
			return fmt.Errorf("fail to create service: %w", err)
		}
		defer svc.Close(context.Background())

		srv, err := server.NewServer(log, cfg, svc)
		if err != nil {
			return fmt.Errorf("fail to create server: %w", err)
		}

		errs := make(chan error, 1)
		go func() {
			errs <- srv.Start()
		}()
		select {
		case err := <-errs:
			return fmt.Errorf("fail to listen: %w", err)
		case <-ctx.Done():
			log.Info("Shutting down")
			return nil
		}
	}),
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture a still image to a file",
	Run: run(func(ctx context.Context, log *slog.Logger) error {
		cfg := &service.Config{
			Config:        getCameraConfig(),
			SnapshotWidth: viper.GetUint("snapshot.width"),
		}
		// Snap authenticates with user/password parameters, no session needed
		cfg.DeferLogin = true

		cam, err := camera.New(ctx, log, &cfg.Config)
		if err != nil {
			return fmt.Errorf("fail to create camera: %w", err)
		}
		svc := service.NewWithCamera(log, cfg, cam)

		frame, err := svc.Snapshot(ctx, 0)
		if err != nil {
			return err
		}

		output := viper.GetString("snapshot.output")
		if err := os.WriteFile(output, frame, 0644); err != nil {
			return fmt.Errorf("fail to write snapshot: %w", err)
		}
		log.Info("Snapshot saved", "file", output, "size", len(frame))
		return nil
	}),
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var rawOutput bool

// printConfig prints the typed struct, or with --raw the device value as is
func printConfig(typed any, raw json.RawMessage) error {
	if rawOutput && len(raw) != 0 {
		return printJSON(raw)
	}
	return printJSON(typed)
}

var encodingCmd = &cobra.Command{
	Use:   "encoding",
	Short: "Print the encoding settings of the main and sub streams",
	Run: run(func(ctx context.Context, log *slog.Logger) error {
		cam, err := openCamera(ctx, log)
		if err != nil {
			return err
		}
		defer logout(log, cam)

		enc, err := cam.GetRecordingEncoding(ctx)
		if err != nil {
			return fmt.Errorf("fail to get encoding: %w", err)
		}
		return printConfig(enc, enc.Raw)
	}),
}

var recordingCmd = &cobra.Command{
	Use:   "recording",
	Short: "Print the advanced recording setup",
	Run: run(func(ctx context.Context, log *slog.Logger) error {
		cam, err := openCamera(ctx, log)
		if err != nil {
			return err
		}
		defer logout(log, cam)

		rec, err := cam.GetRecordingAdvanced(ctx)
		if err != nil {
			return fmt.Errorf("fail to get recording: %w", err)
		}
		return printConfig(rec, rec.Raw)
	}),
}

type streamStats struct {
	Profile  camera.Profile `json:"profile"`
	Tracks   []string       `json:"tracks"`
	Packets  int            `json:"packets"`
	Bytes    int            `json:"bytes"`
	Duration string         `json:"duration"`
}

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Preview the RTSP stream and report packet statistics",
	Run: run(func(ctx context.Context, log *slog.Logger) error {
		profile, err := camera.ParseProfile(viper.GetString("stream.profile"))
		if err != nil {
			return err
		}

		cfg := getCameraConfig()
		// RTSP authenticates on its own
		cfg.DeferLogin = true
		cam, err := camera.New(ctx, log, &cfg)
		if err != nil {
			return fmt.Errorf("fail to create camera: %w", err)
		}

		var out *os.File
		if path := viper.GetString("stream.output"); path != "" {
			out, err = os.Create(path)
			if err != nil {
				return fmt.Errorf("fail to create output: %w", err)
			}
			defer out.Close()
		}

		duration := viper.GetDuration("stream.duration")
		ctx, cancel := context.WithTimeout(ctx, duration)
		defer cancel()

		start := time.Now()
		stats := streamStats{Profile: profile}
		err = cam.WithVideoStream(ctx, profile, func(s *camera.Stream) error {
			stats.Tracks = s.Tracks()
			for {
				select {
				case <-ctx.Done():
					return nil
				case pkt, ok := <-s.Packets():
					if !ok {
						return s.Err()
					}
					stats.Packets++
					stats.Bytes += len(pkt.Payload)
					if out != nil {
						if _, err := out.Write(pkt.Payload); err != nil {
							return fmt.Errorf("fail to write payload: %w", err)
						}
					}
				}
			}
		})
		if err != nil {
			return err
		}

		stats.Duration = time.Since(start).Round(time.Millisecond).String()
		return printJSON(stats)
	}),
}

func init() {
	snapshotCmd.Flags().StringP("output", "o", "snapshot.jpg", "Output file")
	viper.BindPFlag("snapshot.output", snapshotCmd.Flags().Lookup("output"))
	snapshotCmd.Flags().Uint("width", 0, "Scale the image to this width")
	viper.BindPFlag("snapshot.width", snapshotCmd.Flags().Lookup("width"))
	snapshotCmd.Flags().Duration("timeout", camera.DefaultSnapshotTimeout, "Snapshot request timeout")
	viper.BindPFlag("snapshot.timeout", snapshotCmd.Flags().Lookup("timeout"))

	for _, cmd := range []*cobra.Command{encodingCmd, recordingCmd} {
		cmd.Flags().BoolVar(&rawOutput, "raw", false, "Print the device answer unmodified")
	}

	streamCmd.Flags().String("profile", string(camera.ProfileMain), "Stream profile (main or sub)")
	viper.BindPFlag("stream.profile", streamCmd.Flags().Lookup("profile"))
	streamCmd.Flags().Duration("duration", 10*time.Second, "Preview duration")
	viper.BindPFlag("stream.duration", streamCmd.Flags().Lookup("duration"))
	streamCmd.Flags().String("rtsp-proxy", "", "SOCKS5 proxy host:port for the RTSP connection")
	viper.BindPFlag("camera.rtspProxy", streamCmd.Flags().Lookup("rtsp-proxy"))
	streamCmd.Flags().StringP("output", "o", "", "Write raw RTP payloads to this file")
	viper.BindPFlag("stream.output", streamCmd.Flags().Lookup("output"))

	serveCmd.Flags().Int("port", 8080, "Listen port")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}
