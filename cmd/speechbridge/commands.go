package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ali-AlHumidi/speechbridge/internal/audio"
	"github.com/Ali-AlHumidi/speechbridge/internal/server"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Translate the microphone in the foreground until interrupted",
	RunE:  runSession,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control API",
	Long: `Start the HTTP control API. Sessions are started and stopped with
POST /start?target=xx and POST /stop.`,
	RunE: runServe,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input and output devices",
	RunE:  runDevices,
}

// runSession starts one session and stops it on SIGINT or SIGTERM
func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer := initLogger(cfg.Logging)
	defer closer.Close()

	target, _ := cmd.Flags().GetString("target")
	if target == "" {
		target = cfg.Translation.DefaultTarget
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize service", slog.String("error", err.Error()))
		return err
	}

	if err := a.controller.Start(target); err != nil {
		a.Close()
		logger.Error("Failed to start session", slog.String("error", err.Error()))
		return err
	}

	// Wait returns early only when the session ends by itself
	waitErr := a.controller.Wait(ctx)
	if waitErr != nil {
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeoutDuration())
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", slog.String("error", err.Error()))
	}

	status := a.controller.Status()
	logger.Info("Session summary",
		slog.String("session_id", status.SessionID),
		slog.Uint64("frames", status.Capture.Frames),
		slog.Uint64("finals", status.Stage.Finals),
		slog.Uint64("played", status.Stage.Played),
	)

	if waitErr == nil && status.LastError != "" {
		return fmt.Errorf("session failed: %s", status.LastError)
	}
	return nil
}

// runServe runs the HTTP control API until interrupted
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, closer := initLogger(cfg.Logging)
	defer closer.Close()

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize service", slog.String("error", err.Error()))
		return err
	}

	httpServer := server.NewHTTPServer(server.HTTPServerConfig{
		Address:       cfg.HTTP.Addr(),
		DefaultTarget: cfg.Translation.DefaultTarget,
	}, a.controller, a.registry, a.metrics, logger)

	if err := httpServer.Start(); err != nil {
		a.Close()
		return err
	}

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("http_address", cfg.HTTP.Addr()),
	)

	<-ctx.Done()
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.GetShutdownTimeoutDuration())
	defer cancel()

	// Stop accepting requests before releasing the devices
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
	return nil
}

// runDevices prints the devices usable for capture and playback
func runDevices(cmd *cobra.Command, args []string) error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tHOST API\tIN\tOUT\tRATE\tDEFAULT")
	for _, d := range devices {
		var def string
		switch {
		case d.DefaultInput && d.DefaultOutput:
			def = "input,output"
		case d.DefaultInput:
			def = "input"
		case d.DefaultOutput:
			def = "output"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.0f\t%s\n",
			d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate, def)
	}
	return w.Flush()
}
