package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/voice-translator/internal/audio"
	"github.com/GriffinCanCode/voice-translator/internal/audio/pcm"
	"github.com/GriffinCanCode/voice-translator/internal/config"
	apperrors "github.com/GriffinCanCode/voice-translator/internal/errors"
	"github.com/GriffinCanCode/voice-translator/internal/grpcclient"
	"github.com/GriffinCanCode/voice-translator/internal/history"
	"github.com/GriffinCanCode/voice-translator/internal/metrics"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/events"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/memory"
	"github.com/GriffinCanCode/voice-translator/internal/orchestrator/transcript"
	"github.com/GriffinCanCode/voice-translator/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newListenCmd(c *cli) *cobra.Command {
	var (
		noPlayback   bool
		includeAudio bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Capture, translate and speak until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, c.cfg, runOptions{playback: !noPlayback, includeAudio: includeAudio})
		},
	}
	cmd.Flags().BoolVar(&noPlayback, "no-playback", false, "do not open an output device")
	cmd.Flags().BoolVar(&includeAudio, "ws-audio", false, "include synthesized audio in WebSocket events")
	return cmd
}

type runOptions struct {
	playback     bool
	includeAudio bool
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	log := slog.Default()

	hist, err := history.Open(cfg.History.DBPath, cfg.History.Verbose)
	if err != nil {
		return err
	}
	defer hist.Close()

	inference, err := grpcclient.New(inferenceConfig(cfg))
	if err != nil {
		return err
	}
	defer inference.Close()

	bus := events.NewBus(cfg.Server.EventBufferSize)
	met := metrics.New(bus.Dropped)
	inference.OnBreakerChange(met.ObserveBreaker)

	batcher := memory.NewBatcher(hist, cfg.History.BatchSize, cfg.History.FlushDelay)
	defer batcher.Stop()
	transcripts := transcript.NewStore(transcriptEntries)

	sinks := events.Multi{met, bus, batcher, transcripts}
	var routed *routedSink
	if opts.playback {
		player, err := audio.NewPlayer(audio.PlayerConfig{Device: cfg.Audio.OutputDevice})
		if err != nil {
			log.Warn("playback unavailable, continuing without it", "error", err)
		} else {
			defer player.Close()
			go player.Run(ctx)
			routed = &routedSink{next: player}
			sinks = append(sinks, routed)
		}
	}

	mgr := orchestrator.New(pipelineConfig(cfg), inference, inference, inference, sinks)
	if routed != nil {
		routed.sessions = mgr
	}

	srv := server.New(server.Deps{
		Orch:        mgr,
		Transcripts: transcripts,
		History:     hist,
		Inference:   inference,
		Services:    []string{grpcclient.ServiceSpeech, grpcclient.ServiceTranslation},
		Metrics:     met.Handler(),
		Middleware:  met.Middleware,
		Events:      bus.C(),
	}, server.Options{AllowedOrigins: cfg.Server.AllowedOrigins, IncludeAudio: opts.includeAudio})
	defer srv.Close()
	defer bus.Close()

	capturer, err := audio.NewCapturer(captureConfig(cfg))
	if err != nil {
		return err
	}
	defer capturer.Close()
	if err := capturer.Start(ctx); err != nil {
		return err
	}
	log.Info("capturing", "device", capturer.Device())
	go pump(ctx, mgr, capturer.Output())

	if cfg.Session.AutoStart {
		id, err := mgr.StartSession(ctx, orchestrator.SessionConfig{})
		if err != nil {
			return err
		}
		log.Info("session started", "session", id)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	capturer.Stop()
	if err := mgr.StopSession(); err != nil && !errors.Is(err, apperrors.ErrNoSession) {
		log.Warn("stop session", "error", err)
	}
	return httpSrv.Shutdown(shutdownCtx)
}

// pump feeds captured segments to the manager until ctx ends or the capture
// channel closes.
func pump(ctx context.Context, mgr *orchestrator.Manager, segments <-chan pcm.Segment) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-segments:
			if !ok {
				return
			}
			err := mgr.HandleSegment(ctx, seg)
			switch {
			case err == nil, errors.Is(err, apperrors.ErrNoSession), errors.Is(err, context.Canceled):
			case errors.Is(err, apperrors.ErrQueueFull):
				slog.Warn("utterance dropped", "error", err)
			default:
				slog.Error("handle segment", "error", err)
			}
		}
	}
}
