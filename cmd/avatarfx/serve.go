package main

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/avatarfx/av"
	"github.com/opd-ai/avatarfx/av/compositor"
	"github.com/opd-ai/avatarfx/avatar"
	"github.com/opd-ai/avatarfx/config"
	"github.com/opd-ai/avatarfx/expression"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen, landmarkURL string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Drive the avatar from a live landmark feed",
		Long: `Connect to a websocket face-tracker feed, map and smooth the blendshape
scores every frame, drive an in-memory avatar rig and crossfade the emotion
images. Serves /composite.png, /pose, /metrics and /healthz over HTTP.
A preset file, when configured, is watched and applied on every save.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Metrics.Listen = listen
			}
			if cmd.Flags().Changed("landmarks") {
				cfg.Expression.LandmarkURL = landmarkURL
			}
			return runServe(cmd.Context(), opts.logger, cfg)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":9464", "HTTP listen address")
	cmd.Flags().StringVar(&landmarkURL, "landmarks", "", "websocket landmark feed URL")

	return cmd
}

func runServe(parent context.Context, logger *logrus.Logger, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := cfg.SessionConfig()
	if err != nil {
		return err
	}

	metrics := av.NewMetrics()
	session := av.NewSession(sc, nil, metrics)
	defer session.Close()

	if cfg.Preset != "" {
		watcher, err := config.WatchPreset(cfg.Preset, func(p *config.Preset) {
			p.ApplyTo(session)
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	rig := newDefaultRig()
	task, err := session.NewVideoTask(ctx, rig)
	if err != nil {
		return err
	}

	driver, err := av.NewDriver(task, sc.FrameRate)
	if err != nil {
		return err
	}

	source := expression.NewWebSocketSource(cfg.Expression.LandmarkURL, session.Tracker())
	if err := source.Start(ctx); err != nil {
		return err
	}
	defer source.Stop()

	metrics.OnReport(func(r av.Report) {
		logger.WithFields(logrus.Fields{
			"function":     "serve.report",
			"frames":       r.Stages[av.StageFrame].Count,
			"frame_mean":   r.Stages[av.StageFrame].Mean,
			"frame_peak":   r.Stages[av.StageFrame].Peak,
			"video_misses": r.VideoDeadlineMisses,
			"load_errors":  r.LoadFailures,
			"feed_frames":  source.Received(),
			"connected":    source.IsConnected(),
		}).Info("Pipeline report")
	})
	if cfg.Metrics.ReportInterval > 0 {
		if err := metrics.Start(cfg.Metrics.ReportInterval); err != nil {
			return err
		}
		defer metrics.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.Listen,
		Handler:           newServeMux(task.Compositor(), rig, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logger.WithFields(logrus.Fields{
		"function":   "serve",
		"session_id": session.ID.String(),
		"listen":     cfg.Metrics.Listen,
		"landmarks":  cfg.Expression.LandmarkURL,
	}).Info("Serving avatar pipeline")

	driverErr := make(chan error, 1)
	go func() { driverErr <- driver.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		return err
	case <-driverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newDefaultRig creates an in-memory rig with every slot name the pose
// driver knows plus the head joint.
func newDefaultRig() *avatar.MemoryRig {
	var slots []string
	for _, e := range expression.Emotions {
		slots = append(slots, avatar.SlotNames(e)...)
	}
	return avatar.NewMemoryRig(slots, []string{avatar.HeadBone})
}

func newServeMux(comp *compositor.Compositor, rig *avatar.MemoryRig, metrics *av.Metrics) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /composite.png", func(w http.ResponseWriter, r *http.Request) {
		img := comp.Snapshot()
		if img == nil {
			http.Error(w, "compositor closed", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		if err := png.Encode(w, img); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "serve.composite",
				"error":    err.Error(),
			}).Debug("Composite write failed")
		}
	})

	mux.HandleFunc("GET /pose", func(w http.ResponseWriter, r *http.Request) {
		head, _ := rig.Bone(avatar.HeadBone)
		body := struct {
			Expressions map[string]float32 `json:"expressions"`
			Head        [4]float32         `json:"head"` // w, x, y, z
		}{
			Expressions: rig.Expressions(),
			Head:        [4]float32{head.W, head.X(), head.Y(), head.Z()},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	return mux
}
