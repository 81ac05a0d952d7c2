package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/api"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/capture"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/capture/camera"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/events"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/events/mqtt"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/imaging"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/session"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/webhook"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/ws"
)

type watchOptions struct {
	device string
	replay string
	fps    float64
	loop   bool
}

func newWatchCommand(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recognize faces from a camera or a replayed image directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWatch(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.device, "device", "", "Camera index or stream URL (default: CAMERA_INDEX)")
	cmd.Flags().StringVar(&opts.replay, "replay", "", "Replay the images in this directory instead of a camera")
	cmd.Flags().Float64Var(&opts.fps, "fps", 0, "Frames per second (default: CAPTURE_FPS)")
	cmd.Flags().BoolVar(&opts.loop, "loop", false, "Restart the replay when it reaches the last image")
	return cmd
}

func (a *app) source(opts watchOptions) capture.Source {
	fps := opts.fps
	if fps <= 0 {
		fps = a.cfg.CaptureFPS
	}

	if opts.replay != "" {
		return capture.NewReplay(opts.replay, fps, opts.loop)
	}

	device := opts.device
	if device == "" {
		device = strconv.Itoa(a.cfg.CameraIndex)
	}
	return camera.New(camera.Config{
		Device: device,
		Width:  a.cfg.FrameWidth,
		Height: a.cfg.FrameHeight,
		FPS:    fps,
	})
}

// publishers connects the configured event sinks. stop must run after the
// recorder has flushed.
func (a *app) publishers(hub *ws.Hub) (pubs []events.Publisher, stop func(), err error) {
	var stops []func()
	stop = func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if hub != nil {
		pubs = append(pubs, hub)
	}

	if a.cfg.WebhookURL != "" {
		whCfg := webhook.Config{
			URL:          a.cfg.WebhookURL,
			Secret:       a.cfg.WebhookSecret,
			Timeout:      a.cfg.WebhookTimeout,
			MaxAttempts:  a.cfg.WebhookMaxAttempts,
			DrainTimeout: a.cfg.WebhookDrainTimeout,
		}
		worker := webhook.NewWorker(webhook.NewService(whCfg), whCfg, a.logger)
		worker.Start()
		pubs = append(pubs, worker)
		stops = append(stops, worker.Stop)
	}

	if a.cfg.MQTTBroker != "" {
		pub, err := mqtt.Connect(mqtt.Config{
			Broker:   a.cfg.MQTTBroker,
			ClientID: a.cfg.MQTTClientID,
			Topic:    a.cfg.MQTTTopic,
			Username: a.cfg.MQTTUsername,
			Password: a.cfg.MQTTPassword,
			QoS:      1,
		}, a.logger)
		if err != nil {
			stop()
			return nil, nil, err
		}
		pubs = append(pubs, pub)
		stops = append(stops, func() { _ = pub.Close() })
	}

	return pubs, stop, nil
}

func (a *app) runWatch(ctx context.Context, out io.Writer, opts watchOptions) error {
	svc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var hub *ws.Hub
	if a.cfg.OpsAddr != "" {
		hub = ws.NewHub()
		go hub.Run(watchCtx)
	}

	pubs, stopPubs, err := a.publishers(hub)
	if err != nil {
		return err
	}
	defer stopPubs()

	recorder := events.NewRecorder(svc.storage.logs, a.logger, events.Config{
		BufferSize:     a.cfg.EventBufferSize,
		BatchInterval:  a.cfg.EventBatchInterval,
		PublishTimeout: a.cfg.EventPublishTimeout,
	}, pubs...)
	recorder.Start()
	defer recorder.Stop()

	sess := session.New(a.source(opts), svc.provider, svc.registry, recorder, session.Config{
		Interval:      a.cfg.FrameInterval,
		Tolerance:     a.cfg.MatchTolerance,
		Dimension:     a.cfg.EmbeddingDim,
		MinConfidence: a.cfg.EventMinConfidence,
	}, a.logger)

	go svc.registry.Watch(watchCtx, a.cfg.RegistryRefreshInterval)

	if a.cfg.OpsAddr != "" {
		router := api.NewRouter(a.logger, api.Dependencies{
			DB:       svc.storage.db,
			Session:  sess,
			Recorder: recorder,
			Registry: svc.registry,
			Events:   hub,
			Version:  Version,
		})
		router.Setup()
		go func() {
			a.logger.Info("ops server listening", "addr", a.cfg.OpsAddr)
			if err := router.Listen(a.cfg.OpsAddr); err != nil {
				a.logger.Error("ops server stopped", "error", err)
			}
		}()
		defer func() { _ = router.Shutdown() }()
	}

	printer := &sightingPrinter{out: out}
	err = sess.Run(ctx, printer.handle)

	st := sess.Stats()
	a.logger.Info("watch finished",
		"frames", st.FramesSeen,
		"processed", st.FramesProcessed,
		"matches", st.Matches,
		"failures", st.Failures,
	)

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sightingPrinter writes a line whenever the set of faces in view changes,
// not once per frame.
type sightingPrinter struct {
	out  io.Writer
	last string
}

func (p *sightingPrinter) handle(_ imaging.Image, results []domain.MatchResult, err error) {
	if err != nil {
		return
	}

	names := make([]string, 0, len(results))
	for _, r := range results {
		if r.Matched() {
			names = append(names, fmt.Sprintf("%s (%.2f)", r.DisplayName, r.Confidence))
		} else {
			names = append(names, "unknown")
		}
	}
	line := strings.Join(names, ", ")
	if line == p.last {
		return
	}
	p.last = line

	if line == "" {
		line = "no faces"
	}
	fmt.Fprintf(p.out, "%s  %s\n", time.Now().Format("15:04:05"), line)
}

