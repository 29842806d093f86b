// eyedid-sim runs the full tracker stack against a scripted in-process
// engine and a synthetic camera. It needs no engine library or device and
// is used to develop the dashboard and relay consumers.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/teslashibe/go-eyedid/internal/config"
	"github.com/teslashibe/go-eyedid/internal/log"
	"github.com/teslashibe/go-eyedid/pkg/app"
	"github.com/teslashibe/go-eyedid/pkg/camera"
	"github.com/teslashibe/go-eyedid/pkg/engine"
)

func main() {
	configPath := flag.String("config", config.ConfigPath(), "TOML config file")
	level := flag.String("log-level", config.LogLevel(), "Log level: debug, info, warn, error")
	port := flag.String("port", "", "Dashboard port")
	calibrate := flag.Bool("calibrate", false, "Calibrate over the window on start")
	gazeInterval := flag.Duration("gaze-interval", 33*time.Millisecond, "Interval between simulated gaze samples")
	pointTime := flag.Duration("point-time", 1500*time.Millisecond, "Simulated time spent on each calibration point")
	flag.Parse()

	log.Init(*level)

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fatal("failed to load config", err)
	}
	cfg.ApplyEnv()
	if cfg.Engine.LicenseKey == "" {
		cfg.Engine.LicenseKey = "dev_sim"
	}
	if *port != "" {
		cfg.Dashboard.Port = *port
	}
	cfg.Dashboard.Enabled = true
	cfg.Camera.Enabled = true

	synthetic := func(c camera.Config) (camera.Source, error) {
		return camera.NewSynthetic(c.Width, c.Height, c.Framerate), nil
	}
	mock := engine.NewMock()
	a, err := app.New(cfg, app.Options{
		Engine:     mock,
		OpenSource: synthetic,
		Calibrate:  *calibrate,
	})
	if err != nil {
		fatal("configuration error", err)
	}
	if err := a.Init(); err != nil {
		fatal("initialization failed", err)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	h := mock.Last()
	script := &calibrationScript{handle: h, pointTime: *pointTime}
	h.SetHooks(engine.MockHooks{
		OnStartCalibration: script.start,
		OnCollectSamples:   script.collect,
		OnStopCalibration:  script.stop,
	})
	go h.Simulate(ctx, *gazeInterval, float32(cfg.Display.WidthMM), float32(cfg.Display.HeightMM))

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
	}
}

// calibrationScript plays the engine side of a calibration: it walks the
// target points of the requested region, reports progress while samples are
// collected and finishes with a synthetic blob.
type calibrationScript struct {
	handle    *engine.MockHandle
	pointTime time.Duration

	mu      sync.Mutex
	targets [][2]float32
	next    int
	run     int
}

func (s *calibrationScript) start(c engine.MockCalibration) {
	cx, cy := (c.Left+c.Right)/2, (c.Top+c.Bottom)/2
	targets := [][2]float32{{cx, cy}}
	if c.Points == engine.CalibrationPointFive {
		targets = append(targets,
			[2]float32{c.Left, c.Top}, [2]float32{c.Right, c.Top},
			[2]float32{c.Left, c.Bottom}, [2]float32{c.Right, c.Bottom})
	}

	s.mu.Lock()
	s.targets, s.next = targets, 0
	s.run++
	run := s.run
	s.mu.Unlock()

	go func() {
		time.Sleep(s.pointTime / 3)
		s.advance(run)
	}()
}

func (s *calibrationScript) collect() {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	go func() {
		const steps = 4
		for i := 1; i <= steps; i++ {
			time.Sleep(s.pointTime / steps)
			if !s.current(run) {
				return
			}
			s.handle.EmitProgress(float32(i) / steps)
		}
		s.advance(run)
	}()
}

func (s *calibrationScript) stop() {
	s.mu.Lock()
	s.run++
	s.mu.Unlock()
	go s.handle.EmitCanceled(nil)
}

func (s *calibrationScript) current(run int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run == run
}

// advance shows the next target or finishes once every target was collected.
func (s *calibrationScript) advance(run int) {
	s.mu.Lock()
	if s.run != run {
		s.mu.Unlock()
		return
	}
	if s.next < len(s.targets) {
		p := s.targets[s.next]
		s.next++
		s.mu.Unlock()
		s.handle.EmitNextPoint(p[0], p[1])
		return
	}
	blob := make([]float32, 0, len(s.targets)*2)
	for _, p := range s.targets {
		blob = append(blob, p[0], p[1])
	}
	s.run++
	s.mu.Unlock()
	s.handle.EmitFinished(blob)
}

func fatal(msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
