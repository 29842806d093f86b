package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config invalid: %v", errs)
	}
	for _, name := range PresetNames() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := p.Validate(); len(errs) != 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny", func(c *Config) { c.Width = 10 }},
		{"zero fps", func(c *Config) { c.Framerate = 0 }},
		{"bad backend", func(c *Config) { c.Backend = "dshow2" }},
		{"negative device", func(c *Config) { c.DeviceID = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if len(cfg.Validate()) == 0 {
				t.Error("expected validation errors")
			}
		})
	}
}

func TestManagerUpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())
	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	err := m.UpdateConfig(map[string]interface{}{
		"preset":    "720p",
		"framerate": float64(15),
		"mirror":    true,
	})
	if err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}
	cfg := m.GetConfig()
	if cfg.Width != 1280 || cfg.Framerate != 15 || !cfg.Mirror {
		t.Errorf("unexpected config %+v", cfg)
	}
	if len(applied) != 1 {
		t.Errorf("OnConfigChange called %d times, want 1", len(applied))
	}

	if err := m.UpdateConfig(map[string]interface{}{"preset": "8k"}); err == nil {
		t.Error("expected unknown preset error")
	}
	if err := m.UpdateConfig(map[string]interface{}{"width": float64(5)}); err == nil {
		t.Error("expected validation error")
	}
	if m.GetConfig().Width != 1280 {
		t.Error("invalid update must not change config")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	frames []int64
	accept func(n int) bool
	err    error
}

func (s *recordingSink) AddFrame(ts int64, buf []byte, w, h int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if len(buf) != w*h*3 {
		return false, errors.New("bad frame size")
	}
	s.frames = append(s.frames, ts)
	return s.accept == nil || s.accept(len(s.frames)), nil
}

func TestRunCountsFrames(t *testing.T) {
	var clock int64
	src := &Synthetic{Width: 8, Height: 6, Clock: func() int64 { clock += 10; return clock }}
	sink := &recordingSink{accept: func(n int) bool { return n%2 == 0 }}

	ctx, cancel := context.WithCancel(context.Background())
	stats := &Stats{}
	done := make(chan error, 1)
	go func() { done <- Run(ctx, src, sink, stats) }()

	for stats.Read.Load() < 20 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	_ = src.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}

	if stats.Accepted.Load()+stats.Rejected.Load() != stats.Read.Load() {
		t.Errorf("accepted %d + rejected %d != read %d",
			stats.Accepted.Load(), stats.Rejected.Load(), stats.Read.Load())
	}
	if stats.Accepted.Load() == 0 || stats.Rejected.Load() == 0 {
		t.Error("expected both accepted and rejected frames")
	}
}

func TestRunSourceError(t *testing.T) {
	src := &Synthetic{Width: 2, Height: 2}
	_ = src.Close()
	err := Run(context.Background(), src, &recordingSink{}, nil)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Run = %v, want ErrClosed", err)
	}
}

func TestRunSinkErrorsCounted(t *testing.T) {
	src := &Synthetic{Width: 2, Height: 2}
	sink := &recordingSink{err: errors.New("not initialized")}
	stats := &Stats{}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for stats.Errors.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	if err := Run(ctx, src, sink, stats); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if stats.Accepted.Load() != 0 {
		t.Error("no frame should be accepted")
	}
}

func TestEncodeJPEG(t *testing.T) {
	src := NewSynthetic(64, 48, 1000)
	f, err := src.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	jpeg, err := EncodeJPEG(f, 80)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if len(jpeg) < 4 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		t.Errorf("not a JPEG stream: % x", jpeg[:min(4, len(jpeg))])
	}
}

func TestPreviewEveryNth(t *testing.T) {
	sink := &recordingSink{}
	var previews int
	active := true
	p := &Preview{
		Sink:    sink,
		Every:   3,
		Quality: 70,
		Send:    func([]byte) { previews++ },
		Active:  func() bool { return active },
	}

	buf := make([]byte, 16*12*3)
	for i := 0; i < 9; i++ {
		if _, err := p.AddFrame(int64(i), buf, 16, 12); err != nil {
			t.Fatalf("AddFrame: %v", err)
		}
	}
	if previews != 3 {
		t.Errorf("previews = %d, want 3", previews)
	}
	if len(sink.frames) != 9 {
		t.Errorf("sink saw %d frames, want 9", len(sink.frames))
	}

	active = false
	for i := 0; i < 3; i++ {
		p.AddFrame(int64(i), buf, 16, 12)
	}
	if previews != 3 {
		t.Error("inactive preview must not encode")
	}
}
