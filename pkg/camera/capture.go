package camera

import (
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-eyedid/internal/log"
)

// Capture reads frames from a video device with OpenCV and converts them
// from BGR to packed RGB.
type Capture struct {
	config Config

	mu     sync.Mutex
	cap    *gocv.VideoCapture
	bgr    gocv.Mat
	rgb    gocv.Mat
	closed bool
}

// OpenCapture opens the device described by cfg.
func OpenCapture(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	api := backends[cfg.Backend]
	vc, err := gocv.OpenVideoCaptureWithAPI(cfg.DeviceID, api)
	if err != nil {
		return nil, fmt.Errorf("camera: open device %d: %w", cfg.DeviceID, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	log.Info("camera opened",
		"device", cfg.DeviceID,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
		"fps", vc.Get(gocv.VideoCaptureFPS))

	return &Capture{
		config: cfg,
		cap:    vc,
		bgr:    gocv.NewMat(),
		rgb:    gocv.NewMat(),
	}, nil
}

// Read implements Source. The returned Data is valid until the next Read.
func (c *Capture) Read() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Frame{}, ErrClosed
	}
	if ok := c.cap.Read(&c.bgr); !ok || c.bgr.Empty() {
		return Frame{}, fmt.Errorf("camera: device %d returned no frame", c.config.DeviceID)
	}
	ts := time.Now().UnixMilli()

	if c.config.Mirror {
		gocv.Flip(c.bgr, &c.bgr, 1)
	}
	gocv.CvtColor(c.bgr, &c.rgb, gocv.ColorBGRToRGB)

	return Frame{
		Timestamp: ts,
		Data:      c.rgb.ToBytes(),
		Width:     c.rgb.Cols(),
		Height:    c.rgb.Rows(),
	}, nil
}

// Close releases the device.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.bgr.Close()
	c.rgb.Close()
	return c.cap.Close()
}

// EncodeJPEG encodes an RGB frame for dashboard previews.
func EncodeJPEG(f Frame, quality int) ([]byte, error) {
	rgb, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("camera: wrap frame: %w", err)
	}
	defer rgb.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, bgr, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode jpeg: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
