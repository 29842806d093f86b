package camera

import "github.com/teslashibe/go-eyedid/internal/log"

// Preview is a FrameSink that forwards to Sink and hands every Every-th
// frame to Send as a JPEG. Encoding is skipped while Active reports false.
type Preview struct {
	Sink    FrameSink
	Every   int
	Quality int
	Send    func(jpeg []byte)
	Active  func() bool

	n int
}

// AddFrame implements FrameSink. It is not safe for concurrent use.
func (p *Preview) AddFrame(timestamp int64, buffer []byte, width, height int) (bool, error) {
	ok, err := p.Sink.AddFrame(timestamp, buffer, width, height)

	p.n++
	if p.Send == nil || p.Every <= 0 || p.n%p.Every != 0 {
		return ok, err
	}
	if p.Active != nil && !p.Active() {
		return ok, err
	}
	jpeg, encErr := EncodeJPEG(Frame{Timestamp: timestamp, Data: buffer, Width: width, Height: height}, p.Quality)
	if encErr != nil {
		log.Debug("preview encode failed", "error", encErr)
		return ok, err
	}
	p.Send(jpeg)
	return ok, err
}
