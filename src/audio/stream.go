package audio

import (
	"context"
	"io"
)

const (
	bitDepthInBytes = 2
	bytesPerFrame   = bitDepthInBytes * channelNum
)

// Callback is the driver contract: fill out with interleaved stereo frames and
// report whether the stream should continue.
type Callback func(out []float32) bool

// blockReader adapts a Callback to the pull-style io.Reader oto plays from.
// Frames come out of the callback in fixed blocks and are served one 16-bit
// frame at a time, so any read size works without allocation.
type blockReader struct {
	ctx     context.Context
	cb      Callback
	block   []float32 // length: framesPerBlock * channelNum
	pos     int
	stopped bool
}

var _ io.Reader = (*blockReader)(nil)

// NewBlockReader ...
func NewBlockReader(ctx context.Context, cb Callback, framesPerBlock int) io.Reader {
	block := make([]float32, framesPerBlock*channelNum)
	return &blockReader{
		ctx:   ctx,
		cb:    cb,
		block: block,
		pos:   len(block),
	}
}

func (r *blockReader) Read(buf []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, io.EOF
	default:
	}
	frames := len(buf) / bytesPerFrame
	n := 0
	for i := 0; i < frames; i++ {
		if r.pos >= len(r.block) {
			if r.stopped {
				break
			}
			r.stopped = !r.cb(r.block)
			r.pos = 0
		}
		writeSample(buf[n:], r.block[r.pos])
		writeSample(buf[n+bitDepthInBytes:], r.block[r.pos+1])
		r.pos += channelNum
		n += bytesPerFrame
	}
	if n == 0 && frames > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// writeSample stores value as signed 16-bit little endian, saturating at ±1.
func writeSample(buf []byte, value float32) {
	const max = 32767
	if value > 1 {
		value = 1
	}
	if value < -1 {
		value = -1
	}
	b := int16(value * max)
	buf[0] = byte(b)
	buf[1] = byte(b >> 8)
}
