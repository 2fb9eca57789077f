//go:build linux

package vision

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

const (
	captureWidth  = 320
	captureHeight = 240
	// captureFPS is assumed for converting a requested burst duration into
	// a frame count; real devices vary, this is a reasonable default for
	// the onboard webcams this daemon targets.
	captureFPS = 15
)

// v4lCamera opens a Video4Linux2 device via gocv for the duration of a
// single glance request.
type v4lCamera struct {
	deviceIndex int
}

// NewV4LCamera returns a Camera backed by gocv.VideoCaptureDevice.
func NewV4LCamera(deviceIndex int) Camera {
	return v4lCamera{deviceIndex: deviceIndex}
}

func (c v4lCamera) Capture(duration time.Duration) ([]Frame, error) {
	vc, err := gocv.OpenVideoCapture(c.deviceIndex)
	if err != nil {
		return nil, fmt.Errorf("vision: open camera %d: %w", c.deviceIndex, err)
	}
	defer vc.Close()

	vc.Set(gocv.VideoCaptureFrameWidth, captureWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, captureHeight)

	frameCount := int(duration.Seconds() * captureFPS)
	if frameCount < 1 {
		frameCount = 1
	}

	frames := make([]Frame, 0, frameCount)
	mat := gocv.NewMat()
	defer mat.Close()

	interval := duration / time.Duration(frameCount)
	for i := 0; i < frameCount; i++ {
		if !vc.Read(&mat) || mat.Empty() {
			continue
		}
		data := make([]byte, mat.Total()*mat.ElemSize())
		copy(data, mat.ToBytes())
		frames = append(frames, Frame{Width: mat.Cols(), Height: mat.Rows(), Data: data})
		if interval > 0 {
			time.Sleep(interval)
		}
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("vision: no frames captured from camera %d", c.deviceIndex)
	}
	return frames, nil
}
