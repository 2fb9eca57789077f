package vision

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/agalue/lva/internal/ipc"
)

// burstDuration is the camera capture window per glance (spec section
// 4.9: 0.7-1.2s); we use the midpoint.
const burstDuration = 900 * time.Millisecond

// Server is visd's request/reply loop: stateless between requests, and
// rejects a second concurrent request with Error{busy} rather than
// queuing it (spec section 4.9).
type Server struct {
	camera   Camera
	detector FaceDetector

	busy atomic.Bool
}

// NewServer constructs a vision Server.
func NewServer(camera Camera, detector FaceDetector) *Server {
	return &Server{camera: camera, detector: detector}
}

// Handle implements ipc.Handler: dispatches VISION_GLANCE_REQUEST,
// ignores everything else.
func (s *Server) Handle(conn *ipc.Conn, env ipc.Envelope) {
	if env.Type != ipc.TypeVisionGlanceReq {
		return
	}
	var req glanceRequestPayload
	if err := decodePayload(env.Payload, &req); err != nil {
		log.Printf("[visd] malformed request: %v", err)
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		conn.Send(resultEnvelope(req.RequestID, "Error", 0, 0, "busy"))
		return
	}

	go func() {
		defer s.busy.Store(false)
		s.process(conn, req.RequestID)
	}()
}

func (s *Server) process(conn *ipc.Conn, requestID string) {
	start := time.Now()

	frames, err := s.camera.Capture(burstDuration)
	if err != nil {
		log.Printf("[visd] camera error: %v", err)
		conn.Send(resultEnvelope(requestID, "Error", 0, time.Since(start).Seconds()*1000, "camera"))
		return
	}

	kind, confidence, err := s.detector.Detect(frames)
	if err != nil {
		log.Printf("[visd] detector error: %v", err)
		conn.Send(resultEnvelope(requestID, "Error", 0, time.Since(start).Seconds()*1000, "detector"))
		return
	}

	conn.Send(resultEnvelope(requestID, kind, confidence, time.Since(start).Seconds()*1000, ""))
}

func resultEnvelope(requestID, verdict string, confidence float32, latencyMs float64, errStr string) ipc.Envelope {
	return ipc.Envelope{
		Type:   ipc.TypeVisionGlanceResult,
		Source: ipc.SourceVision,
		Payload: marshalPayload(glanceResultPayload{
			RequestID:  requestID,
			Verdict:    verdict,
			Confidence: confidence,
			LatencyMs:  latencyMs,
			Error:      errStr,
		}),
	}
}
