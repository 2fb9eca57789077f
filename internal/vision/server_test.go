package vision

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/ipc"
)

type scriptedCamera struct {
	frames []Frame
	err    error
}

func (c scriptedCamera) Capture(time.Duration) ([]Frame, error) { return c.frames, c.err }

type scriptedDetector struct {
	kind       string
	confidence float32
	err        error
}

func (d scriptedDetector) Detect([]Frame) (string, float32, error) {
	return d.kind, d.confidence, d.err
}

func TestToVerdictMapsAllKinds(t *testing.T) {
	v := toVerdict(glanceResultPayload{Verdict: "FaceToward", Confidence: 0.8})
	assert.Equal(t, activation.AttentionFaceToward, v.Kind)
	assert.Equal(t, float32(0.8), v.Confidence)

	v = toVerdict(glanceResultPayload{Verdict: "FaceAway", Confidence: 0.3})
	assert.Equal(t, activation.AttentionFaceAway, v.Kind)

	v = toVerdict(glanceResultPayload{Verdict: "NoFace"})
	assert.Equal(t, activation.AttentionNoFace, v.Kind)

	v = toVerdict(glanceResultPayload{Verdict: "Error", Error: "busy"})
	assert.Equal(t, activation.AttentionError, v.Kind)
	assert.Equal(t, "busy", v.Message)
}

func TestToVerdictCarriesLatencyForEveryKind(t *testing.T) {
	v := toVerdict(glanceResultPayload{Verdict: "FaceToward", LatencyMs: 123.4})
	assert.Equal(t, 123.4, v.LatencyMs)

	v = toVerdict(glanceResultPayload{Verdict: "Error", Error: "timeout", LatencyMs: 1200})
	assert.Equal(t, 1200.0, v.LatencyMs)
}

func TestServerRejectsSecondConcurrentRequest(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "visd.sock")

	release := make(chan struct{})
	slowCamera := blockingCamera{release: release}
	srv := NewServer(slowCamera, StubFaceDetector{})

	ln, err := ipc.Listen(sockPath, srv.Handle)
	require.NoError(t, err)
	defer ln.Close()
	go ln.Serve()

	client, err := ipc.Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(ipc.Envelope{
		Type:    ipc.TypeVisionGlanceReq,
		Source:  ipc.SourceCore,
		Payload: marshalPayload(glanceRequestPayload{RequestID: "first"}),
	}))

	require.Eventually(t, func() bool { return srv.busy.Load() }, time.Second, 5*time.Millisecond)

	require.NoError(t, client.Send(ipc.Envelope{
		Type:    ipc.TypeVisionGlanceReq,
		Source:  ipc.SourceCore,
		Payload: marshalPayload(glanceRequestPayload{RequestID: "second"}),
	}))

	reply, err := client.Recv()
	require.NoError(t, err)

	var payload glanceResultPayload
	require.NoError(t, decodePayload(reply.Payload, &payload))
	assert.Equal(t, "second", payload.RequestID)
	assert.Equal(t, "Error", payload.Verdict)
	assert.Equal(t, "busy", payload.Error)

	close(release)
}

type blockingCamera struct {
	release chan struct{}
}

func (b blockingCamera) Capture(time.Duration) ([]Frame, error) {
	<-b.release
	return nil, errors.New("never reached in this test")
}

func TestServerProcessReportsCameraError(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "visd.sock")
	srv := NewServer(scriptedCamera{err: errors.New("device busy")}, StubFaceDetector{})

	ln, err := ipc.Listen(sockPath, srv.Handle)
	require.NoError(t, err)
	defer ln.Close()
	go ln.Serve()

	client, err := ipc.Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(ipc.Envelope{
		Type:    ipc.TypeVisionGlanceReq,
		Source:  ipc.SourceCore,
		Payload: marshalPayload(glanceRequestPayload{RequestID: "r1"}),
	}))

	reply, err := client.Recv()
	require.NoError(t, err)

	var payload glanceResultPayload
	require.NoError(t, decodePayload(reply.Payload, &payload))
	assert.Equal(t, "Error", payload.Verdict)
	assert.Equal(t, "camera", payload.Error)
}

func TestServerProcessReturnsDetectorVerdict(t *testing.T) {
	sockPath := filepath.Join(t.TempDir(), "visd.sock")
	srv := NewServer(scriptedCamera{frames: []Frame{{Width: 1, Height: 1}}}, scriptedDetector{kind: "FaceToward", confidence: 0.91})

	ln, err := ipc.Listen(sockPath, srv.Handle)
	require.NoError(t, err)
	defer ln.Close()
	go ln.Serve()

	client, err := ipc.Dial(sockPath)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Send(ipc.Envelope{
		Type:    ipc.TypeVisionGlanceReq,
		Source:  ipc.SourceCore,
		Payload: marshalPayload(glanceRequestPayload{RequestID: "r2"}),
	}))

	reply, err := client.Recv()
	require.NoError(t, err)

	var payload glanceResultPayload
	require.NoError(t, decodePayload(reply.Payload, &payload))
	assert.Equal(t, "FaceToward", payload.Verdict)
	assert.InDelta(t, 0.91, payload.Confidence, 0.0001)
}
