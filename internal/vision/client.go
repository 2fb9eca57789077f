package vision

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/ipc"
)

// Client implements activation.VisionRequester against visd's UNIX socket.
// It delivers at most one in-flight request's result (invariant I1): a
// second RequestGlance call while one is outstanding is a programmer error
// the activation machine never makes (PROX_VERIFY is only entered once);
// if it does happen, the newer request supersedes the older one, whose
// result is discarded.
type Client struct {
	sockPath  string
	onVerdict func(activation.AttentionVerdict)

	mu         sync.Mutex
	pendingGen uint64
}

// NewClient constructs a vision glance Client. onVerdict is invoked (from
// an internal goroutine) with the resolved verdict for every RequestGlance
// call, matching Machine.OnVisionVerdict.
func NewClient(sockPath string, onVerdict func(activation.AttentionVerdict)) *Client {
	return &Client{sockPath: sockPath, onVerdict: onVerdict}
}

// RequestGlance sends a VISION_GLANCE_REQUEST and waits up to 1.2s for a
// matching reply, synthesizing Error{timeout} or Error{unreachable} as
// needed. Runs asynchronously; the verdict arrives via onVerdict.
func (c *Client) RequestGlance(ctx context.Context) {
	c.mu.Lock()
	c.pendingGen++
	gen := c.pendingGen
	reqID := uuid.NewString()
	c.mu.Unlock()

	go c.run(ctx, reqID, gen)
}

func (c *Client) run(ctx context.Context, reqID string, gen uint64) {
	conn, err := c.dial()
	if err != nil {
		log.Printf("[vision] dial failed: %v", err)
		c.resolve(gen, activation.AttentionVerdict{Kind: activation.AttentionError, Message: "unreachable"})
		return
	}
	defer conn.Close()

	env := ipc.Envelope{
		Type:    ipc.TypeVisionGlanceReq,
		Source:  ipc.SourceCore,
		Payload: marshalPayload(glanceRequestPayload{RequestID: reqID}),
	}
	if err := conn.Send(env); err != nil {
		log.Printf("[vision] send failed: %v", err)
		c.resolve(gen, activation.AttentionVerdict{Kind: activation.AttentionError, Message: "unreachable"})
		return
	}

	replyCh := make(chan ipc.Envelope, 1)
	errCh := make(chan error, 1)
	go func() {
		for {
			reply, err := conn.Recv()
			if err != nil {
				errCh <- err
				return
			}
			replyCh <- reply
			return
		}
	}()

	timer := time.NewTimer(glanceTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		c.resolve(gen, activation.AttentionVerdict{Kind: activation.AttentionError, Message: "timeout"})
	case err := <-errCh:
		log.Printf("[vision] connection error awaiting reply: %v", err)
		c.resolve(gen, activation.AttentionVerdict{Kind: activation.AttentionError, Message: "unreachable"})
	case reply := <-replyCh:
		var payload glanceResultPayload
		if err := decodePayload(reply.Payload, &payload); err != nil || payload.RequestID != reqID {
			c.resolve(gen, activation.AttentionVerdict{Kind: activation.AttentionError, Message: "protocol"})
			return
		}
		c.resolve(gen, toVerdict(payload))
	}
}

// dial connects to visd with the spec section 4.5 backoff ladder (0.5s,
// 1s, 2s, cap 2s) on repeated failure.
func (c *Client) dial() (*ipc.Client, error) {
	var lastErr error
	for i, backoff := range dialBackoff {
		conn, err := ipc.Dial(c.sockPath)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if i < len(dialBackoff)-1 {
			time.Sleep(backoff)
		}
	}
	return nil, lastErr
}

// Cancel drops any outstanding request: a late reply arriving after Cancel
// is discarded instead of being delivered to onVerdict.
func (c *Client) Cancel() {
	c.mu.Lock()
	c.pendingGen++
	c.mu.Unlock()
}

// resolve delivers v to onVerdict only if gen still matches the current
// in-flight request (i.e. this result wasn't superseded by a Cancel or a
// newer RequestGlance call).
func (c *Client) resolve(gen uint64, v activation.AttentionVerdict) {
	c.mu.Lock()
	current := c.pendingGen
	c.mu.Unlock()
	if gen != current {
		return
	}
	c.onVerdict(v)
}

func toVerdict(p glanceResultPayload) activation.AttentionVerdict {
	switch p.Verdict {
	case "FaceToward":
		return activation.AttentionVerdict{Kind: activation.AttentionFaceToward, Confidence: p.Confidence, LatencyMs: p.LatencyMs}
	case "FaceAway":
		return activation.AttentionVerdict{Kind: activation.AttentionFaceAway, Confidence: p.Confidence, LatencyMs: p.LatencyMs}
	case "NoFace":
		return activation.AttentionVerdict{Kind: activation.AttentionNoFace, Confidence: p.Confidence, LatencyMs: p.LatencyMs}
	default:
		return activation.AttentionVerdict{Kind: activation.AttentionError, Message: p.Error, LatencyMs: p.LatencyMs}
	}
}
