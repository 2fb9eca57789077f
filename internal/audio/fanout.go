package audio

// blockSize is the fixed block size fanned out to every consumer (spec
// default), replacing the teacher's variable-length callback chunks with a
// stable frame the wake-word scorer and engaged ring buffer can both rely
// on.
const blockSize = 1024

// Fanout re-chunks a Capturer's variable-length callback output into fixed
// blockSize blocks and distributes each block to every registered
// consumer. Consumers run synchronously in Capturer's processLoop
// goroutine; slow consumers should buffer internally (as Scorer's
// per-model channels do) rather than block here.
type Fanout struct {
	consumers []func([]float32)
	carry     []float32
}

// NewFanout constructs an empty Fanout. Attach consumers with Subscribe
// before wiring it as a Capturer's onSamples callback.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe registers a consumer invoked with every fixed-size block.
func (f *Fanout) Subscribe(consumer func(block []float32)) {
	f.consumers = append(f.consumers, consumer)
}

// Feed implements the onSamples signature expected by audio.NewCapturer.
func (f *Fanout) Feed(samples []float32) {
	f.carry = append(f.carry, samples...)
	for len(f.carry) >= blockSize {
		block := f.carry[:blockSize]
		for _, c := range f.consumers {
			c(block)
		}
		f.carry = append([]float32(nil), f.carry[blockSize:]...)
	}
}
