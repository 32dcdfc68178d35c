package session

import (
	"context"

	"github.com/voaprotect/voaprotect-core/internal/audio"
)

// Queue policies. The frame queue is bounded either way; the policy
// decides what happens when the decoder falls behind the microphone.
//
//   - block: the producer waits for queue space (backpressure, complete
//     audio at the cost of capture latency).
//   - drop_oldest: the oldest queued frame is discarded to make room
//     (strict real-time delivery at the cost of completeness).
const (
	PolicyBlock      = "block"
	PolicyDropOldest = "drop_oldest"
)

// pumpFrames moves frames from the source stream into the bounded queue
// until the stream closes or ctx expires, then closes the queue so the
// consumer never waits past the window. Returns the number of frames
// dropped under the drop_oldest policy.
//
// Single producer, single consumer: pumpFrames is the only writer to q.
func pumpFrames(ctx context.Context, frames <-chan audio.Frame, q chan audio.Frame, policy string) int {
	defer close(q)

	dropped := 0
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return dropped
			}
			if policy == PolicyDropOldest {
				select {
				case q <- frame:
				default:
					select {
					case <-q:
						dropped++
					default:
					}
					select {
					case q <- frame:
					case <-ctx.Done():
						return dropped
					}
				}
				continue
			}
			select {
			case q <- frame:
			case <-ctx.Done():
				return dropped
			}
		case <-ctx.Done():
			return dropped
		}
	}
}
