package rabbitmq

import "time"

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// reconnectDelay returns the wait before connection attempt number attempt (1-indexed):
// 1s, 2s, 4s, ... capped at maxBackoff.
func reconnectDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
