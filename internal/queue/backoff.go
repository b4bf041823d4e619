package queue

import "time"

// backoffBase is the BASE constant in the per-item backoff formula:
// BASE * 2 * 2^(retry_count-1).
const backoffBase = 1 * time.Second

// backoffDelay returns the delay to wait before an item eligible for
// retry at retryCount is reclaimed into the buffer.
func backoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return backoffBase * 2 * time.Duration(1<<uint(retryCount-1))
}
