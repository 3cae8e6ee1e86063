package pipeline

import "time"

// SetBackoff shortens the retry delay so failure tests run fast.
func SetBackoff(p *Pipeline, d time.Duration) { p.backoff = d }
