// Package admission gates inbound selection requests with a token bucket so
// bursts cannot overrun backend capacity.
//
// A rejected request gets an immediate answer; nothing is ever queued. The
// gate is optional: a disabled controller admits everything.
package admission

import (
	"math"

	"golang.org/x/time/rate"
)

// Controller is a token-bucket admission gate. Safe for concurrent use; the
// underlying limiter refills and consumes atomically, so two checks can never
// both succeed on a single remaining token.
type Controller struct {
	limiter *rate.Limiter // nil means disabled
}

// New creates a controller admitting rps requests per second at steady state.
// The bucket capacity defaults to one second's worth of tokens (at least 1),
// so burst equals the rate unless NewWithBurst is used.
func New(rps float64) *Controller {
	return NewWithBurst(rps, int(math.Ceil(rps)))
}

// NewWithBurst creates a controller with an explicit bucket capacity.
func NewWithBurst(rps float64, burst int) *Controller {
	if burst < 1 {
		burst = 1
	}
	return &Controller{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Disabled returns a controller that admits every request.
func Disabled() *Controller {
	return &Controller{}
}

// Enabled reports whether the controller actually gates anything.
func (c *Controller) Enabled() bool {
	return c.limiter != nil
}

// TryAdmit consumes one token if available. It never blocks: the answer is
// admit or reject, immediately.
func (c *Controller) TryAdmit() bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.Allow()
}
