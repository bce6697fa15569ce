package clock

import (
	"time"

	"github.com/coder/quartz"
)

// Clock provides time operations that can be mocked for testing.
// Both quartz.NewReal() and quartz.NewMock(t) satisfy it.
type Clock interface {
	Now(tags ...string) time.Time
	AfterFunc(d time.Duration, f func(), tags ...string) *quartz.Timer
}

// New returns a Clock backed by the system clock
func New() Clock {
	return quartz.NewReal()
}
