// Package clock abstracts wall time so billing runs can be replayed at a
// simulated date.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }

// At returns a clock frozen at t, used for --at simulation runs.
func At(t time.Time) Clock { return NewFakeClock(t) }

var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
