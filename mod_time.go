package meshopt

import (
	"time"
)

// Time tracks simulated time driven by tick deltas, not the wall clock, so
// tuning intervals and tests advance deterministically.
type Time struct {
	Elapsed time.Duration
	Dt      time.Duration
	Frame   uint64
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{})
	cmd.UseSystem(System(timeSystem).InStage(Prelude))
}

func timeSystem(timeResource *Time, input *TickInput) {
	timeResource.Dt = input.Dt
	timeResource.Elapsed += input.Dt
	timeResource.Frame++
}
