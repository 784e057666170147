package tracing

import "time"

// A TimeTeller tells the current time. Tracers stamp tasks with it.
type TimeTeller interface {
	CurrentTime() time.Time
}

// WallClock tells the time of the host.
type WallClock struct{}

// CurrentTime returns time.Now().
func (WallClock) CurrentTime() time.Time {
	return time.Now()
}
