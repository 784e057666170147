package eepromsim

import "sync"

// LED is an indicator that remembers its state and how often it was lit.
type LED struct {
	lock   sync.Mutex
	on     bool
	lights int
}

// SetIndicator switches the LED.
func (l *LED) SetIndicator(on bool) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if on && !l.on {
		l.lights++
	}

	l.on = on
}

// On reports whether the LED is lit.
func (l *LED) On() bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.on
}

// Lights returns how many times the LED was switched on.
func (l *LED) Lights() int {
	l.lock.Lock()
	defer l.lock.Unlock()

	return l.lights
}
