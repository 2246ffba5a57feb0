package model

import "time"

// Window is a time-bounded round of the competition with its own board.
type Window struct {
	Codename string    `json:"codename" msgpack:"codename"`
	Name     string    `json:"name" msgpack:"name"`
	Start    time.Time `json:"start" msgpack:"start"`
	End      time.Time `json:"end" msgpack:"end"`
}

// Started reports whether the window has opened at now.
func (w Window) Started(now time.Time) bool {
	return !now.Before(w.Start)
}

// Ended reports whether the window's end time has passed at now.
func (w Window) Ended(now time.Time) bool {
	return !now.Before(w.End)
}

// Active reports whether now lies inside [Start, End).
func (w Window) Active(now time.Time) bool {
	return w.Started(now) && !w.Ended(now)
}
