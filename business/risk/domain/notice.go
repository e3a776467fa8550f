package domain

import "time"

// Notice is the payload published on risk.paused / risk.resumed.
type Notice struct {
	Reason string
	TS     time.Time
}
