package state

import "time"

// ErrorRecord is the most recent recorded error.
type ErrorRecord struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats is the persisted statistics document.
type Stats struct {
	FirstBoot             time.Time    `json:"first_boot"`
	TotalButtonPresses    int          `json:"total_button_presses"`
	TotalDisplayUpdates   int          `json:"total_display_updates"`
	TotalFullRefreshes    int          `json:"total_full_refreshes"`
	TotalPartialRefreshes int          `json:"total_partial_refreshes"`
	HardwareFailures      int          `json:"hardware_failures"`
	DroppedActions        int          `json:"dropped_actions"`
	MalformedFlags        int          `json:"malformed_flags"`
	TotalMessagesSent     int          `json:"total_messages_sent"`
	TotalMessagesReceived int          `json:"total_messages_received"`
	LastError             *ErrorRecord `json:"last_error"`
	FlagSeq               uint64       `json:"flag_seq"`
}

// StatsDelta are counter increments accumulated in memory between flushes.
type StatsDelta struct {
	ButtonPresses    int
	DisplayUpdates   int
	FullRefreshes    int
	PartialRefreshes int
	HardwareFailures int
	DroppedActions   int
	MalformedFlags   int
	MessagesSent     int
	LastError        *ErrorRecord
}

// Zero reports whether d holds nothing to flush.
func (d StatsDelta) Zero() bool {
	return d == StatsDelta{}
}

func (s *Stats) add(d StatsDelta) {
	s.TotalButtonPresses += d.ButtonPresses
	s.TotalDisplayUpdates += d.DisplayUpdates
	s.TotalFullRefreshes += d.FullRefreshes
	s.TotalPartialRefreshes += d.PartialRefreshes
	s.HardwareFailures += d.HardwareFailures
	s.DroppedActions += d.DroppedActions
	s.MalformedFlags += d.MalformedFlags
	s.TotalMessagesSent += d.MessagesSent
	if d.LastError != nil {
		s.LastError = d.LastError
	}
}
