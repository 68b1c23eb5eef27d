package sport

import (
	"fmt"
	"time"
)

// Sport is a supported discipline. TypicalDuration bounds how long a match
// can plausibly stay live before time-based cleanup applies.
type Sport struct {
	ID              int64
	Name            string
	TypicalDuration time.Duration
}

func (s Sport) Validate() error {
	if s.ID <= 0 {
		return fmt.Errorf("sport id must be greater than zero")
	}
	if s.Name == "" {
		return fmt.Errorf("sport name is required")
	}
	return nil
}

// DurationOrDefault returns the sport duration or a conservative default
// for sports without one configured.
func (s Sport) DurationOrDefault() time.Duration {
	if s.TypicalDuration > 0 {
		return s.TypicalDuration
	}
	return 3 * time.Hour
}
