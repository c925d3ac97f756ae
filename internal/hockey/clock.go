package hockey

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is the time remaining in a period, in seconds. The period clock
// counts down, so a larger value happened earlier.
type Clock int

const maxClockSeconds = 99*60 + 59

// ParseClock reads a "MM:SS" countdown value.
func ParseClock(raw string) (Clock, error) {
	trimmed := strings.TrimSpace(raw)
	minutes, seconds, ok := strings.Cut(trimmed, ":")
	if !ok || len(minutes) != 2 || len(seconds) != 2 {
		return 0, &ValidationError{Field: "clock", Message: "clock must be MM:SS"}
	}
	mm, err := strconv.Atoi(minutes)
	if err != nil || mm < 0 {
		return 0, &ValidationError{Field: "clock", Message: "clock must be MM:SS"}
	}
	ss, err := strconv.Atoi(seconds)
	if err != nil || ss < 0 || ss > 59 {
		return 0, &ValidationError{Field: "clock", Message: "clock seconds must be 00-59"}
	}
	return Clock(mm*60 + ss), nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(raw string) Clock {
	clock, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return clock
}

func (c Clock) Valid() bool {
	return c >= 0 && c <= maxClockSeconds
}

func (c Clock) String() string {
	if c < 0 {
		c = 0
	}
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}
