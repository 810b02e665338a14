package engine

import (
	"fmt"
	"time"

	"github.com/roach88/scd2/internal/record"
)

// Clock supplies wall-clock time. Tests inject fixed or stepping clocks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Stamper issues run stamps.
//
// A stamp is the clock reading at microsecond resolution, bumped to one
// microsecond past the floor when the clock has not moved beyond it. The
// floor is the latest stamp the dimension has already used, so stamps are
// strictly increasing per dimension even under a frozen or skewed clock.
type Stamper struct {
	clock Clock
}

// NewStamper creates a stamper over the given clock.
// A nil clock means SystemClock.
func NewStamper(clock Clock) *Stamper {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Stamper{clock: clock}
}

// Now returns the clock reading in UTC, truncated to stamp resolution.
func (s *Stamper) Now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// Next reads the clock and returns the stamp for a run with the given floor.
func (s *Stamper) Next(floor string) (string, error) {
	return NextStamp(s.Now(), floor)
}

// NextStamp returns max(now, floor+1µs) formatted as a stamp.
// An empty floor means the dimension has never been written.
func NextStamp(now time.Time, floor string) (string, error) {
	t := now.UTC().Truncate(time.Microsecond)

	if floor != "" {
		f, err := record.ParseStamp(floor)
		if err != nil {
			return "", fmt.Errorf("invalid stamp floor: %w", err)
		}
		if !t.After(f) {
			t = f.Add(time.Microsecond)
		}
	}

	stamp := record.FormatStamp(t)
	if stamp >= record.ValidToOpen {
		return "", fmt.Errorf("run stamp %s reaches the open-ended sentinel", stamp)
	}
	return stamp, nil
}
