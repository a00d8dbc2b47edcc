// Package calendar derives in-game dates from a session's tick counter.
//
// A date is never stored independently of the tick that produced it:
// DateAt is the only way to move a session forward in time, so catch-up and
// normal ticking cannot drift apart.
package calendar

import (
	"errors"
	"fmt"
	"time"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

var ErrInvalidDate = errors.New("invalid_game_date")

// GameDate is a calendar position with minute resolution.
type GameDate struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

type DayKey struct {
	Year, Month, Day int
}

type MonthKey struct {
	Year, Month int
}

func FromTime(t time.Time) GameDate {
	t = t.UTC()
	return GameDate{
		Year:   t.Year(),
		Month:  int(t.Month()),
		Day:    t.Day(),
		Hour:   t.Hour(),
		Minute: t.Minute(),
	}
}

func (d GameDate) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, 0, 0, time.UTC)
}

func (d GameDate) DayKey() DayKey {
	return DayKey{Year: d.Year, Month: d.Month, Day: d.Day}
}

func (d GameDate) MonthKey() MonthKey {
	return MonthKey{Year: d.Year, Month: d.Month}
}

func (d GameDate) String() string {
	return fmt.Sprintf("%d-%02d-%02dT%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute)
}

// Validate rejects field values that time.Date would silently normalize.
func (d GameDate) Validate() error {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Hour < 0 || d.Hour > 23 || d.Minute < 0 || d.Minute > 59 {
		return ErrInvalidDate
	}
	if FromTime(d.Time()) != d {
		return ErrInvalidDate
	}
	return nil
}

// Parse reads the "Y-MM-DDTHH:MM" form produced by String.
func Parse(s string) (GameDate, error) {
	var d GameDate
	if _, err := fmt.Sscanf(s, "%d-%d-%dT%d:%d", &d.Year, &d.Month, &d.Day, &d.Hour, &d.Minute); err != nil {
		return GameDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if err := d.Validate(); err != nil {
		return GameDate{}, fmt.Errorf("%w: %q", err, s)
	}
	return d, nil
}

// ElapsedMs is the in-game time covered by tick ticks.
func ElapsedMs(tick, tickPeriodMs, accelerationFactor int64) int64 {
	return tick * tickPeriodMs * accelerationFactor
}

// DateAt returns epoch + tick × tickPeriodMs × accelerationFactor.
// Whole days go through AddDate so far-future sessions stay clear of
// time.Duration's ~292 year range.
func DateAt(epoch GameDate, tick, tickPeriodMs, accelerationFactor int64) GameDate {
	ms := ElapsedMs(tick, tickPeriodMs, accelerationFactor)
	days := ms / msPerDay
	rem := ms % msPerDay
	t := epoch.Time().AddDate(0, 0, int(days)).Add(time.Duration(rem) * time.Millisecond)
	return FromTime(t)
}
