package gameclock

import "galaxy-core/internal/calendar"

const (
	EventTimeTick     = "TIME_TICK"
	EventDayStart     = "DAY_START"
	EventMonthStart   = "MONTH_START"
	EventSessionStart = "SESSION_START"
	EventSessionEnd   = "SESSION_END"
	EventCatchup      = "CATCHUP"
)

type TickEvent struct {
	SessionID          string            `json:"sessionId"`
	Tick               int64             `json:"tick"`
	GameDate           calendar.GameDate `json:"gameDate"`
	AccelerationFactor int64             `json:"accelerationFactor"`
}

type DayStartEvent struct {
	SessionID string `json:"sessionId"`
	Day       int    `json:"day"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
}

type MonthStartEvent struct {
	SessionID string `json:"sessionId"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
}

type SessionStartEvent struct {
	SessionID string `json:"sessionId"`
}

type SessionEndEvent struct {
	SessionID string `json:"sessionId"`
	WinnerID  string `json:"winnerId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type CatchupEvent struct {
	SessionID   string            `json:"sessionId"`
	MissedTicks int64             `json:"missedTicks"`
	CurrentTick int64             `json:"currentTick"`
	GameDate    calendar.GameDate `json:"gameDate"`
}
