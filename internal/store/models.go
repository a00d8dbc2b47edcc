package store

import (
	"time"

	"galaxy-core/internal/calendar"
)

const (
	SessionPreparing = "preparing"
	SessionRunning   = "running"
	SessionPaused    = "paused"
	SessionFinished  = "finished"
)

type GameSession struct {
	ID                 string
	Status             string
	TickPeriodMs       int64
	AccelerationFactor int64
	Epoch              calendar.GameDate
	Tick               int64
	GameDate           calendar.GameDate
	IsPaused           bool
	LastTickTime       time.Time
	WinnerID           string
	EndReason          string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SessionClock is the runtime slice of a GameSession the clock writes back.
type SessionClock struct {
	SessionID    string
	Status       string
	Tick         int64
	GameDate     calendar.GameDate
	IsPaused     bool
	LastTickTime time.Time
}

type Counter struct {
	Name            string
	Balance         int64
	Max             int64
	LastRecoveredAt time.Time
}

type ActorLedger struct {
	ActorID   string
	SessionID string
	Counters  map[string]Counter
}

func (l ActorLedger) Balance(counter string) int64 {
	return l.Counters[counter].Balance
}

// CounterSwap replaces Expected with Next; it fails if the stored balance is
// no longer Expected.
type CounterSwap struct {
	Counter  string
	Expected int64
	Next     int64
}

type CounterCredit struct {
	Counter string
	Amount  int64
}

// EntryMeta describes why a ledger mutation happened.
type EntryMeta struct {
	Type    string
	RefType string
	RefID   string
}

type LedgerEntry struct {
	ID        string
	ActorID   string
	Counter   string
	Type      string
	Amount    int64
	RefType   string
	RefID     string
	CreatedAt time.Time
}
