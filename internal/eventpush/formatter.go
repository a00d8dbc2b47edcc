package eventpush

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"galaxy-core/internal/command"
	"galaxy-core/internal/eventbus"
	"galaxy-core/internal/eventpush/platforms"
	"galaxy-core/internal/gameclock"
)

const (
	colorAction   = 0x3BA55D
	colorCalendar = 0x5865F2
	colorWarn     = 0xFEE75C
	colorRecover  = 0x57F287
	colorCritical = 0xED4245

	shortIDLimit  = 10
	defaultFooter = "galaxy-core event push"
)

// FormatMessage renders a bus event for chat platforms. Events without a
// rendering are reported with ok=false.
func FormatMessage(ev eventbus.Event) (platforms.Message, bool) {
	sess := shortID(fallback(ev.SessionID, "unknown"), shortIDLimit)
	fields := make([]platforms.Field, 0, 6)
	base := platforms.Message{
		EventID:   ev.EventID,
		Timestamp: eventTimestamp(ev.ServerTS),
		Footer:    defaultFooter,
		Payload:   ev,
	}

	switch data := ev.Data.(type) {
	case gameclock.TickEvent:
		base.Title = fmt.Sprintf("Tick %d · S:%s", data.Tick, sess)
		base.Content = data.GameDate.String()
		base.Description = "Game time " + data.GameDate.String()
		base.Color = colorCalendar
	case gameclock.DayStartEvent:
		base.Title = fmt.Sprintf("Day %d.%d.%d · S:%s", data.Day, data.Month, data.Year, sess)
		base.Content = "a new day begins"
		base.Description = fmt.Sprintf("Day %d of month %d, year %d.", data.Day, data.Month, data.Year)
		base.Color = colorCalendar
	case gameclock.MonthStartEvent:
		base.Title = fmt.Sprintf("Month %d.%d · S:%s", data.Month, data.Year, sess)
		base.Content = "a new month begins"
		base.Description = fmt.Sprintf("Month %d of year %d.", data.Month, data.Year)
		base.Color = colorCalendar
	case gameclock.SessionStartEvent:
		base.Title = "Session Started · S:" + sess
		base.Content = "session registered with the clock"
		base.Description = "Session registered with the clock."
		base.Color = colorRecover
	case gameclock.CatchupEvent:
		base.Title = "Catch-up · S:" + sess
		base.Content = fmt.Sprintf("skipped %d ticks", data.MissedTicks)
		base.Description = fmt.Sprintf("Clock skipped %d ticks to %s.", data.MissedTicks, data.GameDate.String())
		base.Color = colorWarn
		fields = append(fields,
			platforms.Field{Name: "Missed", Value: strconv.FormatInt(data.MissedTicks, 10), Inline: true},
			platforms.Field{Name: "Tick", Value: strconv.FormatInt(data.CurrentTick, 10), Inline: true},
		)
	case gameclock.SessionEndEvent:
		base.Title = "Session Ended · S:" + sess
		base.Content = "session ended"
		base.Description = "Session ended."
		base.Color = colorCritical
		fields = append(fields,
			platforms.Field{Name: "Winner", Value: fallback(data.WinnerID, "-"), Inline: true},
			platforms.Field{Name: "Reason", Value: fallback(data.Reason, "-"), Inline: true},
		)
	case command.ExecutedEvent:
		base.Title = fmt.Sprintf("Command · %s · S:%s", data.CommandID, sess)
		base.Content = fmt.Sprintf("%s ran %s", data.ActorID, data.CommandID)
		base.Description = base.Content
		base.Color = colorAction
		fields = append(fields,
			platforms.Field{Name: "Actor", Value: data.ActorID, Inline: true},
			platforms.Field{Name: "Spent", Value: spentText(data.Consumed), Inline: true},
		)
		if data.Substituted {
			fields = append(fields, platforms.Field{Name: "Substituted", Value: "yes", Inline: true})
		}
	case command.FailedEvent:
		base.Title = fmt.Sprintf("Command Failed · %s · S:%s", data.CommandID, sess)
		base.Content = data.Code
		base.Description = fallback(data.Message, data.Code)
		base.Color = colorWarn
		fields = append(fields,
			platforms.Field{Name: "Actor", Value: data.ActorID, Inline: true},
			platforms.Field{Name: "Code", Value: data.Code, Inline: true},
		)
	case command.RolledBackEvent:
		base.Title = fmt.Sprintf("Rolled Back · %s · S:%s", data.CommandID, sess)
		base.Content = "command points restored"
		base.Description = fallback(data.Message, "command rolled back")
		base.Color = colorCritical
		fields = append(fields,
			platforms.Field{Name: "Actor", Value: data.ActorID, Inline: true},
			platforms.Field{Name: "Restored", Value: spentText(data.Restored), Inline: true},
		)
		if data.RefundError != "" {
			fields = append(fields, platforms.Field{Name: "Refund Error", Value: data.RefundError, Inline: false})
		}
	default:
		return platforms.Message{}, false
	}

	base.Fields = fields
	return base, true
}

func spentText(counters map[string]int64) string {
	if len(counters) == 0 {
		return "-"
	}
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %d", name, counters[name]))
	}
	return strings.Join(parts, ", ")
}

func shortID(v string, max int) string {
	if max <= 0 || len(v) <= max {
		return v
	}
	return v[:max]
}

func eventTimestamp(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func fallback(v, d string) string {
	if strings.TrimSpace(v) == "" {
		return d
	}
	return v
}
