package trigger

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений из пяти полей.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Schedule — разобранное cron-выражение с часовым поясом.
type Schedule struct {
	expr  string
	loc   *time.Location
	sched cron.Schedule
}

// ParseCron разбирает cron-выражение в UTC.
func ParseCron(expr string) (*Schedule, error) {
	return ParseCronIn(expr, "UTC")
}

// ParseCronIn разбирает cron-выражение в указанном часовом поясе.
// Пустой timezone означает UTC.
func ParseCronIn(expr, timezone string) (*Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidCron, expr, err)
	}

	loc := time.UTC
	if timezone != "" && timezone != "UTC" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, timezone, err)
		}
	}

	return &Schedule{expr: expr, loc: loc, sched: sched}, nil
}

// String возвращает исходное выражение.
func (s *Schedule) String() string {
	return s.expr
}

// Location возвращает часовой пояс расписания.
func (s *Schedule) Location() *time.Location {
	return s.loc
}

// Next возвращает первое время срабатывания строго после from (в UTC).
func (s *Schedule) Next(from time.Time) time.Time {
	return s.sched.Next(from.In(s.loc)).UTC()
}

// NextN возвращает n следующих срабатываний после from.
func (s *Schedule) NextN(from time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out
}

// Matches возвращает true, если минута t является минутой срабатывания.
// Секунды внутри минуты не учитываются.
func (s *Schedule) Matches(t time.Time) bool {
	minute := t.In(s.loc).Truncate(time.Minute)
	return s.sched.Next(minute.Add(-time.Second)).Equal(minute)
}
