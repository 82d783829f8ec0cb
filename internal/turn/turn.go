// Package turn allocates the per-day display numbers handed to customers.
package turn

import (
	"fmt"
	"sync"
	"time"
)

const (
	numberPad  = 3
	DateLayout = "2006-01-02"
)

// State is the persisted counter. Count is the last number handed out on Date.
type State struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Advance returns the state after allocating one number on today. The count
// restarts whenever the stored date is not today.
func Advance(state State, today string) State {
	if state.Date != today {
		state.Count = 0
	}
	state.Count++
	state.Date = today
	return state
}

// Format zero-pads count to three digits. Larger counts widen instead of
// being truncated.
func Format(count int) string {
	return fmt.Sprintf("%0*d", numberPad, count)
}

// Clock yields the business date in a fixed location so turn allocation,
// order dates and report filters agree on what "today" is.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return Clock{loc: loc, now: time.Now}
}

// FixedClock is a Clock frozen at t, for tests and replays.
func FixedClock(t time.Time, loc *time.Location) Clock {
	c := NewClock(loc)
	c.now = func() time.Time { return t }
	return c
}

func (c Clock) Now() time.Time {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return now().UTC()
}

func (c Clock) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Today returns the current calendar date in the clock's location.
func (c Clock) Today() string {
	return c.DateOf(c.Now())
}

func (c Clock) DateOf(t time.Time) string {
	return t.In(c.Location()).Format(DateLayout)
}

// DaysAgo returns the business date n days before today.
func (c Clock) DaysAgo(n int) string {
	return c.Now().In(c.Location()).AddDate(0, 0, -n).Format(DateLayout)
}

func ValidDate(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

// Counter is an in-process allocator. Next performs its read-modify-write
// under one lock, so it is only safe while a single process owns the state.
type Counter struct {
	mu    sync.Mutex
	state State
}

func NewCounter(initial State) *Counter {
	return &Counter{state: initial}
}

// Next allocates the next number for today and returns it with the new state.
func (c *Counter) Next(today string) (string, State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Advance(c.state, today)
	return Format(c.state.Count), c.state
}

func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
