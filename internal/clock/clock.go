// Package clock keeps the wall clock shown by the front desk, refreshed once
// per minute.
package clock

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/jjatencia/exorawebipad/internal/calendar"
)

// Reading is what the UI displays.
type Reading struct {
	Time    time.Time `json:"time"`
	Display string    `json:"display"`
	Day     string    `json:"day"`
}

type Clock struct {
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger

	mu        sync.RWMutex
	reading   Reading
	scheduler gocron.Scheduler
}

func New(loc *time.Location, lg *log.Logger) *Clock {
	if loc == nil {
		loc = time.Local
	}
	c := &Clock{loc: loc, now: time.Now, logger: lg}
	c.Tick()
	return c
}

// Tick refreshes the reading from the current time.
func (c *Clock) Tick() {
	t := c.now().In(c.loc).Truncate(time.Minute)
	r := Reading{
		Time:    t,
		Display: calendar.FormatClock(t, c.loc),
		Day:     calendar.DayKey(t, c.loc),
	}
	c.mu.Lock()
	c.reading = r
	c.mu.Unlock()
}

func (c *Clock) Now() Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reading
}

// Start schedules a tick at the top of every minute.
func (c *Clock) Start() error {
	s, err := gocron.NewScheduler(gocron.WithLocation(c.loc))
	if err != nil {
		return fmt.Errorf("clock scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.CronJob("* * * * *", false),
		gocron.NewTask(c.Tick),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("clock job: %w", err)
	}

	c.mu.Lock()
	c.scheduler = s
	c.mu.Unlock()

	s.Start()
	if c.logger != nil {
		c.logger.Printf("[clock] minute tick started (%s)", c.loc)
	}
	return nil
}

func (c *Clock) Stop() error {
	c.mu.Lock()
	s := c.scheduler
	c.scheduler = nil
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Shutdown()
}
