package service

import (
	"fmt"
	"time"

	"cronfetch/config"

	"github.com/robfig/cron/v3"
)

// CronValidator rejects malformed cron expressions and schedules firing
// faster than the configured floor. Used identically at task create and
// update time.
type CronValidator struct {
	cfg    *config.Config
	parser cron.Parser
}

func NewCronValidator(cfg *config.Config) *CronValidator {
	return &CronValidator{
		cfg: cfg,
		parser: cron.NewParser(
			cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
}

// Validate parses the expression in the given timezone and walks the next
// fire times, rejecting when any successive gap is below the minimum
// interval.
func (v *CronValidator) Validate(expression, timezone string) error {
	spec := expression
	if timezone != "" {
		spec = fmt.Sprintf("CRON_TZ=%s %s", timezone, expression)
	}

	schedule, err := v.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, expression, err)
	}

	minInterval := v.cfg.Schedule.MinInterval
	if minInterval <= 0 {
		return nil
	}

	horizon := v.cfg.Schedule.ValidationHorizon
	if horizon < 2 {
		horizon = 2
	}

	prev := schedule.Next(time.Now())
	for i := 1; i < horizon; i++ {
		next := schedule.Next(prev)
		if next.IsZero() {
			break
		}
		if gap := next.Sub(prev); gap < minInterval {
			return fmt.Errorf("%w: fires every %s, minimum is %s", ErrTooFrequent, gap, minInterval)
		}
		prev = next
	}
	return nil
}
