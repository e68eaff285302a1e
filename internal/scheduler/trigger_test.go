package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmarinho/garimpo/internal/models"
)

func TestCronTriggerFiresInSaoPauloTime(t *testing.T) {
	trigger, err := BuildTrigger(&models.Schedule{
		Name:    "daily",
		Scraper: "fundamentus",
		Type:    models.TriggerCron,
		Hour:    "10",
		Minute:  "30",
	})
	require.NoError(t, err)

	loc, err := time.LoadLocation(Timezone)
	require.NoError(t, err)

	from := time.Date(2026, 8, 10, 8, 0, 0, 0, loc)
	next := trigger.NextFire(from)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 8, 10, 10, 30, 0, 0, loc), next.In(loc))

	// past today's fire time rolls to tomorrow
	from = time.Date(2026, 8, 10, 11, 0, 0, 0, loc)
	next = trigger.NextFire(from)
	require.NotNil(t, next)
	assert.Equal(t, time.Date(2026, 8, 11, 10, 30, 0, 0, loc), next.In(loc))
}

func TestCronTriggerWeekdayField(t *testing.T) {
	trigger, err := BuildTrigger(&models.Schedule{
		Name:      "weekdays",
		Scraper:   "brapi",
		Type:      models.TriggerCron,
		Hour:      "18",
		DayOfWeek: "1-5",
	})
	require.NoError(t, err)

	loc, _ := time.LoadLocation(Timezone)
	// Saturday evening rolls to Monday
	from := time.Date(2026, 8, 8, 19, 0, 0, 0, loc)
	next := trigger.NextFire(from)
	require.NotNil(t, next)
	assert.Equal(t, time.Weekday(1), next.In(loc).Weekday())
	assert.Equal(t, 18, next.In(loc).Hour())
}

func TestIntervalTriggerNextFire(t *testing.T) {
	trigger, err := BuildTrigger(&models.Schedule{
		Name:    "often",
		Scraper: "brapi",
		Type:    models.TriggerInterval,
		Minutes: 15,
	})
	require.NoError(t, err)

	now := time.Now()
	next := trigger.NextFire(now)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(15*time.Minute), *next)
}

func TestIntervalTriggerRequiresDuration(t *testing.T) {
	_, err := BuildTrigger(&models.Schedule{
		Name:    "never",
		Scraper: "brapi",
		Type:    models.TriggerInterval,
	})
	assert.Error(t, err)
}

func TestOneShotTriggerExhausts(t *testing.T) {
	trigger, err := BuildTrigger(&models.Schedule{
		Name:    "once",
		Scraper: "cvm",
		Type:    models.TriggerDate,
		RunDate: "2026-09-01T12:00:00",
	})
	require.NoError(t, err)

	loc, _ := time.LoadLocation(Timezone)
	at := time.Date(2026, 9, 1, 12, 0, 0, 0, loc)

	next := trigger.NextFire(at.Add(-time.Hour))
	require.NotNil(t, next)
	assert.True(t, next.Equal(at))

	assert.Nil(t, trigger.NextFire(at), "a one-shot never fires twice")
	assert.Nil(t, trigger.NextFire(at.Add(time.Hour)))
}

func TestBuildTriggerUnknownType(t *testing.T) {
	_, err := BuildTrigger(&models.Schedule{Name: "x", Scraper: "y", Type: "hourly"})
	assert.Error(t, err)
}
