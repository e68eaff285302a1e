// -----------------------------------------------------------------------
// Schedule file loading - YAML mapping of named schedule entries
// -----------------------------------------------------------------------

package scheduler

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rmarinho/garimpo/internal/models"
)

var validate = validator.New()

type scheduleDoc struct {
	Schedules map[string]yaml.Node `yaml:"schedules"`
}

// LoadSchedules reads and validates the schedules YAML file. Entries are
// returned name-sorted; missing `enabled` defaults to true, missing
// `priority` to normal. An invalid entry fails the whole load so a typo
// cannot silently drop a schedule.
func LoadSchedules(path string) ([]*models.Schedule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedules file: %w", err)
	}
	return ParseSchedules(raw)
}

// ParseSchedules decodes schedule entries from YAML bytes.
func ParseSchedules(raw []byte) ([]*models.Schedule, error) {
	var doc scheduleDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schedules file: %w", err)
	}

	schedules := make([]*models.Schedule, 0, len(doc.Schedules))
	for name, node := range doc.Schedules {
		// Pre-filled defaults survive when the key is absent from YAML.
		schedule := &models.Schedule{
			Enabled:  true,
			Priority: models.PriorityNormal,
		}
		if err := node.Decode(schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %s: %w", name, err)
		}
		schedule.Name = name

		if err := validate.Struct(schedule); err != nil {
			return nil, fmt.Errorf("invalid schedule %s: %w", name, err)
		}
		if schedule.Priority != models.PriorityHigh &&
			schedule.Priority != models.PriorityNormal &&
			schedule.Priority != models.PriorityLow {
			return nil, fmt.Errorf("invalid schedule %s: unknown priority %q", name, schedule.Priority)
		}
		if _, err := BuildTrigger(schedule); err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	sort.Slice(schedules, func(i, j int) bool { return schedules[i].Name < schedules[j].Name })
	return schedules, nil
}
