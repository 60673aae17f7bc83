package clinic

import (
	"fmt"
	"time"

	"github.com/caredesk/clinic-scheduling/internal/slot"
	"github.com/caredesk/clinic-scheduling/internal/timeofday"
)

// maxProvisionDays bounds one provisioning call so a bad date range cannot
// generate months of rows in a single request.
const maxProvisionDays = 92

// BuildSlots expands a clinic's weekly hours into 30-minute slots for every
// active staff member across [from, to] inclusive. Days without hours yield
// nothing. The caller persists the result with slot.Store.BulkCreate, whose
// conflict handling makes re-provisioning an overlapping range safe.
func BuildSlots(c *Clinic, staff []Staff, from, to time.Time) ([]slot.Slot, error) {
	if c == nil {
		return nil, fmt.Errorf("clinic: provision: clinic required")
	}
	from = midnight(from)
	to = midnight(to)
	if to.Before(from) {
		return nil, fmt.Errorf("clinic: provision: range end before start")
	}
	if int(to.Sub(from).Hours()/24) >= maxProvisionDays {
		return nil, fmt.Errorf("clinic: provision: range exceeds %d days", maxProvisionDays)
	}

	var out []slot.Slot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		marks := c.Hours.ForWeekday(day.Weekday()).SlotTimes()
		if len(marks) == 0 {
			continue
		}
		for _, st := range staff {
			if !st.Active || st.ClinicID != c.ID {
				continue
			}
			for _, mark := range marks {
				start, err := timeofday.Parse(mark)
				if err != nil {
					return nil, fmt.Errorf("clinic: provision: bad mark %q: %w", mark, err)
				}
				out = append(out, slot.Slot{
					ClinicID:  c.ID,
					StaffID:   st.ID,
					Date:      day,
					StartTime: mark,
					EndTime:   timeofday.Format(start + 30),
				})
			}
		}
	}
	return out, nil
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
