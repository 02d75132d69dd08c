package service

import (
	"time"

	"github.com/truesoulcoder/dealpig-sub000/internal/model"
)

// Slot is a sender's position in the rotation with its working quota.
type Slot struct {
	SenderID  int
	Remaining int
}

// Pair is one lead assigned to one sender at a send time.
type Pair struct {
	Lead         model.CampaignLead
	SenderID     int
	ScheduledFor time.Time
}

type Assignment struct {
	Pairs []Pair
	// NextCursor is the rotation position after the last assigned sender.
	NextCursor int
}

// Assigner round-robins leads over sender slots. Which sender gets which
// lead is deterministic; only the send times are random.
type Assigner struct {
	Window *TimeWindow
}

// Assign distributes leads, capped at the campaign's leads_per_day, starting
// the rotation at cursor. Senders with no remaining quota are skipped; when a
// full circle finds none the rest of the leads stay unassigned. slots is not
// modified.
func (a *Assigner) Assign(c *model.Campaign, leads []model.CampaignLead, slots []Slot, cursor int, baseline time.Time) (Assignment, error) {
	result := Assignment{Pairs: []Pair{}, NextCursor: cursor}
	if _, err := a.Window.Validate(c); err != nil {
		return result, err
	}
	if len(slots) == 0 {
		return result, nil
	}
	if c.LeadsPerDay >= 0 && len(leads) > c.LeadsPerDay {
		leads = leads[:c.LeadsPerDay]
	}

	remaining := make([]int, len(slots))
	for i, s := range slots {
		remaining[i] = s.Remaining
	}

	pos := ((cursor % len(slots)) + len(slots)) % len(slots)
	picks := make([]int, 0, len(leads))
	for range leads {
		found := -1
		for step := 0; step < len(slots); step++ {
			i := (pos + step) % len(slots)
			if remaining[i] > 0 {
				found = i
				break
			}
		}
		if found < 0 {
			break
		}
		remaining[found]--
		picks = append(picks, found)
		pos = (found + 1) % len(slots)
	}
	result.NextCursor = pos

	// one chain of send times per sender, consumed in assignment order
	counts := make([]int, len(slots))
	for _, i := range picks {
		counts[i]++
	}
	chains := make([][]time.Time, len(slots))
	for i, n := range counts {
		if n == 0 {
			continue
		}
		times, err := a.Window.SendTimes(c, baseline, n)
		if err != nil {
			return Assignment{Pairs: []Pair{}, NextCursor: cursor}, err
		}
		chains[i] = times
	}

	for k, i := range picks {
		result.Pairs = append(result.Pairs, Pair{
			Lead:         leads[k],
			SenderID:     slots[i].SenderID,
			ScheduledFor: chains[i][0],
		})
		chains[i] = chains[i][1:]
	}
	return result, nil
}
