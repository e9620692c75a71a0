// Package schedule turns raw registry slots into a date/time grid and
// picks the closest alternative when the user's wish is not available.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zhukovDV72toru/alice/internal/registry"
)

const (
	// DateLayout is the canonical key format for grid dates.
	DateLayout = "02.01.2006"
	// TimeLayout is the canonical key format for grid times.
	TimeLayout = "15:04"

	initialWindowDays = 14
	windowStepDays    = 7
	maxWindowDays     = 28
)

// Grid indexes bookable slots by date key, then time key.
type Grid map[string]map[string]registry.Slot

// Group buckets slots into a grid. Later duplicates on the same
// date/time overwrite earlier ones.
func Group(slots []registry.Slot) Grid {
	grid := make(Grid)
	for _, slot := range slots {
		date := slot.Time.Format(DateLayout)
		if grid[date] == nil {
			grid[date] = make(map[string]registry.Slot)
		}
		grid[date][slot.Time.Format(TimeLayout)] = slot
	}
	return grid
}

// Dates returns the grid's date keys in chronological order.
func (g Grid) Dates() []string {
	dates := make([]string, 0, len(g))
	for d := range g {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		a, _ := time.Parse(DateLayout, dates[i])
		b, _ := time.Parse(DateLayout, dates[j])
		return a.Before(b)
	})
	return dates
}

// TimesFor returns the time keys of one date in ascending order.
func (g Grid) TimesFor(date string) []string {
	times := make([]string, 0, len(g[date]))
	for t := range g[date] {
		times = append(times, t)
	}
	sort.Strings(times)
	return times
}

// Finder queries the registry with a widening date window until slots
// appear or the window hits its cap.
type Finder struct {
	client registry.Client
}

// NewFinder builds a finder over the registry client.
func NewFinder(client registry.Client) *Finder {
	if client == nil {
		panic("schedule: registry client cannot be nil")
	}
	return &Finder{client: client}
}

// Find looks for bookable slots starting at from. The window opens at
// 14 days and widens by 7 up to 28; an empty grid after the widest
// window means the clinician has nothing bookable.
func (f *Finder) Find(ctx context.Context, sessionID, credential string, professionID int, from time.Time) (Grid, error) {
	for window := initialWindowDays; window <= maxWindowDays; window += windowStepDays {
		slots, err := f.client.ListSlots(ctx, sessionID, credential, professionID, registry.SlotQuery{
			DateStart: from,
			DateEnd:   from.AddDate(0, 0, window),
			TimeStart: "00:00:00",
			TimeEnd:   "23:59:59",
		})
		if err != nil {
			return nil, fmt.Errorf("schedule: slot lookup failed: %w", err)
		}
		if len(slots) > 0 {
			return Group(slots), nil
		}
	}
	return Grid{}, nil
}

// NearestDate picks the available date closest to target. When
// allowEarlier is false, dates strictly before the target are excluded.
// On a distance tie the first candidate in input order wins.
func NearestDate(target time.Time, dates []string, allowEarlier bool) (string, bool) {
	targetDay := target.Truncate(24 * time.Hour)

	best := ""
	bestDist := time.Duration(-1)
	for _, d := range dates {
		day, err := time.Parse(DateLayout, d)
		if err != nil {
			continue
		}
		if !allowEarlier && day.Before(targetDay) {
			continue
		}
		dist := day.Sub(targetDay)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = d
			bestDist = dist
		}
	}
	return best, best != ""
}

// NearestTime picks the available time closest to target, measured in
// minutes since midnight with no wrap across midnight. When
// allowEarlier is false, times strictly before the target are
// excluded. On a tie the first candidate in input order wins.
func NearestTime(target string, times []string, allowEarlier bool) (string, bool) {
	want, err := minutesOfDay(target)
	if err != nil {
		return "", false
	}

	best := ""
	bestDist := -1
	for _, t := range times {
		m, err := minutesOfDay(t)
		if err != nil {
			continue
		}
		dist := m - want
		if dist < 0 {
			if !allowEarlier {
				continue
			}
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best = t
			bestDist = dist
		}
	}
	return best, best != ""
}

func minutesOfDay(s string) (int, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
