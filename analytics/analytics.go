// Package analytics derives today/week per-category minute totals from a
// bounded window of activity events. Aggregation is a pure function over
// its inputs and is recomputed on demand; nothing here is incremental.
package analytics

import (
	"math"
	"sort"
	"strings"
	"time"

	domain "github.com/kenrgriggs/whatskennethdoing/domain/activity"
)

// Report holds the aggregated per-category minute totals.
type Report struct {
	TodayStart  time.Time      `json:"todayStart"`
	WeekStart   time.Time      `json:"weekStart"`
	TodayTotals map[string]int `json:"todayTotals"`
	WeekTotals  map[string]int `json:"weekTotals"`
	// Categories is the union of category keys, ordered by descending
	// week minutes, then case-insensitive name as a tie-break.
	Categories []string `json:"categories"`
}

// TodayStart returns local midnight of now's date.
func TodayStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns local midnight of the most recent Monday. For a
// Sunday, that is six days prior.
func WeekStart(now time.Time, loc *time.Location) time.Time {
	day := TodayStart(now, loc)
	back := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -back)
}

// Aggregate groups the given events into today and week per-category
// minute totals. Events starting before the week boundary are ignored.
// Open events are measured up to now. An empty category falls back to
// fallbackCategory.
func Aggregate(events []domain.Event, now time.Time, loc *time.Location, fallbackCategory string) Report {
	todayStart := TodayStart(now, loc)
	weekStart := WeekStart(now, loc)

	report := Report{
		TodayStart:  todayStart,
		WeekStart:   weekStart,
		TodayTotals: map[string]int{},
		WeekTotals:  map[string]int{},
	}

	for _, e := range events {
		if e.StartedAt.Before(weekStart) {
			continue
		}
		end := now
		if e.EndedAt != nil {
			end = *e.EndedAt
		}
		minutes := elapsedMinutes(e.StartedAt, end)

		category := strings.TrimSpace(e.Category)
		if category == "" {
			category = fallbackCategory
		}

		report.WeekTotals[category] += minutes
		if !e.StartedAt.Before(todayStart) {
			report.TodayTotals[category] += minutes
		}
	}

	report.Categories = orderedCategories(report.WeekTotals, report.TodayTotals)
	return report
}

// elapsedMinutes rounds the elapsed time to whole minutes, floored at
// zero.
func elapsedMinutes(start, end time.Time) int {
	ms := end.Sub(start).Milliseconds()
	minutes := int(math.Round(float64(ms) / 60000.0))
	if minutes < 0 {
		return 0
	}
	return minutes
}

func orderedCategories(week, today map[string]int) []string {
	seen := map[string]bool{}
	var categories []string
	for c := range week {
		if !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}
	for c := range today {
		if !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}

	sort.Slice(categories, func(i, j int) bool {
		wi, wj := week[categories[i]], week[categories[j]]
		if wi != wj {
			return wi > wj
		}
		return strings.ToLower(categories[i]) < strings.ToLower(categories[j])
	})
	return categories
}
