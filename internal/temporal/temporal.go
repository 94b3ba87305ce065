// Package temporal provides read-only time-based aggregation over
// stored memories: timelines, activity stats, and streaks.
package temporal

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/tkuo/mnemo/internal/model"
	"github.com/tkuo/mnemo/internal/store"
)

const (
	// DefaultDays bounds a timeline to the most recent days.
	DefaultDays = 30
	// maxPerDay caps attached memories per timeline day.
	maxPerDay = 20

	dayFormat = "2006-01-02"
)

// TimelineParams configures a timeline query.
type TimelineParams struct {
	After        time.Time
	Before       time.Time
	Days         int
	WithMemories bool
}

// TimelineDay is one calendar day's bucket, optionally with its
// memories attached.
type TimelineDay struct {
	Day      string         `json:"day"`
	Count    int            `json:"count"`
	Memories []model.Memory `json:"memories,omitempty"`
}

// Stats summarizes memory activity over time.
type Stats struct {
	ActiveDays    int     `json:"active_days"`
	TotalMemories int     `json:"total_memories"`
	AvgPerDay     float64 `json:"avg_per_day"`
	MostActiveDay string  `json:"most_active_day,omitempty"`
	MostActiveN   int     `json:"most_active_count,omitempty"`
	StreakCurrent int     `json:"streak_current"`
	StreakLongest int     `json:"streak_longest"`
}

// Analytics answers temporal queries against the store.
type Analytics struct {
	store *store.SQLiteStore
	// now is swapped in tests to pin streak arithmetic.
	now func() time.Time
}

// NewAnalytics returns temporal analytics over the given store.
func NewAnalytics(s *store.SQLiteStore) *Analytics {
	return &Analytics{store: s, now: time.Now}
}

// Timeline buckets active memories by day, most recent day first,
// bounded to p.Days (default 30). With p.WithMemories each day gets
// up to 20 memories ordered by importance then recency.
func (a *Analytics) Timeline(ctx context.Context, p TimelineParams) ([]TimelineDay, error) {
	days := p.Days
	if days <= 0 {
		days = DefaultDays
	}

	counts, err := a.store.DailyCounts(ctx, p.After, p.Before)
	if err != nil {
		return nil, err
	}

	// DailyCounts is oldest-first; the timeline reads newest-first.
	out := make([]TimelineDay, 0, len(counts))
	for i := len(counts) - 1; i >= 0 && len(out) < days; i-- {
		out = append(out, TimelineDay{Day: counts[i].Day, Count: counts[i].Count})
	}

	if !p.WithMemories {
		return out, nil
	}

	for i := range out {
		dayStart, err := time.Parse(dayFormat, out[i].Day)
		if err != nil {
			continue
		}
		memories, err := a.store.ListMemories(ctx, store.ListParams{
			After:      dayStart,
			Before:     dayStart.Add(24*time.Hour - time.Second),
			ActiveOnly: true,
			Limit:      200,
		})
		if err != nil {
			return nil, err
		}
		sort.Slice(memories, func(x, y int) bool {
			if memories[x].Importance != memories[y].Importance {
				return memories[x].Importance > memories[y].Importance
			}
			return memories[x].CreatedAt.After(memories[y].CreatedAt)
		})
		if len(memories) > maxPerDay {
			memories = memories[:maxPerDay]
		}
		out[i].Memories = memories
	}
	return out, nil
}

// Stats computes distinct active days, average memories per day, the
// most active day (first encountered wins ties), the current streak
// ending today (today itself may be empty), and the longest
// historical streak.
func (a *Analytics) Stats(ctx context.Context) (*Stats, error) {
	counts, err := a.store.DailyCounts(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	st := &Stats{ActiveDays: len(counts)}
	if len(counts) == 0 {
		return st, nil
	}

	for _, dc := range counts {
		st.TotalMemories += dc.Count
		if dc.Count > st.MostActiveN {
			st.MostActiveDay, st.MostActiveN = dc.Day, dc.Count
		}
	}
	st.AvgPerDay = math.Round(float64(st.TotalMemories)/float64(len(counts))*100) / 100

	days := make([]time.Time, 0, len(counts))
	for _, dc := range counts {
		d, err := time.Parse(dayFormat, dc.Day)
		if err != nil {
			continue
		}
		days = append(days, d)
	}

	st.StreakLongest = longestRun(days)
	st.StreakCurrent = currentRun(days, a.now().UTC().Truncate(24*time.Hour))
	return st, nil
}

// longestRun finds the maximal consecutive-day run in a sorted
// distinct day list.
func longestRun(days []time.Time) int {
	longest, run := 0, 0
	for i, d := range days {
		if i > 0 && d.Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// currentRun counts consecutive days ending at today. Today having no
// entries does not break the streak; a gap at any earlier day does.
func currentRun(days []time.Time, today time.Time) int {
	have := make(map[string]bool, len(days))
	for _, d := range days {
		have[d.Format(dayFormat)] = true
	}

	start := today
	if !have[start.Format(dayFormat)] {
		start = start.Add(-24 * time.Hour)
	}

	run := 0
	for have[start.Format(dayFormat)] {
		run++
		start = start.Add(-24 * time.Hour)
	}
	return run
}
