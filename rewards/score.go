/*
Package rewards provides the gamification layer on top of goal progress.

PURPOSE:
  Turns goal completion states into points, badges and a leaderboard.
  Everything here is derived display state: recomputed every evaluation
  cycle from progress percentages and never persisted.

SCORING:
  +100 for every goal at or above 100%
  +floor(progress/10) * 5 for every goal (partial credit per 10%)

  Example: orders at 100%, sales at 47%
    orders: 100 + 10*5 = 150
    sales:         4*5 =  20
    total:               170

LEADERBOARD:
  Entries sorted by score descending. Ties share a rank (dense ranking)
  and are ordered by name for stable output.

SEE ALSO:
  - goal/engine.go: Builds States from each cycle
*/
package rewards

import (
	"math"
	"sort"
)

const (
	CompletionBonus  = 100
	PointsPerTenth   = 5
	completionTarget = 100.0
)

// State is the completion state of one goal.
type State struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Progress float64 `json:"progress"` // 0-100
}

// Completed reports whether the goal is at or above 100%.
func (s State) Completed() bool { return s.Progress >= completionTarget }

// Points returns the score contributed by a single goal.
func Points(progress float64) int {
	if progress < 0 || math.IsNaN(progress) {
		return 0
	}
	pts := int(math.Floor(progress/10)) * PointsPerTenth
	if progress >= completionTarget {
		pts += CompletionBonus
	}
	return pts
}

// Score returns the total points across goals.
func Score(states []State) int {
	total := 0
	for _, s := range states {
		total += Points(s.Progress)
	}
	return total
}

// =============================================================================
// LEADERBOARD
// =============================================================================

// Entry is one leaderboard row.
type Entry struct {
	Rank      int      `json:"rank"`
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Score     int      `json:"score"`
	Completed bool     `json:"completed"`
	Badges    []string `json:"badges,omitempty"`
}

// Leaderboard scores each state and ranks the results.
func Leaderboard(states []State) []Entry {
	entries := make([]Entry, 0, len(states))
	for _, s := range states {
		entries = append(entries, Entry{
			ID:        s.ID,
			Name:      s.Name,
			Score:     Points(s.Progress),
			Completed: s.Completed(),
			Badges:    Badges(s),
		})
	}
	Rank(entries)
	return entries
}

// Rank sorts entries by score descending and assigns dense ranks in place.
func Rank(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}

// =============================================================================
// BADGES
// =============================================================================

const (
	BadgeFirstMilestone = "first-milestone"
	BadgeHalfway        = "halfway"
	BadgeGoalCrusher    = "goal-crusher"
)

// Badges returns the badges earned by a goal state.
func Badges(s State) []string {
	var out []string
	if s.Progress >= 25 {
		out = append(out, BadgeFirstMilestone)
	}
	if s.Progress >= 50 {
		out = append(out, BadgeHalfway)
	}
	if s.Completed() {
		out = append(out, BadgeGoalCrusher)
	}
	return out
}
