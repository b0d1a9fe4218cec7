package progress

import (
	"sort"
	"time"

	"fittrainer/backend/internal/domain"
)

const (
	FirstWorkoutID      = "first_workout"
	WorkoutWarriorID    = "workout_warrior"
	FitnessEnthusiastID = "fitness_enthusiast"
	PerfectWeekID       = "perfect_week"
	EarlyBirdID         = "early_bird"
)

// earlyBirdHour: a workout completed before this local hour counts.
const earlyBirdHour = 8

const perfectWeekWindow = 7 * 24 * time.Hour

type milestone struct {
	count       int
	achievement domain.Achievement
}

var milestones = []milestone{
	{1, domain.Achievement{ID: FirstWorkoutID, Name: "First Workout", Description: "Completed your first workout.", Icon: "🏆"}},
	{5, domain.Achievement{ID: WorkoutWarriorID, Name: "Workout Warrior", Description: "Completed 5 workouts.", Icon: "💪"}},
	{10, domain.Achievement{ID: FitnessEnthusiastID, Name: "Fitness Enthusiast", Description: "Completed 10 workouts.", Icon: "⭐"}},
}

var (
	perfectWeek = domain.Achievement{ID: PerfectWeekID, Name: "Perfect Week", Description: "Completed all scheduled workouts in a week.", Icon: "🌟"}
	earlyBird   = domain.Achievement{ID: EarlyBirdID, Name: "Early Bird", Description: "Completed a workout before 8am.", Icon: "🌅"}
)

// UnlockedAt returns the milestones reached by exactly the given completed
// count: the achievements a completion that brings the client to it unlocks.
// Dates and icons are left out.
func UnlockedAt(completedCount int64) []domain.Achievement {
	unlocked := []domain.Achievement{}
	for _, m := range milestones {
		if int64(m.count) == completedCount {
			a := m.achievement
			a.Icon = ""
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

func dated(a domain.Achievement, t *time.Time) domain.Achievement {
	if t != nil {
		at := *t
		a.Date = &at
	}
	return a
}

// Achievements evaluates the whole catalog against a history. Count
// milestones are dated at the n-th completion, Perfect Week at the last
// workout of the first qualifying window and Early Bird at the first early
// completion. Hours are taken in loc.
func Achievements(workouts []domain.Workout, loc *time.Location) []domain.Achievement {
	if loc == nil {
		loc = time.Local
	}
	achievements := []domain.Achievement{}

	completed := chronological(workouts)
	for _, m := range milestones {
		if len(completed) >= m.count {
			achievements = append(achievements, dated(m.achievement, completed[m.count-1].CompletedAt))
		}
	}

	if date, ok := perfectWeekDate(workouts); ok {
		achievements = append(achievements, dated(perfectWeek, date))
	}

	for _, w := range completed {
		if w.CompletedAt != nil && w.CompletedAt.In(loc).Hour() < earlyBirdHour {
			achievements = append(achievements, dated(earlyBird, w.CompletedAt))
			break
		}
	}
	return achievements
}

// perfectWeekDate looks for a 7-day window, starting at some workout's
// scheduled time, in which every scheduled workout was completed. Windows are
// examined in schedule order with two pointers over the sorted history.
func perfectWeekDate(workouts []domain.Workout) (*time.Time, bool) {
	sorted := make([]*domain.Workout, len(workouts))
	for i := range workouts {
		sorted[i] = &workouts[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt)
	})

	end, pending := 0, 0 // window is sorted[start:end]; pending = not completed inside it
	for start := 0; start < len(sorted); start++ {
		if start > 0 {
			if !sorted[start-1].IsCompleted() {
				pending--
			}
			// Equal start times describe the same window.
			if sorted[start].ScheduledAt.Equal(sorted[start-1].ScheduledAt) {
				continue
			}
		}
		limit := sorted[start].ScheduledAt.Add(perfectWeekWindow)
		for end < len(sorted) && sorted[end].ScheduledAt.Before(limit) {
			if !sorted[end].IsCompleted() {
				pending++
			}
			end++
		}
		if pending == 0 {
			return sorted[end-1].CompletedAt, true
		}
	}
	return nil, false
}
