// Package progress derives statistics from a client's workout history.
// Every function is pure: the same history always yields the same result,
// so nothing here needs to be persisted.
package progress

import (
	"math"
	"sort"
	"time"

	"fittrainer/backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StreakLookbackDays bounds how far back the streak scan goes.
const StreakLookbackDays = 30

// CompletionRate returns round(100*completed/total), 0 for an empty history.
func CompletionRate(workouts []domain.Workout) (rate, completed, total int) {
	total = len(workouts)
	for i := range workouts {
		if workouts[i].IsCompleted() {
			completed++
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	rate = int(math.Round(float64(completed) * 100 / float64(total)))
	return rate, completed, total
}

type dayKey struct {
	year  int
	month time.Month
	day   int
}

func keyOf(t time.Time, loc *time.Location) dayKey {
	y, m, d := t.In(loc).Date()
	return dayKey{y, m, d}
}

// StreakDays counts consecutive calendar days in loc, ending today, with at
// least one completed workout. An empty today neither breaks nor extends a
// streak that ends yesterday.
func StreakDays(workouts []domain.Workout, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	days := make(map[dayKey]struct{})
	for i := range workouts {
		w := &workouts[i]
		if w.IsCompleted() && w.CompletedAt != nil {
			days[keyOf(*w.CompletedAt, loc)] = struct{}{}
		}
	}
	if len(days) == 0 {
		return 0
	}

	y, m, d := now.In(loc).Date()
	streak := 0
	for i := 0; i < StreakLookbackDays; i++ {
		day := time.Date(y, m, d-i, 0, 0, 0, 0, loc)
		if _, ok := days[keyOf(day, loc)]; ok {
			streak++
		} else if i > 0 {
			break
		}
	}
	return streak
}

// chronological returns the completed workouts ordered by completion time.
// Workouts without completedAt sort last; ties keep the input order.
func chronological(workouts []domain.Workout) []*domain.Workout {
	completed := make([]*domain.Workout, 0, len(workouts))
	for i := range workouts {
		if workouts[i].IsCompleted() {
			completed = append(completed, &workouts[i])
		}
	}
	sort.SliceStable(completed, func(i, j int) bool {
		a, b := completed[i].CompletedAt, completed[j].CompletedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return completed
}

// Best is the heaviest completed set of one exercise.
type Best struct {
	ExerciseID primitive.ObjectID
	Value      float64
	Date       time.Time // completion time of the workout holding the record
}

// PersonalBests scans completed workouts chronologically and keeps, per
// exercise, the maximum actualWeight among completed sets. Sets without a
// positive actualWeight are ignored and the earliest of equal maxima wins.
// Results are ordered by first appearance of the exercise.
func PersonalBests(workouts []domain.Workout) []Best {
	index := make(map[primitive.ObjectID]int)
	var bests []Best

	for _, w := range chronological(workouts) {
		var date time.Time
		if w.CompletedAt != nil {
			date = *w.CompletedAt
		}
		for _, ex := range w.ExerciseData {
			if ex.ExerciseID == primitive.NilObjectID {
				continue
			}
			for _, set := range ex.Sets {
				if !set.Completed || set.ActualWeight == nil || *set.ActualWeight <= 0 {
					continue
				}
				value := *set.ActualWeight
				i, seen := index[ex.ExerciseID]
				if !seen {
					index[ex.ExerciseID] = len(bests)
					bests = append(bests, Best{ExerciseID: ex.ExerciseID, Value: value, Date: date})
					continue
				}
				if value > bests[i].Value {
					bests[i].Value = value
					bests[i].Date = date
				}
			}
		}
	}
	if bests == nil {
		return []Best{}
	}
	return bests
}

// WeightTrend returns the weight series in date order. Without recorded
// history the latest profile weight, if any, is the only point.
func WeightTrend(entries []domain.WeightEntry, client *domain.Client) []domain.WeightPoint {
	points := make([]domain.WeightPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, domain.WeightPoint{Date: e.Date, Value: e.Value})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	if len(points) == 0 && client != nil && client.Weight > 0 {
		points = append(points, domain.WeightPoint{Date: client.UpdatedAt, Value: client.Weight})
	}
	return points
}

// TrainerSummary aggregates the workouts a trainer created.
type TrainerSummary struct {
	WorkoutsCompleted     int // completed within the last 30 days
	AverageCompletionRate int // over workouts scheduled up to now
}

// SummarizeTrainer computes the trainer dashboard numbers.
func SummarizeTrainer(workouts []domain.Workout, now time.Time) TrainerSummary {
	var summary TrainerSummary
	since := now.AddDate(0, 0, -30)
	due, done := 0, 0
	for i := range workouts {
		w := &workouts[i]
		if w.IsCompleted() && w.CompletedAt != nil && !w.CompletedAt.Before(since) {
			summary.WorkoutsCompleted++
		}
		if !w.ScheduledAt.After(now) {
			due++
			if w.IsCompleted() {
				done++
			}
		}
	}
	if due > 0 {
		summary.AverageCompletionRate = int(math.Round(float64(done) * 100 / float64(due)))
	}
	return summary
}

// PointsPerMinute is the reward rate for a completed workout.
const PointsPerMinute = 10

// Points awards PointsPerMinute for every whole minute of duration.
func Points(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 0
	}
	return durationSeconds / 60 * PointsPerMinute
}
