package syncstore

import (
	"context"
	"fmt"
	"time"
)

// IntensityBand holds the count and percentage of sets in one user-intensity
// range.
type IntensityBand struct {
	Band string  `json:"band"`
	Span string  `json:"range"`
	Sets int     `json:"sets"`
	Pct  float64 `json:"pct"`
}

// ExerciseIntensity holds aggregated intensity stats for a single exercise.
type ExerciseIntensity struct {
	ExerciseID   string  `json:"exercise_id"`
	TotalSets    int     `json:"total_sets"`
	TotalReps    int     `json:"total_reps"`
	TonnageKg    float64 `json:"tonnage_kg"`
	AvgIntensity float64 `json:"avg_intensity"`
	MaxIntensity float64 `json:"max_intensity"`
	AvgTempo     float64 `json:"avg_tempo_score"`
}

// WeeklyIntensity holds one week's best and average trainer intensity.
// The trainer view uses it to spot plateaus across weeks.
type WeeklyIntensity struct {
	WeekStart    string  `json:"week_start"`
	Sets         int     `json:"sets"`
	AvgIntensity float64 `json:"avg_intensity"`
	BestTrainer  float64 `json:"best_trainer_intensity"`
}

// IntensitySummaryResult holds the complete intensity analysis.
type IntensitySummaryResult struct {
	Distribution []IntensityBand     `json:"distribution"`
	TotalSets    int                 `json:"total_sets"`
	Exercises    []ExerciseIntensity `json:"exercises"`
	Weekly       []WeeklyIntensity   `json:"weekly,omitempty"`
}

// GetIntensitySummary returns the intensity distribution, per-exercise
// stats, and week-by-week progression when an exercise filter is set.
func (db *DB) GetIntensitySummary(ctx context.Context, start, end time.Time, userID int, exerciseFilter string) (*IntensitySummaryResult, error) {
	result := &IntensitySummaryResult{}

	bandRows, err := db.Pool.Query(ctx,
		`SELECT band, span, sets FROM (
			SELECT
				CASE
					WHEN user_intensity >= 95 THEN 'maximal'
					WHEN user_intensity >= 85 THEN 'hard'
					WHEN user_intensity >= 70 THEN 'moderate'
					ELSE 'light'
				END AS band,
				CASE
					WHEN user_intensity >= 95 THEN '95-100'
					WHEN user_intensity >= 85 THEN '85-95'
					WHEN user_intensity >= 70 THEN '70-85'
					ELSE '<70'
				END AS span,
				COUNT(*)::int AS sets
			FROM set_records
			WHERE completed_at >= $1 AND completed_at < $2
				AND user_id = $3
				AND ($4 = '' OR exercise_id ILIKE '%' || $4 || '%')
			GROUP BY band, span
		) sub
		ORDER BY CASE band
			WHEN 'maximal' THEN 1
			WHEN 'hard' THEN 2
			WHEN 'moderate' THEN 3
			WHEN 'light' THEN 4
		END`,
		start, end, userID, exerciseFilter)
	if err != nil {
		return nil, fmt.Errorf("querying intensity distribution: %w", err)
	}
	defer bandRows.Close()

	var totalSets int
	for bandRows.Next() {
		var b IntensityBand
		if err := bandRows.Scan(&b.Band, &b.Span, &b.Sets); err != nil {
			return nil, fmt.Errorf("scanning intensity band: %w", err)
		}
		totalSets += b.Sets
		result.Distribution = append(result.Distribution, b)
	}
	if err := bandRows.Err(); err != nil {
		return nil, err
	}

	result.TotalSets = totalSets
	for i := range result.Distribution {
		if totalSets > 0 {
			result.Distribution[i].Pct = float64(result.Distribution[i].Sets) / float64(totalSets) * 100
		}
	}

	exRows, err := db.Pool.Query(ctx,
		`SELECT exercise_id,
		        COUNT(*)::int,
		        COALESCE(SUM(reps), 0)::int,
		        COALESCE(SUM(weight_kg * reps), 0),
		        COALESCE(AVG(user_intensity), 0),
		        COALESCE(MAX(user_intensity), 0),
		        COALESCE(AVG(tempo_score), 0)
		 FROM set_records
		 WHERE completed_at >= $1 AND completed_at < $2
		   AND user_id = $3
		 GROUP BY exercise_id
		 ORDER BY SUM(weight_kg * reps) DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise intensity: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var e ExerciseIntensity
		if err := exRows.Scan(&e.ExerciseID, &e.TotalSets, &e.TotalReps, &e.TonnageKg,
			&e.AvgIntensity, &e.MaxIntensity, &e.AvgTempo); err != nil {
			return nil, fmt.Errorf("scanning exercise intensity: %w", err)
		}
		result.Exercises = append(result.Exercises, e)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	// Weekly progression uses the uncapped trainer intensity so a plateau
	// is visible even when every set caps at 100.
	if exerciseFilter != "" {
		weekRows, err := db.Pool.Query(ctx,
			`SELECT date_trunc('week', completed_at) AS week_start,
			        COUNT(*)::int,
			        COALESCE(AVG(user_intensity), 0),
			        COALESCE(MAX(trainer_intensity), 0)
			 FROM set_records
			 WHERE completed_at >= $1 AND completed_at < $2
			   AND user_id = $3
			   AND exercise_id ILIKE '%' || $4 || '%'
			 GROUP BY week_start
			 ORDER BY week_start ASC`,
			start, end, userID, exerciseFilter)
		if err != nil {
			return nil, fmt.Errorf("querying weekly intensity: %w", err)
		}
		defer weekRows.Close()

		for weekRows.Next() {
			var w WeeklyIntensity
			var d time.Time
			if err := weekRows.Scan(&d, &w.Sets, &w.AvgIntensity, &w.BestTrainer); err != nil {
				return nil, fmt.Errorf("scanning weekly intensity: %w", err)
			}
			w.WeekStart = d.Format("2006-01-02")
			result.Weekly = append(result.Weekly, w)
		}
		if err := weekRows.Err(); err != nil {
			return nil, err
		}
	}

	return result, nil
}
