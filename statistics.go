package defects

import (
	"context"
	"math"
)

// DefectStatistics is the payload of the defects statistics report
type DefectStatistics struct {
	Total          int     `json:"total"`
	New            int     `json:"new"`
	InProgress     int     `json:"in_progress"`
	Closed         int     `json:"closed"`
	CompletionRate float64 `json:"completion_rate"`
}

// NewDefectStatistics builds the report from per status counts.
// The completion rate is closed/total as a percentage with two decimals.
func NewDefectStatistics(counts map[DefectStatus]int) DefectStatistics {
	stats := DefectStatistics{
		New:        counts[StatusNew],
		InProgress: counts[StatusInProgress],
		Closed:     counts[StatusClosed],
	}

	for _, n := range counts {
		stats.Total += n
	}

	if stats.Total > 0 {
		rate := float64(stats.Closed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}

	return stats
}

// DefectStatisticsFor counts defects matching filter
func DefectStatisticsFor(ctx context.Context, defects Defects, filter DefectFilter) (DefectStatistics, error) {
	counts, err := defects.CountByStatus(ctx, filter)
	if err != nil {
		return DefectStatistics{}, err
	}
	return NewDefectStatistics(counts), nil
}
