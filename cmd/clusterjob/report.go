package main

import (
	"sort"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
)

// sortedAssignments orders a snapshot's assignments from most to least polluted.
func sortedAssignments(snap *domain.ClusterSnapshot) []domain.ClusterAssignment {
	out := make([]domain.ClusterAssignment, 0, len(snap.Assignments))
	for _, a := range snap.Assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level > out[j].Level
		}
		return out[i].City < out[j].City
	})
	return out
}
