package main

import (
	"testing"

	"github.com/couchcryptid/aq-forecast-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSortedAssignments(t *testing.T) {
	snap := &domain.ClusterSnapshot{Assignments: map[string]domain.ClusterAssignment{
		"Kochi":   {City: "Kochi", Tier: domain.TierLow, Level: 20},
		"Delhi":   {City: "Delhi", Tier: domain.TierHigh, Level: 210},
		"Patna":   {City: "Patna", Tier: domain.TierHigh, Level: 210},
		"Chennai": {City: "Chennai", Tier: domain.TierMedium, Level: 60},
	}}

	var cities []string
	for _, a := range sortedAssignments(snap) {
		cities = append(cities, a.City)
	}
	assert.Equal(t, []string{"Delhi", "Patna", "Chennai", "Kochi"}, cities)
}
