package service

import (
	"sort"
	"strings"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

// Score weights. Only the resulting order and the surname/first-name
// tie-break are contractual; the constants are tuning knobs.
const (
	scoreBaseAvailable     = 100
	scoreBaseCrossPosition = 60
	scoreBaseOtherSite     = 40
	scoreBaseUnavailable   = 0

	scoreReasonBonus    = 5
	scoreWarningPenalty = 10
)

// RankCandidates orders the records by descending score, breaking ties by
// ascending surname then first name so repeated runs over the same input are
// byte-for-byte reproducible. The input slice is not mutated.
func RankCandidates(records []models.CandidateRecord) []models.CandidateRecord {
	ranked := make([]models.CandidateRecord, len(records))
	copy(ranked, records)

	for i := range ranked {
		ranked[i].Score = scoreFor(ranked[i])
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		li := strings.ToLower(ranked[i].Employee.LastName)
		lj := strings.ToLower(ranked[j].Employee.LastName)
		if li != lj {
			return li < lj
		}
		return strings.ToLower(ranked[i].Employee.FirstName) < strings.ToLower(ranked[j].Employee.FirstName)
	})

	return ranked
}

func scoreFor(record models.CandidateRecord) int {
	score := tierBase(record.Tier)
	for _, reason := range record.Reasons {
		// A blocking tag names the cause of unavailability; it earns nothing.
		if reason.Blocking() {
			continue
		}
		score += scoreReasonBonus
	}
	score -= scoreWarningPenalty * len(record.Warnings)
	return score
}

func tierBase(tier models.Tier) int {
	switch tier {
	case models.TierAvailable:
		return scoreBaseAvailable
	case models.TierCrossPosition:
		return scoreBaseCrossPosition
	case models.TierOtherSite:
		return scoreBaseOtherSite
	default:
		return scoreBaseUnavailable
	}
}
