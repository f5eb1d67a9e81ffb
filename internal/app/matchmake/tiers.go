package matchmake

import (
	"time"

	"github.com/bkohler93/match-engine/internal/shared/config"
	"github.com/bkohler93/match-engine/internal/shared/queue"
)

type TierName string

const (
	TierExact           TierName = "exact"
	TierCategoryRelaxed TierName = "category"
	TierDifficultyRelax TierName = "difficulty"
)

// Tier is one relaxation level. Both sides of a pairing must have waited at least MinWait.
type Tier struct {
	Name    TierName
	MinWait time.Duration
	Match   func(u, v queue.MatchRequest) bool
}

func (t Tier) eligible(r queue.MatchRequest, now time.Time) bool {
	return r.Age(now) >= t.MinWait
}

// Accepts reports whether u and v may be paired under this tier at now.
func (t Tier) Accepts(u, v queue.MatchRequest, now time.Time) bool {
	return u.UserID != v.UserID && t.eligible(u, now) && t.eligible(v, now) && t.Match(u, v)
}

func sameCategory(u, v queue.MatchRequest) bool {
	return u.Category == v.Category
}

func sameDifficulty(u, v queue.MatchRequest) bool {
	return u.Difficulty == v.Difficulty
}

// Tiers returns the relaxation ladder in the order it is tried.
func Tiers(p config.Policy) []Tier {
	return []Tier{
		{
			Name:  TierExact,
			Match: func(u, v queue.MatchRequest) bool { return sameCategory(u, v) && sameDifficulty(u, v) },
		},
		{
			Name:    TierCategoryRelaxed,
			MinWait: p.CategoryRelaxAfter,
			Match:   sameCategory,
		},
		{
			Name:    TierDifficultyRelax,
			MinWait: p.DifficultyRelaxAfter,
			Match:   sameDifficulty,
		},
	}
}
