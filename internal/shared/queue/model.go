package queue

import (
	"fmt"
	"strings"
	"time"
)

type Difficulty string

const (
	Easy   Difficulty = "EASY"
	Medium Difficulty = "MEDIUM"
	Hard   Difficulty = "HARD"
)

// ParseDifficulty accepts any casing of the three known difficulties.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, s)
}

// MatchRequest is one waiting user. CreatedAt is stored with millisecond precision.
type MatchRequest struct {
	UserID             string     `json:"userId" dynamodbav:"userId"`
	Username           string     `json:"username" dynamodbav:"username"`
	Category           string     `json:"category" dynamodbav:"category"`
	Difficulty         Difficulty `json:"difficulty" dynamodbav:"difficulty"`
	CreatedAt          int64      `json:"createdAt" dynamodbav:"createdAt"`
	IsMatched          bool       `json:"isMatched" dynamodbav:"isMatched"`
	PartnerID          string     `json:"partnerId,omitempty" dynamodbav:"partnerId,omitempty"`
	PartnerUsername    string     `json:"partnerUsername,omitempty" dynamodbav:"partnerUsername,omitempty"`
	CategoryAssigned   string     `json:"categoryAssigned,omitempty" dynamodbav:"categoryAssigned,omitempty"`
	DifficultyAssigned Difficulty `json:"difficultyAssigned,omitempty" dynamodbav:"difficultyAssigned,omitempty"`
	MatchID            string     `json:"matchId,omitempty" dynamodbav:"matchId,omitempty"`
	MatchedAt          int64      `json:"matchedAt,omitempty" dynamodbav:"matchedAt,omitempty"`
}

func (r MatchRequest) Created() time.Time {
	return time.UnixMilli(r.CreatedAt)
}

// Age is how long the request has been waiting at now.
func (r MatchRequest) Age(now time.Time) time.Duration {
	return now.Sub(r.Created())
}

// Waiting returns a copy with every match field cleared.
func (r MatchRequest) Waiting() MatchRequest {
	r.IsMatched = false
	r.PartnerID = ""
	r.PartnerUsername = ""
	r.CategoryAssigned = ""
	r.DifficultyAssigned = ""
	r.MatchID = ""
	r.MatchedAt = 0
	return r
}

// CreatedBefore orders by createdAt, then userId so that ties are deterministic.
func (r MatchRequest) CreatedBefore(other MatchRequest) bool {
	if r.CreatedAt != other.CreatedAt {
		return r.CreatedAt < other.CreatedAt
	}
	return r.UserID < other.UserID
}

var SortedByCreatedAtFunc = func(a, b MatchRequest) int {
	if a.CreatedBefore(b) {
		return -1
	}
	if b.CreatedBefore(a) {
		return 1
	}
	return 0
}

// PairPatch is what gets written onto one side of a pairing.
type PairPatch struct {
	UserID             string
	ExpectedCreatedAt  int64
	PartnerID          string
	PartnerUsername    string
	CategoryAssigned   string
	DifficultyAssigned Difficulty
}

type PairUpdate struct {
	MatchID   string
	MatchedAt int64
	A         PairPatch
	B         PairPatch
}

// NewPairUpdate cross references a and b. The assigned parameters come from whichever
// request was created first.
func NewPairUpdate(matchID string, matchedAt time.Time, a, b MatchRequest) PairUpdate {
	first := a
	if b.CreatedBefore(a) {
		first = b
	}
	return PairUpdate{
		MatchID:   matchID,
		MatchedAt: matchedAt.UnixMilli(),
		A: PairPatch{
			UserID:             a.UserID,
			ExpectedCreatedAt:  a.CreatedAt,
			PartnerID:          b.UserID,
			PartnerUsername:    b.Username,
			CategoryAssigned:   first.Category,
			DifficultyAssigned: first.Difficulty,
		},
		B: PairPatch{
			UserID:             b.UserID,
			ExpectedCreatedAt:  b.CreatedAt,
			PartnerID:          a.UserID,
			PartnerUsername:    a.Username,
			CategoryAssigned:   first.Category,
			DifficultyAssigned: first.Difficulty,
		},
	}
}

func (p PairPatch) apply(r MatchRequest, matchID string, matchedAt int64) MatchRequest {
	r.IsMatched = true
	r.PartnerID = p.PartnerID
	r.PartnerUsername = p.PartnerUsername
	r.CategoryAssigned = p.CategoryAssigned
	r.DifficultyAssigned = p.DifficultyAssigned
	r.MatchID = matchID
	r.MatchedAt = matchedAt
	return r
}
