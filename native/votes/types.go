// Package votes validates payment-gated votes and free-standing endorsements
// and turns accepted submissions into trust graph edges.
package votes

import "time"

// Polarity is the coarse direction of a payment-gated vote.
type Polarity string

const (
	PolarityUp   Polarity = "up"
	PolarityDown Polarity = "down"
)

// QualityScores are the four quality axes carried by a Vote, each in [0,100].
type QualityScores struct {
	ResponseQuality float64
	ResponseSpeed   float64
	Accuracy        float64
	Professionalism float64
}

// Mean returns the unweighted mean of the four axes.
func (q QualityScores) Mean() float64 {
	return (q.ResponseQuality + q.ResponseSpeed + q.Accuracy + q.Professionalism) / 4
}

// InRange reports whether every axis lies within [0, 100].
func (q QualityScores) InRange() bool {
	for _, v := range []float64{q.ResponseQuality, q.ResponseSpeed, q.Accuracy, q.Professionalism} {
		if v < 0 || v > 100 {
			return false
		}
	}
	return true
}

// Vote is a payment-gated rating from one agent to another, backed by
// exactly one Receipt.
type Vote struct {
	ReceiptID   [32]byte
	Voter       string
	Subject     string
	Polarity    Polarity
	Quality     QualityScores
	CommentHash string
	Weight      float64
	Timestamp   time.Time
}

// Endorsement is a free attestation from one agent to another, carrying no
// receipt.
type Endorsement struct {
	ID        string
	Type      string
	Claim     string
	Confidence float64
	Issuer    string
	Subject   string
	Active    bool
	Evidence  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the endorsement has passed its optional expiry at
// the given instant. An endorsement with a zero ExpiresAt never expires.
func (e *Endorsement) Expired(at time.Time) bool {
	if e == nil || e.ExpiresAt.IsZero() {
		return false
	}
	return !at.Before(e.ExpiresAt)
}

const qualityCategoryThreshold = 75

// QualityCategories returns the category tags earned by axes scoring above
// the quality-category threshold.
func QualityCategories(q QualityScores) []string {
	var cats []string
	if q.ResponseQuality > qualityCategoryThreshold {
		cats = append(cats, "response_quality")
	}
	if q.ResponseSpeed > qualityCategoryThreshold {
		cats = append(cats, "response_speed")
	}
	if q.Accuracy > qualityCategoryThreshold {
		cats = append(cats, "accuracy")
	}
	if q.Professionalism > qualityCategoryThreshold {
		cats = append(cats, "professionalism")
	}
	return cats
}

// VoteEdgeWeight derives a TrustEdge weight from a vote's polarity and
// quality axes: 0.6 of the polarity weight plus 0.4 of the mean quality.
func VoteEdgeWeight(polarity Polarity, quality QualityScores) float64 {
	polarityWeight := 0.0
	if polarity == PolarityUp {
		polarityWeight = 100
	}
	return 0.6*polarityWeight + 0.4*quality.Mean()
}
