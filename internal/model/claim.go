package model

import "math"

// FactCheckClaim is one atomic statement verified against the source document
type FactCheckClaim struct {
	Claim    string  `json:"claim"`    // The statement being verified
	Score    float64 `json:"score"`    // Support confidence, nominally in [0, 1]
	Status   string  `json:"status"`   // Label from the analysis service, passed through untouched
	Evidence string  `json:"evidence"` // Supporting text from the source document
	Page     int     `json:"page"`     // 1-based page where the evidence was found
}

// Confidence returns the confidence tier of the claim's score
func (c FactCheckClaim) Confidence() Confidence {
	return ClassifyScore(c.Score)
}

// FactCheckResult is the ordered set of claims produced for one input statement
type FactCheckResult struct {
	Claims []FactCheckClaim `json:"fact_check"`
}

// AverageScore returns the mean claim score, or 0 for an empty result
func (r FactCheckResult) AverageScore() float64 {
	if len(r.Claims) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range r.Claims {
		sum += c.Score
	}
	return sum / float64(len(r.Claims))
}

// ClampScore bounds a score to [0, 1]. NaN maps to 0.
func ClampScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
