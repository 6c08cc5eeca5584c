package model

import (
	"fmt"
	"time"
)

// Section is a named report tab with its own fetch and cache lifecycle
type Section string

const (
	SectionExecutiveSummary Section = "executive-summary"
	SectionMarketAnalysis   Section = "market-analysis"
	SectionRiskFactors      Section = "risk-factors"
)

// Sections lists every narrative section in display order
var Sections = []Section{
	SectionExecutiveSummary,
	SectionMarketAnalysis,
	SectionRiskFactors,
}

// ParseSection validates a section name
func ParseSection(name string) (Section, error) {
	for _, s := range Sections {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown section: %q", name)
}

// CacheName is the short name used to build cache keys (e.g. "market")
func (s Section) CacheName() string {
	switch s {
	case SectionExecutiveSummary:
		return "executive"
	case SectionMarketAnalysis:
		return "market"
	case SectionRiskFactors:
		return "risk"
	default:
		return string(s)
	}
}

// Narrative is the AI-generated text payload of a section
// Summary embeds ###-delimited blocks
type Narrative struct {
	Message string `json:"message"`
	Summary string `json:"summary"`
}

// Block is one titled part of a narrative summary
type Block struct {
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Paragraphs []string `json:"paragraphs"`
	HTML       string   `json:"html,omitempty"`
}

// FactCheckSummary is the single representative indicator for a multi-claim result
type FactCheckSummary struct {
	Average    float64    `json:"average"`
	Confidence Confidence `json:"confidence"`
	Label      string     `json:"label"`
	Marker     string     `json:"marker"`
	Claims     int        `json:"claims"`
}

// Summarize builds the representative indicator for result
func Summarize(result FactCheckResult) FactCheckSummary {
	avg := result.AverageScore()
	tier := ClassifyScore(avg)
	return FactCheckSummary{
		Average:    avg,
		Confidence: tier,
		Label:      tier.Label(),
		Marker:     tier.Marker(),
		Claims:     len(result.Claims),
	}
}

// Report is the metadata of an uploaded source PDF
type Report struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	UploadedAt time.Time `json:"uploaded_at"`
}
