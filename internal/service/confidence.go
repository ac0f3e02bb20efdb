package service

import (
	"math"

	"github.com/noah-isme/journey-reconciler/internal/models"
	"github.com/noah-isme/journey-reconciler/internal/timeline"
)

// Penalty weights applied by ScoreSegment.
const (
	missingGradeWeight   = 0.30
	decodeFailurePenalty = 0.05
	decodeFailureCap     = 0.25
	ambiguityPenalty     = 0.05
	ambiguityCap         = 0.15
	singleTermPenalty    = 0.20
	twoTermPenalty       = 0.10
	prefixPenalty        = 0.03
	prefixCap            = 0.15

	// HighConfidence is the floor of the HIGH tier.
	HighConfidence = 0.8
	// DefaultConfidenceThreshold separates MEDIUM from LOW and drives NeedsReview.
	DefaultConfidenceThreshold = 0.6
)

// SegmentEvidence is the data-quality evidence behind one program period.
type SegmentEvidence struct {
	Terms            int
	Records          int
	MissingGrades    int
	DecodeFailures   int
	AmbiguousTerms   int
	PrefixMismatches int
	// ProgramConflicts are decoded records whose token names another program.
	// They share the decode-failure penalty and cap.
	ProgramConflicts int
}

// ScoreSegment turns evidence into a confidence in [0, 1] rounded to four decimals.
// More problems never raise the score.
func ScoreSegment(e SegmentEvidence) float64 {
	score := 1.0
	if e.Records > 0 {
		missing := math.Min(float64(e.MissingGrades), float64(e.Records))
		score -= missing / float64(e.Records) * missingGradeWeight
	}
	score -= capped(e.DecodeFailures+e.ProgramConflicts, decodeFailurePenalty, decodeFailureCap)
	score -= capped(e.AmbiguousTerms, ambiguityPenalty, ambiguityCap)
	switch {
	case e.Terms <= 1:
		score -= singleTermPenalty
	case e.Terms == 2:
		score -= twoTermPenalty
	}
	score -= capped(e.PrefixMismatches, prefixPenalty, prefixCap)
	return round4(clamp01(score))
}

// ScoreJourney is the term-weighted mean of segment scores.
func ScoreJourney(segments []models.JourneySegment) float64 {
	var weighted, terms float64
	for _, s := range segments {
		w := float64(s.TotalTerms)
		if w <= 0 {
			w = 1
		}
		weighted += s.ConfidenceScore * w
		terms += w
	}
	if terms == 0 {
		return 0
	}
	return round4(clamp01(weighted / terms))
}

// TierFor buckets a score against the review threshold.
func TierFor(score, threshold float64) models.ConfidenceTier {
	switch {
	case score >= HighConfidence:
		return models.ConfidenceHigh
	case score >= threshold:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// EvidenceFor sums the timeline counters over the terms a period spans.
func EvidenceFor(period models.ProgramPeriod, entries []timeline.TermEntry) SegmentEvidence {
	e := SegmentEvidence{Terms: period.TotalTerms}
	for _, entry := range entries {
		if entry.Ordinal < period.StartTermNumber || entry.Ordinal > period.EndTermNumber {
			continue
		}
		e.Records += entry.Records
		e.MissingGrades += entry.MissingGrades
		e.DecodeFailures += entry.DecodeFailures
		e.PrefixMismatches += entry.PrefixMismatches
		e.ProgramConflicts += entry.ProgramConflicts
		if period.ProgramType == models.ProgramTypeLanguage {
			if entry.AmbiguousLanguage {
				e.AmbiguousTerms++
			}
		} else if entry.AmbiguousMajor {
			e.AmbiguousTerms++
		}
	}
	return e
}

func capped(n int, each, limit float64) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(float64(n)*each, limit)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
