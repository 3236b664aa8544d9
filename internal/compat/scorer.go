// Package compat implements the compatibility scorer: a pure, deterministic
// weighted function over two trader profiles. Same inputs always produce the
// same output, and percent is symmetric in its arguments.
//
// Ratio arithmetic (token Jaccard, final percent) uses shopspring/decimal so
// results are exact and identical across platforms — never float64.
package compat

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptomatch/match-engine/internal/model"
)

// Sub-score weights. They sum to 100, so percent equals the raw total.
const (
	MaxExperience = 20
	MaxPlatform   = 25
	MaxTokens     = 20
	MaxGoals      = 15
	MaxStyleRisk  = 10
	MaxCommHours  = 10
	MaxTotal      = MaxExperience + MaxPlatform + MaxTokens + MaxGoals + MaxStyleRisk + MaxCommHours
)

// Dimension is one row of the score breakdown.
type Dimension struct {
	Name   string `json:"name"`
	Score  int64  `json:"score"`
	Max    int64  `json:"max"`
	Reason string `json:"reason"`
}

// Result is the scorer output: overall percent, per-dimension breakdown, and
// up to three human-readable recommendations.
type Result struct {
	Percent         int64       `json:"percent"`
	Breakdown       []Dimension `json:"breakdown"`
	Recommendations []string    `json:"recommendations"`
}

var experienceLevel = map[string]int{
	model.ExperienceBeginner:     1,
	model.ExperienceIntermediate: 2,
	model.ExperienceAdvanced:     3,
	model.ExperienceExpert:       4,
}

var riskLevel = map[string]int{
	model.RiskConservative: 1,
	model.RiskModerate:     2,
	model.RiskAggressive:   3,
	model.RiskYOLO:         4,
}

// complementaryGoals holds the fixed complementary looking_for pairs.
// Lookup is symmetric: (x,y) matches if either order is listed.
var complementaryGoals = map[[2]string]bool{
	{"Learning", "Teaching"}:                 true,
	{"Teaching", "Learning"}:                 true,
	{"Alpha Sharing", "Alpha Sharing"}:       true,
	{"Research Partner", "Research Partner"}: true,
	{"Risk Management", "Teaching"}:          true,
	{"Networking", "Networking"}:             true,
}

// compatibleStyles holds the trading-style compatibility map, symmetric.
var compatibleStyles = map[[2]string]bool{
	{"Day Trader", "Scalper"}:              true,
	{"Swing Trader", "Long-term Investor"}: true,
	{"HODLer", "Long-term Investor"}:       true,
	{"Arbitrage", "Day Trader"}:            true,
	{"Arbitrage", "Scalper"}:               true,
}

// compatibleComm holds the communication-style compatibility map, symmetric.
var compatibleComm = map[[2]string]bool{
	{"Professional", "Technical"}: true,
	{"Casual", "Friendly"}:        true,
}

func symmetric(m map[[2]string]bool, a, b string) bool {
	return m[[2]string{a, b}] || m[[2]string{b, a}]
}

// Score computes the compatibility of two profiles. It reads only profile
// attributes and has no side effects.
func Score(a, b *model.Profile) Result {
	dims := []Dimension{
		scoreExperience(a, b),
		scorePlatform(a, b),
		scoreTokens(a, b),
		scoreGoals(a, b),
		scoreStyleRisk(a, b),
		scoreCommHours(a, b),
	}

	var total int64
	for _, d := range dims {
		total += d.Score
	}

	percent := decimal.NewFromInt(100 * total).
		Div(decimal.NewFromInt(MaxTotal)).
		Round(0).
		IntPart()

	return Result{
		Percent:         percent,
		Breakdown:       dims,
		Recommendations: recommendations(dims),
	}
}

func scoreExperience(a, b *model.Profile) Dimension {
	d := Dimension{Name: "experience", Max: MaxExperience}

	la, okA := experienceLevel[a.TradingExperience]
	lb, okB := experienceLevel[b.TradingExperience]
	if !okA || !okB {
		d.Reason = "experience level missing"
		return d
	}

	switch {
	case (la == 1 && lb >= 2) || (lb == 1 && la >= 2):
		d.Score = 18
		d.Reason = "mentoring pairing"
	case la == lb:
		d.Score = 20
		d.Reason = "same experience level"
	case abs(la-lb) == 1:
		d.Score = 15
		d.Reason = "adjacent experience levels"
	case abs(la-lb) == 2:
		d.Score = 10
		d.Reason = "two levels apart"
	default:
		d.Score = 5
		d.Reason = "distant experience levels"
	}

	if abs(a.YearsTrading-b.YearsTrading) <= 1 {
		d.Score += 2
		if d.Score > MaxExperience {
			d.Score = MaxExperience
		}
	}
	return d
}

func scorePlatform(a, b *model.Profile) Dimension {
	d := Dimension{Name: "platform", Max: MaxPlatform}

	switch {
	case a.TradingPlatform != "" && a.TradingPlatform == b.TradingPlatform:
		d.Score += 15
	case a.TradingPlatform != "" && b.TradingPlatform != "":
		d.Score += 5
	default:
		d.Score += 3
	}

	switch {
	case a.CommPlatform != "" && a.CommPlatform == b.CommPlatform:
		d.Score += 10
	case a.CommPlatform != "" && b.CommPlatform != "":
		d.Score += 3
	default:
		d.Score += 2
	}

	if a.TradingPlatform == b.TradingPlatform && a.CommPlatform == b.CommPlatform {
		d.Reason = "same platforms"
	} else {
		d.Reason = "different platforms"
	}
	return d
}

func scoreTokens(a, b *model.Profile) Dimension {
	d := Dimension{Name: "tokens", Max: MaxTokens}

	setA := toSet(a.PreferredTokens)
	setB := toSet(b.PreferredTokens)
	if len(setA) == 0 || len(setB) == 0 {
		d.Score = 5
		d.Reason = "token preferences missing"
		return d
	}

	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter

	if inter == 0 {
		// Diversity floor: disjoint interests still have exchange value.
		d.Score = 5
		d.Reason = "no shared tokens"
		return d
	}

	d.Score = decimal.NewFromInt(int64(MaxTokens * inter)).
		Div(decimal.NewFromInt(int64(union))).
		Floor().
		IntPart()
	d.Reason = fmt.Sprintf("%d shared token interests", inter)
	return d
}

func scoreGoals(a, b *model.Profile) Dimension {
	d := Dimension{Name: "goals", Max: MaxGoals}

	complementary := 0
	for _, x := range dedupe(a.LookingFor) {
		for _, y := range dedupe(b.LookingFor) {
			if symmetric(complementaryGoals, x, y) {
				complementary++
			}
		}
	}

	switch {
	case complementary > 0:
		d.Score = int64(8 * complementary)
		d.Reason = "complementary goals"
	default:
		shared := 0
		setB := toSet(b.LookingFor)
		for _, x := range dedupe(a.LookingFor) {
			if setB[x] {
				shared++
			}
		}
		if shared > 0 {
			d.Score = int64(3 * shared)
			d.Reason = "shared goals"
		} else {
			d.Score = 2
			d.Reason = "no goal overlap"
		}
	}

	if d.Score > MaxGoals {
		d.Score = MaxGoals
	}
	return d
}

func scoreStyleRisk(a, b *model.Profile) Dimension {
	d := Dimension{Name: "style_risk", Max: MaxStyleRisk}

	switch {
	case a.TradingStyle != "" && a.TradingStyle == b.TradingStyle:
		d.Score += 6
		d.Reason = "same trading style"
	case symmetric(compatibleStyles, a.TradingStyle, b.TradingStyle):
		d.Score += 4
		d.Reason = "compatible trading styles"
	default:
		d.Score += 2
		d.Reason = "different trading styles"
	}

	ra, okA := riskLevel[a.RiskTolerance]
	rb, okB := riskLevel[b.RiskTolerance]
	switch {
	case okA && okB && ra == rb:
		d.Score += 4
	case okA && okB && abs(ra-rb) == 1:
		d.Score += 3
	default:
		d.Score += 1
	}
	return d
}

func scoreCommHours(a, b *model.Profile) Dimension {
	d := Dimension{Name: "comm_hours", Max: MaxCommHours}

	switch {
	case a.CommStyle != "" && a.CommStyle == b.CommStyle:
		d.Score += 6
		d.Reason = "same communication style"
	case symmetric(compatibleComm, a.CommStyle, b.CommStyle):
		d.Score += 4
		d.Reason = "compatible communication styles"
	default:
		d.Score += 2
		d.Reason = "different communication styles"
	}

	switch {
	case a.TradingHours != "" && a.TradingHours == b.TradingHours:
		d.Score += 4
	case a.TradingHours == "24/7" || b.TradingHours == "24/7":
		d.Score += 3
	default:
		d.Score += 2
	}
	return d
}

// recommendations derives up to three hints from the breakdown. The rules
// run in a fixed order so output is deterministic.
func recommendations(dims []Dimension) []string {
	byName := make(map[string]Dimension, len(dims))
	for _, d := range dims {
		byName[d.Name] = d
	}

	var recs []string
	if d := byName["experience"]; d.Reason == "mentoring pairing" {
		recs = append(recs, "Great mentoring candidate: one of you can learn a lot here")
	} else if d.Score >= 18 {
		recs = append(recs, "You trade at the same level — easy to talk shop")
	}
	if byName["tokens"].Score >= 13 {
		recs = append(recs, "Strong overlap in token interests")
	}
	if byName["goals"].Score >= 8 {
		recs = append(recs, "Your goals complement each other")
	}
	if byName["platform"].Score >= 20 {
		recs = append(recs, "You already use the same platforms")
	}

	if len(recs) > 3 {
		recs = recs[:3]
	}
	return recs
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t != "" {
			set[t] = true
		}
	}
	return set
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
