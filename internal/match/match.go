// Package match implements the three-state matcher: comparing a user's
// query against a stored signature string to decide whether a candidate
// contributes to the PERFECT, PARTIAL, or NONE price pool.
package match

import (
	"strconv"
	"strings"

	"github.com/hypeauction/market-engine/pkg/models"
)

// tierBucket ranks enchantment rarity tiers; MISC (absent from the table)
// is treated as -1 per the glossary.
var tierBucket = map[string]int{
	"BB": 0, "B": 1, "A": 2, "AA": 3, "AAA": 4,
}

// EnchantTierLookup resolves the rarity bucket for a (name, level) pair.
// Populated at startup from a static table; read-only thereafter.
type EnchantTierLookup interface {
	Bucket(name string, level int) int // returns tierBucket value, or -1 for MISC/unknown
}

// staticTierLookup is the default read-only table-backed lookup.
type staticTierLookup struct {
	table map[string]int // enchant name -> bucket, independent of level for this engine's purposes
}

func (s *staticTierLookup) Bucket(name string, _ int) int {
	if b, ok := s.table[name]; ok {
		return b
	}
	return -1
}

// DefaultTierLookup is seeded with a representative set of high-value
// enchantments; entries absent from the table fall back to MISC (-1).
var DefaultTierLookup EnchantTierLookup = &staticTierLookup{table: map[string]int{
	"wise": tierBucket["AAA"], "telekinesis": tierBucket["AAA"],
	"sharpness": tierBucket["A"], "giant_killer": tierBucket["A"],
	"first_strike": tierBucket["AA"], "life_steal": tierBucket["AA"],
	"growth": tierBucket["B"], "protection": tierBucket["B"],
	"efficiency": tierBucket["BB"], "fortune": tierBucket["BB"],
}}

// parsedSignature is the decomposed form of a candidate's signature string.
type parsedSignature struct {
	tokens   map[string]string
	stars10  int
	enchants map[string]int
}

func parseSignature(sig string) parsedSignature {
	ps := parsedSignature{tokens: map[string]string{}, enchants: map[string]int{}}
	if sig == "" {
		return ps
	}
	for _, tok := range strings.Split(sig, "|") {
		parts := strings.SplitN(tok, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key, val := parts[0], parts[1]
		switch key {
		case "tier", "dstars", "mstars", "stars10", "wither_impact", "pet_level", "dye", "skin", "petskin", "pet_item":
			ps.tokens[key] = val
			if key == "stars10" {
				if n, err := strconv.Atoi(val); err == nil {
					ps.stars10 = n
				}
			}
		default:
			if n, err := strconv.Atoi(val); err == nil {
				ps.enchants[key] = n
			}
		}
	}
	return ps
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Details carries the numeric diffs behind a match verdict, used by the
// recommender to score candidates for ranking.
type Details struct {
	Quality        models.MatchQuality
	StarsDiff      int
	EnchantDiffSum int
	Stars10        int
	Enchants       map[string]int
}

// Evaluate runs the matching algorithm against a stored signature string,
// returning PERFECT, PARTIAL, or NONE.
func Evaluate(requestedStars10 int, requestedEnchants []models.EnchantRequest, filters models.FilterBundle, signature string, lookup EnchantTierLookup) models.MatchQuality {
	return EvaluateDetailed(requestedStars10, requestedEnchants, filters, signature, lookup).Quality
}

// EvaluateDetailed is Evaluate plus the diff values the recommender needs
// for scoring.
func EvaluateDetailed(requestedStars10 int, requestedEnchants []models.EnchantRequest, filters models.FilterBundle, signature string, lookup EnchantTierLookup) Details {
	if lookup == nil {
		lookup = DefaultTierLookup
	}

	hasAnyRequirement := requestedStars10 > 0 || len(requestedEnchants) > 0 || hasAnyFilter(filters)

	if signature == "" {
		if !hasAnyRequirement {
			return Details{Quality: models.MatchPerfect}
		}
		return Details{Quality: models.MatchNone}
	}

	ps := parseSignature(signature)
	none := Details{Quality: models.MatchNone, Stars10: ps.stars10, Enchants: ps.enchants}

	if !filterMatches(filters.Tier, "none", ps.tokens["tier"]) {
		return none
	}
	if filters.WitherImpactSet {
		want := "0"
		if filters.WitherImpact {
			want = "1"
		}
		got := ps.tokens["wither_impact"]
		if got == "" {
			got = "0"
		}
		if got != want {
			return none
		}
	}
	if !filterMatches(filters.Dye, "none", ps.tokens["dye"]) {
		return none
	}
	if !filterMatches(filters.Skin, "none", ps.tokens["skin"]) {
		return none
	}
	if !filterMatches(filters.PetSkin, "none", ps.tokens["petskin"]) {
		return none
	}
	if !filterMatches(filters.PetItem, "none", ps.tokens["pet_item"]) {
		return none
	}
	if filters.MinPetLevel > 0 {
		candLevel := 0
		if v, err := strconv.Atoi(ps.tokens["pet_level"]); err == nil {
			candLevel = v
		}
		if candLevel < filters.MinPetLevel {
			return none
		}
	}

	partial := false
	starsDiff := 0
	enchantDiffSum := 0

	if requestedStars10 > 0 {
		starsDiff = absInt(ps.stars10 - requestedStars10)
		switch {
		case starsDiff == 0:
		case starsDiff == 1:
			partial = true
		default:
			return none
		}
	}

	for _, req := range requestedEnchants {
		candLevel, ok := ps.enchants[req.Name]
		if !ok {
			candLevel = 0
		}
		if candLevel == 0 {
			return none
		}
		levelDiff := absInt(candLevel - req.Level)
		tierDiff := absInt(lookup.Bucket(req.Name, candLevel) - lookup.Bucket(req.Name, req.Level))
		diff := levelDiff
		if tierDiff > diff {
			diff = tierDiff
		}
		enchantDiffSum += diff
		switch {
		case diff == 0:
		case diff == 1:
			partial = true
		default:
			return none
		}
	}

	quality := models.MatchPerfect
	if partial {
		quality = models.MatchPartial
	}
	return Details{
		Quality:        quality,
		StarsDiff:      starsDiff,
		EnchantDiffSum: enchantDiffSum,
		Stars10:        ps.stars10,
		Enchants:       ps.enchants,
	}
}

func hasAnyFilter(f models.FilterBundle) bool {
	return f.Tier != "" || f.WitherImpactSet || f.Dye != "" || f.Skin != "" ||
		f.PetSkin != "" || f.MinPetLevel > 0 || f.PetItem != ""
}

// filterMatches returns true when the requested value is empty/"none", or
// equals the candidate's token value exactly.
func filterMatches(requested, noneValue, candidate string) bool {
	if requested == "" || requested == noneValue {
		return true
	}
	return requested == candidate
}
