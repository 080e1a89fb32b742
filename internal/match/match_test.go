package match

import (
	"testing"

	"github.com/hypeauction/market-engine/pkg/models"
)

func TestEvaluatePerfectExactMatch(t *testing.T) {
	sig := "stars10:10|sharpness:7"
	got := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{}, sig, nil)
	if got != models.MatchPerfect {
		t.Errorf("got %s, want PERFECT", got)
	}
}

func TestEvaluatePartialOnStarDiffOne(t *testing.T) {
	sig := "stars10:9|sharpness:7"
	got := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{}, sig, nil)
	if got != models.MatchPartial {
		t.Errorf("got %s, want PARTIAL", got)
	}
}

func TestEvaluateNoneOnStarDiffTwo(t *testing.T) {
	sig := "stars10:8|sharpness:7"
	got := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{}, sig, nil)
	if got != models.MatchNone {
		t.Errorf("got %s, want NONE", got)
	}
}

func TestEvaluateNoneOnMissingEnchant(t *testing.T) {
	sig := "stars10:10"
	got := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{}, sig, nil)
	if got != models.MatchNone {
		t.Errorf("got %s, want NONE", got)
	}
}

func TestEvaluateEmptySignatureNoRequirement(t *testing.T) {
	got := Evaluate(0, nil, models.FilterBundle{}, "", nil)
	if got != models.MatchPerfect {
		t.Errorf("got %s, want PERFECT", got)
	}
}

func TestEvaluateEmptySignatureWithRequirement(t *testing.T) {
	got := Evaluate(5, nil, models.FilterBundle{}, "", nil)
	if got != models.MatchNone {
		t.Errorf("got %s, want NONE", got)
	}
}

func TestEvaluateMonotoneInFilterStrictness(t *testing.T) {
	sig := "tier:legendary|stars10:10|sharpness:7"
	base := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{}, sig, nil)

	stricter := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{Tier: "legendary"}, sig, nil)

	rank := map[models.MatchQuality]int{models.MatchNone: 0, models.MatchPartial: 1, models.MatchPerfect: 2}
	if rank[stricter] > rank[base] {
		t.Errorf("adding a matching filter must not improve match quality: base=%s stricter=%s", base, stricter)
	}

	evenStricter := Evaluate(10, []models.EnchantRequest{{Name: "sharpness", Level: 7}}, models.FilterBundle{Tier: "mythic"}, sig, nil)
	if evenStricter != models.MatchNone {
		t.Errorf("mismatched tier filter must reject, got %s", evenStricter)
	}
}
