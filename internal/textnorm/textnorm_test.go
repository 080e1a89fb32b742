package textnorm

import "testing"

func TestCanonicalItemKey(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"starred legendary", "✪✪✪✪✪ Necron's Blade", "necrons blade"},
		{"pet level prefix", "[Lvl 100] Ender Dragon", "ender dragon"},
		{"single reforge", "Sharp Hyperion", "hyperion"},
		{"two reforges both stripped", "Heroic Fine Aspect of the End", "aspect of the end"},
		{"weird digits", "①②③ Test Sword", "123 test sword"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CanonicalItemKey(c.in)
			if got != c.want {
				t.Errorf("CanonicalItemKey(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestCanonicalItemKeyIdempotent(t *testing.T) {
	inputs := []string{"✪✪✪✪✪ Necron's Blade", "[Lvl 100] Ender Dragon", "Hyperion"}
	for _, in := range inputs {
		once := CanonicalItemKey(in)
		twice := CanonicalItemKey(once)
		if once != twice {
			t.Errorf("CanonicalItemKey not idempotent: once=%q twice=%q", once, twice)
		}
	}
}

func TestNormalizeWeirdDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"①②③", "123"},
		{"０１２", "012"},
		{"⓪", "0"},
	}
	for _, c := range cases {
		if got := NormalizeWeirdDigits(c.in); got != c.want {
			t.Errorf("NormalizeWeirdDigits(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormKey(t *testing.T) {
	if got := NormKey("Tier-Boost_Item's"); got != "tier boost items" {
		t.Errorf("NormKey = %q", got)
	}
}

func TestPetLevelPrefix(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		wantDig string
		wantOK  bool
	}{
		{"bracketed", "[Lvl 100] Ender Dragon", "100", true},
		{"unbracketed", "Lvl 100 Ender Dragon", "100", true},
		{"no prefix", "Ender Dragon", "", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := PetLevelPrefix(c.in)
			if ok != c.wantOK || got != c.wantDig {
				t.Errorf("PetLevelPrefix(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.wantDig, c.wantOK)
			}
		})
	}
}
