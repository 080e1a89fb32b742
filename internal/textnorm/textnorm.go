// Package textnorm implements the four text-derivation families used
// throughout signature building and canonical item keying: clean_text,
// norm_key, normalize_weird_digits, and canonical_item_key.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// StarGlyphs is the set of star/circle characters treated as "star-like"
// both by canonicalization (which strips them) and by the signature
// builder's text-based star count fallback.
var StarGlyphs = map[rune]bool{
	'✪': true, '★': true, '☆': true, '✯': true, '✰': true,
	'●': true, '⬤': true, '○': true, '◉': true, '◎': true, '◍': true,
}

var colorCodeRE = regexp.MustCompile(`§.`)

// weirdDigits maps code points from circled, fullwidth, dingbat-circled,
// negative-circled, superscript, and subscript digit blocks to their ASCII
// digit value.
var weirdDigits = buildWeirdDigitTable()

func buildWeirdDigitTable() map[rune]byte {
	t := make(map[rune]byte)
	// ⓪①…⑨ -> 0-9
	t['⓪'] = '0'
	for i, r := 0, rune('①'); i < 9; i, r = i+1, r+1 {
		t[r] = byte('1' + i)
	}
	// fullwidth ０…９ -> 0-9
	for i, r := 0, rune('０'); i < 10; i, r = i+1, r+1 {
		t[r] = byte('0' + i)
	}
	// dingbat negative circled sans-serif ➊…➓ -> 1-10 (➓ maps to 0 below)
	dingbat := []rune("➊➋➌➍➎➏➐➑➒➓")
	for i, r := range dingbat {
		if i == 9 {
			t[r] = '0' // 10 collapses to trailing 0 digit per table note
		} else {
			t[r] = byte('1' + i)
		}
	}
	// dingbat negative circled serif ❶…❿ -> 1-10
	dingbat2 := []rune("❶❷❸❹❺❻❼❽❾❿")
	for i, r := range dingbat2 {
		if i == 9 {
			t[r] = '0'
		} else {
			t[r] = byte('1' + i)
		}
	}
	// circled sans-serif ⓵…⓾ -> 1-10
	circled := []rune("⓵⓶⓷⓸⓹⓺⓻⓼⓽⓾")
	for i, r := range circled {
		if i == 9 {
			t[r] = '0'
		} else {
			t[r] = byte('1' + i)
		}
	}
	// superscript ⁰…⁹ -> 0-9 (note: not contiguous in Unicode)
	superscript := []rune{'⁰', '¹', '²', '³', '⁴', '⁵', '⁶', '⁷', '⁸', '⁹'}
	for i, r := range superscript {
		t[r] = byte('0' + i)
	}
	// subscript ₀…₉ -> 0-9
	for i, r := 0, rune('₀'); i < 10; i, r = i+1, r+1 {
		t[r] = byte('0' + i)
	}
	return t
}

// NormalizeWeirdDigits rewrites any circled/fullwidth/dingbat/superscript/
// subscript digit code point in s to its plain ASCII digit.
func NormalizeWeirdDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if d, ok := weirdDigits[r]; ok {
			b.WriteByte(d)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CleanText strips legacy color codes, applies compatibility (NFKC-style)
// normalization, straightens curly apostrophes, drops anything that is not
// a letter/digit/space/apostrophe, and collapses whitespace runs.
func CleanText(s string) string {
	s = colorCodeRE.ReplaceAllString(s, "")
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.ReplaceAll(s, "‘", "'")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '\'' {
			b.WriteRune(r)
		}
	}
	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// NormKey maps hyphens and underscores to spaces, then lowercases
// CleanText of the result, removes apostrophes, and collapses whitespace.
// The mapping runs before CleanText, which would otherwise drop both
// characters and join the words around them.
func NormKey(s string) string {
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	s = CleanText(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "'", "")
	return collapseSpace(s)
}

var (
	parenRE       = regexp.MustCompile(`\([^)]*\)`)
	bracketRE     = regexp.MustCompile(`\[[^\]]*\]`)
	letterDigitRE = regexp.MustCompile(`([A-Za-z])(\d)|(\d)([A-Za-z])`)
)

// reforges is the fixed vocabulary of ~80 leading words stripped from an
// item name as identity-preserving stat modifiers during canonicalization.
var reforges = map[string]bool{
	"ancient": true, "average": true, "bizarre": true, "bountiful": true,
	"bulky": true, "candied": true, "chomp": true, "clean": true,
	"cubic": true, "deadly": true, "demonic": true, "double-bit": true,
	"dirty": true, "epic": true, "fabled": true, "fair": true,
	"fast": true, "fierce": true, "fine": true, "forceful": true,
	"fortunate": true, "fruitful": true, "gentle": true, "giant": true,
	"glistening": true, "gilded": true, "godly": true, "great": true,
	"greater spook": true, "grand": true, "hasty": true, "heavy": true,
	"heroic": true, "hurtful": true, "itchy": true, "jaded": true,
	"keen": true, "knotted": true, "lazy": true, "legendary": true,
	"light": true, "lucky": true, "lustrous": true, "magnetic": true,
	"mithraic": true, "moil": true, "necrotic": true, "odd": true,
	"ominous": true, "pleasant": true, "precise": true, "pretty": true,
	"pure": true, "rapid": true, "rich": true, "refined": true,
	"reinforced": true, "ridiculous": true, "robust": true, "rooted": true,
	"rugged": true, "sharp": true, "shaded": true, "silky": true,
	"simple": true, "smart": true, "spicy": true, "spiked": true,
	"spiritual": true, "stained": true, "stellar": true, "strengthened": true,
	"strong": true, "submerged": true, "suspicious": true, "superior": true,
	"sweet": true, "titanic": true, "toil": true, "unpleasant": true,
	"unreal": true, "vivid": true, "warped": true, "withered": true,
	"zealous": true,
}

// CanonicalItemKey reduces an item's display name to a stable identity key:
// digits normalized, color codes and star glyphs stripped, parenthetical
// and bracketed runs dropped, letter/digit boundaries split, a leading
// pet-level prefix dropped, and up to two leading reforge tokens stripped.
func CanonicalItemKey(name string) string {
	s := NormalizeWeirdDigits(name)
	s = colorCodeRE.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if StarGlyphs[r] {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	s = parenRE.ReplaceAllString(s, " ")
	s = bracketRE.ReplaceAllString(s, " ")
	s = letterDigitRE.ReplaceAllString(s, "$1$3 $2$4")

	tokens := strings.Fields(NormKey(s))

	if len(tokens) >= 2 && isLevelWord(tokens[0]) && isDigits(tokens[1]) {
		tokens = tokens[2:]
	}

	for i := 0; i < 2 && len(tokens) > 0; i++ {
		if reforges[tokens[0]] {
			tokens = tokens[1:]
			continue
		}
		break
	}

	return strings.Join(tokens, " ")
}

func isLevelWord(s string) bool {
	switch s {
	case "lvl", "lv", "level":
		return true
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// bracketTrim strips leading/trailing bracket, paren, and punctuation glyphs
// that wrap a level-prefix token, e.g. "[Lvl" -> "Lvl", "100]" -> "100".
func bracketTrim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// PetLevelPrefix matches a leading "Lvl 100"-style token pair in a raw
// (not-yet-normalized) item name, tolerating a wrapping "[...]" or "(...)",
// and returns the digit string and true, or ("", false) when absent.
func PetLevelPrefix(name string) (string, bool) {
	fields := strings.Fields(NormalizeWeirdDigits(name))
	if len(fields) < 2 {
		return "", false
	}
	first := bracketTrim(fields[0])
	second := bracketTrim(fields[1])
	if !isLevelWord(strings.ToLower(first)) {
		return "", false
	}
	if !isDigits(second) {
		return "", false
	}
	return second, true
}
