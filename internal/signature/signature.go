// Package signature builds the canonical, ordered, pipe-delimited token
// string that fingerprints an auction's gameplay-relevant attributes. This
// is the hardest subsystem in the engine: the star resolution ladder
// encodes reverse-engineered upstream semantics that must be preserved
// exactly, byte for byte, across every code path that can produce it.
package signature

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hypeauction/market-engine/internal/nbt"
	"github.com/hypeauction/market-engine/internal/textnorm"
)

// Warner receives a message when the builder takes an ambiguous fallback
// path worth surfacing in logs. A nil Warner is a no-op.
type Warner interface {
	Warnf(format string, args ...interface{})
}

// Input is everything the builder needs to derive a signature.
type Input struct {
	ItemName  string
	Lore      string
	Tier      string
	ItemBytes string
}

// witherWeapons is the fixed set of canonical item keys eligible for the
// wither_impact flag.
var witherWeapons = map[string]bool{
	"hyperion": true, "astraea": true, "scylla": true, "valkyrie": true,
}

var requiredScrolls = []string{"implosion_scroll", "shadow_warp_scroll", "wither_shield_scroll"}

var heldItemLineRE = regexp.MustCompile(`(?i)^(?:held item|pet item)\s*[: ]\s*(.+)$`)

// Build derives a signature string. warn may be nil.
func Build(in Input, warn Warner) string {
	extra := nbt.Decode(in.ItemBytes)

	enchants := collectEnchants(extra)

	dstars, mstars := resolveStars(extra, in.ItemName, in.Lore, warn)
	stars10 := dstars + mstars

	itemKey := textnorm.CanonicalItemKey(in.ItemName)
	witherImpact := resolveWitherImpact(itemKey, in.Lore, extra)

	petLevel := resolvePetLevel(extra, in.ItemName)

	dye := noneIfEmpty(textnorm.NormKey(extra.Get("dye_item").String()))
	skin := noneIfEmpty(textnorm.NormKey(extra.Get("skin").String()))
	petSkinRaw := extra.Get("petSkin").String()
	if petSkinRaw == "" {
		petSkinRaw = extra.Get("pet_skin").String()
	}
	petSkin := noneIfEmpty(textnorm.NormKey(petSkinRaw))

	petItem := resolvePetHeldItem(extra, in.Lore)

	tokens := make([]string, 0, 10+len(enchants))
	addToken := func(key, val string) {
		if val == "" || val == "none" {
			return
		}
		tokens = append(tokens, key+":"+val)
	}
	addIntToken := func(key string, val int) {
		if val == 0 {
			return
		}
		tokens = append(tokens, key+":"+strconv.Itoa(val))
	}

	if in.Tier != "" {
		addToken("tier", strings.ToLower(in.Tier))
	}
	addIntToken("dstars", dstars)
	addIntToken("mstars", mstars)
	addIntToken("stars10", stars10)
	if witherImpact {
		tokens = append(tokens, "wither_impact:1")
	}
	addIntToken("pet_level", petLevel)
	addToken("dye", dye)
	addToken("skin", skin)
	addToken("petskin", petSkin)
	addToken("pet_item", petItem)

	names := make([]string, 0, len(enchants))
	for name := range enchants {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		tokens = append(tokens, name+":"+strconv.Itoa(enchants[name]))
	}

	return strings.Join(tokens, "|")
}

func noneIfEmpty(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// normalizeEnchantKey lowercases, maps underscores to spaces, strips a
// leading "ultimate " prefix, and re-joins with underscores so the final
// form is safe inside a pipe-delimited key:value token.
func normalizeEnchantKey(raw string) string {
	s := strings.ToLower(raw)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimPrefix(s, "ultimate ")
	return strings.ReplaceAll(s, " ", "_")
}

func collectEnchants(extra *nbt.Node) map[string]int {
	out := map[string]int{}
	keep := func(name string, level int) {
		key := normalizeEnchantKey(name)
		if key == "" {
			return
		}
		if cur, ok := out[key]; !ok || level > cur {
			out[key] = level
		}
	}

	if ench := extra.Get("enchantments"); ench.IsMap() {
		for name, node := range ench.Map {
			keep(name, int(node.Int()))
		}
	}

	if ue := extra.Get("ultimate_enchant"); ue != nil {
		if s, ok := ue.Value.(string); ok && s != "" {
			parts := strings.SplitN(s, "_", 2)
			if len(parts) == 2 {
				if lvl, err := strconv.Atoi(parts[1]); err == nil {
					keep(parts[0], lvl)
				}
			}
		} else if ue.IsMap() {
			name := firstNonEmpty(ue.Get("enchant").String(), ue.Get("enchantment").String(), ue.Get("id").String())
			lvlNode := ue.Get("level")
			if lvlNode == nil {
				lvlNode = ue.Get("lvl")
			}
			if lvlNode == nil {
				lvlNode = ue.Get("tier")
			}
			if name != "" && lvlNode != nil {
				keep(name, int(lvlNode.Int()))
			}
		}
	}

	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resolveStars implements the star-priority ladder.
func resolveStars(extra *nbt.Node, itemName, lore string, warn Warner) (dstars, mstars int) {
	d := clamp(int(extra.Get("dungeon_item_level").Int()), 0, 10)
	u := clamp(int(extra.Get("upgrade_level").Int()), 0, 10)

	enforce := func(d, m int) (int, int) {
		if m > 0 && d != 5 {
			d = 5
		}
		return d, m
	}

	switch {
	case d > 5:
		return enforce(5, d-5)
	case u > 5:
		return enforce(5, u-5)
	case d > 0 && u > 0:
		return enforce(clamp(d, 0, 5), clamp(u, 0, 5))
	case d > 0:
		return enforce(d, 0)
	case u > 0:
		total := starsFromText(itemName, lore)
		if total >= 6 {
			if warn != nil {
				warn.Warnf("sig: ambiguous upgrade_level resolved via text fallback (total=%d)", total)
			}
			return enforce(5, u)
		}
		return enforce(u, 0)
	default:
		total := starsFromText(itemName, lore)
		d := total
		if d > 5 {
			d = 5
		}
		m := total - 5
		if m < 0 {
			m = 0
		}
		return enforce(d, m)
	}
}

var romanValues = map[string]int{"i": 1, "ii": 2, "iii": 3, "iv": 4, "v": 5}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', ',', '.', '-', ':', ';':
		return true
	}
	return false
}

// starsFromText implements coflnet_stars10_from_text: scan the last 80
// characters for a trailing run of star-like glyphs, then inspect the
// token immediately following the cluster for an overflow digit or Roman
// numeral (master-star suffix notation).
func starsFromText(itemName, lore string) int {
	combined := itemName + " " + lore
	combined = textnorm.NormalizeWeirdDigits(combined)
	runes := []rune(combined)
	if len(runes) > 80 {
		runes = runes[len(runes)-80:]
	}

	lastStar := -1
	for i := len(runes) - 1; i >= 0; i-- {
		if textnorm.StarGlyphs[runes[i]] {
			lastStar = i
			break
		}
	}
	if lastStar == -1 {
		return 0
	}

	count := 0
	sepBudget := 12
	i := lastStar
	for i >= 0 && count < 5 {
		if textnorm.StarGlyphs[runes[i]] {
			count++
			i--
			continue
		}
		if isSeparator(runes[i]) && sepBudget > 0 {
			sepBudget--
			i--
			continue
		}
		break
	}

	if count < 5 {
		return count
	}

	// inspect the first token after the cluster (forward from lastStar+1)
	j := lastStar + 1
	for j < len(runes) && isSeparator(runes[j]) {
		j++
	}
	start := j
	for j < len(runes) && !isSeparator(runes[j]) {
		j++
	}
	token := strings.ToLower(string(runes[start:j]))

	if len(token) == 1 && token[0] >= '1' && token[0] <= '5' {
		return 5 + int(token[0]-'0')
	}
	if v, ok := romanValues[token]; ok {
		return 5 + v
	}
	return 5
}

func resolveWitherImpact(itemKey, lore string, extra *nbt.Node) bool {
	if !witherWeapons[itemKey] {
		return false
	}
	if strings.Contains(strings.ToLower(lore), "wither impact") {
		return true
	}
	scrolls := map[string]bool{}
	if extra.IsMap() {
		for name, node := range extra.Map {
			if !strings.Contains(strings.ToLower(name), "scroll") {
				continue
			}
			collectScrollStrings(node, scrolls)
		}
	}
	for _, need := range requiredScrolls {
		if !scrolls[need] {
			return false
		}
	}
	return true
}

func collectScrollStrings(n *nbt.Node, out map[string]bool) {
	if n == nil {
		return
	}
	if s, ok := n.Value.(string); ok {
		out[strings.ToLower(s)] = true
	}
	for _, child := range n.List {
		collectScrollStrings(child, out)
	}
}

type petInfo struct {
	Level int `json:"level"`
}

func resolvePetLevel(extra *nbt.Node, itemName string) int {
	if raw := extra.Get("petInfo").String(); raw != "" {
		var pi petInfo
		if err := json.Unmarshal([]byte(raw), &pi); err == nil && pi.Level >= 1 && pi.Level <= 200 {
			return pi.Level
		}
	}
	if digits, ok := textnorm.PetLevelPrefix(itemName); ok {
		if lvl, err := strconv.Atoi(digits); err == nil && lvl >= 1 && lvl <= 200 {
			return lvl
		}
	}
	return 0
}

func resolvePetHeldItem(extra *nbt.Node, lore string) string {
	for _, key := range []string{"petItem", "pet_item", "heldItem", "held_item", "petHeldItem", "pet_held_item"} {
		if v := extra.Get(key).String(); v != "" {
			return underscoreJoin(v)
		}
	}
	for _, line := range strings.Split(lore, "\n") {
		line = strings.TrimSpace(line)
		if m := heldItemLineRE.FindStringSubmatch(line); m != nil {
			return underscoreJoin(m[1])
		}
	}
	return ""
}

// underscoreJoin is normalize-then-underscore-join: NormKey collapses a
// name to lowercase space-separated words, and this rejoins them with
// underscores for emission as a signature token value.
func underscoreJoin(v string) string {
	return strings.ReplaceAll(textnorm.NormKey(v), " ", "_")
}
