// Package catalog holds the fixed, in-memory cosmetic and item lookup
// lists backing the /api/items, /api/enchants, /api/dyes, /api/skins,
// /api/petskins and /api/petitems endpoints. These lists are a static
// external collaborator, not a derived or learned index: the same
// read-only-after-init table pattern as internal/match's DefaultTierLookup.
package catalog

import "strings"

// Static is the default in-memory catalog, seeded with a representative
// sample of items, enchantments, dyes, skins, pet skins and held pet items.
// A production deployment would load this table from the upstream game's
// published asset data rather than hand-seeding it.
type Static struct {
	items    []entry
	enchants []string
	dyes     []entry
	skins    []entry
	petskins []entry
	petitems []entry
}

type entry struct {
	key   string
	label string
}

// NewStatic builds the default seeded catalog.
func NewStatic() *Static {
	return &Static{
		items: []entry{
			{"hyperion", "Hyperion"},
			{"astraea", "Astraea"},
			{"scylla", "Scylla"},
			{"valkyrie", "Valkyrie"},
			{"necron's_blade", "Necron's Blade"},
			{"midas'_sword", "Midas' Sword"},
			{"terminator", "Terminator"},
			{"juju_shortbow", "Juju Shortbow"},
		},
		enchants: []string{
			"sharpness", "giant_killer", "first_strike", "life_steal",
			"growth", "protection", "efficiency", "fortune",
			"ultimate_wise", "telekinesis", "power", "ultimate_soul_eater",
		},
		dyes: []entry{
			{"dye_midas", "Midas Dye"},
			{"dye_damage", "Damage Dye"},
			{"dye_fairy", "Fairy Dye"},
		},
		skins: []entry{
			{"skin_zombie_king_sword", "Zombie King Sword Skin"},
			{"skin_spirit_sceptre", "Spirit Sceptre Skin"},
		},
		petskins: []entry{
			{"petskin_golden_dragon", "Golden Dragon Skin"},
			{"petskin_party", "Party Skin"},
		},
		petitems: []entry{
			{"pet_item_lucky_clover", "Lucky Clover"},
			{"pet_item_all_skills_talisman", "All Skills Talisman"},
			{"pet_item_tier_boost", "Tier Boost"},
		},
	}
}

func filter(entries []entry, q string, limit int) []Item {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []Item
	for _, e := range entries {
		if q != "" && !strings.Contains(strings.ToLower(e.label), q) && !strings.Contains(e.key, q) {
			continue
		}
		out = append(out, Item{Key: e.key, Label: e.label})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Item is a {key,label} pair returned by every catalog lookup.
type Item struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

func (s *Static) SearchItems(q string, limit int) []Item { return filter(s.items, q, limit) }

func (s *Static) SearchEnchants(q string, limit int) []string {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []string
	for _, e := range s.enchants {
		if q != "" && !strings.Contains(e, q) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (s *Static) Dyes(q string) []Item     { return filter(s.dyes, q, 0) }
func (s *Static) Skins(q string) []Item    { return filter(s.skins, q, 0) }
func (s *Static) PetSkins(q string) []Item { return filter(s.petskins, q, 0) }
func (s *Static) PetItems(q string) []Item { return filter(s.petitems, q, 0) }
