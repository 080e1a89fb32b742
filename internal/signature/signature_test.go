package signature

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

type noopWarner struct{ messages []string }

func (n *noopWarner) Warnf(format string, args ...interface{}) {
	n.messages = append(n.messages, format)
}

func TestBuildBasicStarredItem(t *testing.T) {
	in := Input{ItemName: "✪✪✪✪✪ Necron's Blade", Tier: "LEGENDARY"}
	got := Build(in, nil)
	want := "tier:legendary|dstars:5|stars10:5"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

// buildNBT constructs a compound with ExtraAttributes containing the given
// int fields and an enchantments compound.
func buildNBT(t *testing.T, ints map[string]int32, enchants map[string]int32) string {
	t.Helper()
	var buf bytes.Buffer
	wb := func(b byte) { buf.WriteByte(b) }
	ws := func(s string) {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	wi := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}

	wb(10) // tagCompound
	ws("")

	wb(10) // ExtraAttributes compound
	ws("ExtraAttributes")
	for k, v := range ints {
		wb(3) // tagInt
		ws(k)
		wi(v)
	}
	if len(enchants) > 0 {
		wb(10)
		ws("enchantments")
		for k, v := range enchants {
			wb(3)
			ws(k)
			wi(v)
		}
		wb(0)
	}
	wb(0) // end ExtraAttributes
	wb(0) // end root

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(buf.Bytes())
	gw.Close()
	return base64.StdEncoding.EncodeToString(gz.Bytes())
}

func TestBuildMasterStarFromBinaryPayload(t *testing.T) {
	itemBytes := buildNBT(t,
		map[string]int32{"dungeon_item_level": 5, "upgrade_level": 3},
		map[string]int32{"sharpness": 7},
	)
	got := Build(Input{ItemName: "Hyperion", ItemBytes: itemBytes}, nil)

	for _, want := range []string{"dstars:5", "mstars:3", "stars10:8", "sharpness:7"} {
		if !containsToken(got, want) {
			t.Errorf("Build() = %q, missing token %q", got, want)
		}
	}
}

func TestBuildTotalInDungeonField(t *testing.T) {
	itemBytes := buildNBT(t, map[string]int32{"dungeon_item_level": 8, "upgrade_level": 0}, nil)
	got := Build(Input{ItemName: "Test", ItemBytes: itemBytes}, nil)
	want := "dstars:5|mstars:3|stars10:8"
	if got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestBuildWitherImpactRequiresAllScrolls(t *testing.T) {
	itemBytes := buildScrolls(t, []string{"implosion_scroll", "shadow_warp_scroll", "wither_shield_scroll"})
	got := Build(Input{ItemName: "Hyperion", ItemBytes: itemBytes}, nil)
	if !containsToken(got, "wither_impact:1") {
		t.Errorf("expected wither_impact:1 in %q", got)
	}

	missingOne := buildScrolls(t, []string{"implosion_scroll", "shadow_warp_scroll"})
	got2 := Build(Input{ItemName: "Hyperion", ItemBytes: missingOne}, nil)
	if containsToken(got2, "wither_impact") {
		t.Errorf("did not expect wither_impact in %q", got2)
	}
}

func buildScrolls(t *testing.T, scrolls []string) string {
	t.Helper()
	var buf bytes.Buffer
	wb := func(b byte) { buf.WriteByte(b) }
	ws := func(s string) {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	wi32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}

	wb(10)
	ws("")
	wb(10)
	ws("ExtraAttributes")

	wb(9) // tagList
	ws("ability_scroll")
	wb(8) // element type: string
	wi32(int32(len(scrolls)))
	for _, s := range scrolls {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}

	wb(0)
	wb(0)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write(buf.Bytes())
	gw.Close()
	return base64.StdEncoding.EncodeToString(gz.Bytes())
}

func TestBuildPetWithHeldItemInLore(t *testing.T) {
	got := Build(Input{ItemName: "[Lvl 100] Ender Dragon", Lore: "Some text\nHeld Item: ✦ Tier Boost\nmore text"}, nil)
	if !containsToken(got, "pet_level:100") {
		t.Errorf("expected pet_level:100 in %q", got)
	}
	if !containsToken(got, "pet_item:tier_boost") {
		t.Errorf("expected pet_item:tier_boost in %q", got)
	}
}

func TestBuildDeterministic(t *testing.T) {
	in := Input{ItemName: "✪✪✪✪✪ Necron's Blade", Tier: "LEGENDARY"}
	a := Build(in, nil)
	b := Build(in, nil)
	if a != b {
		t.Errorf("Build not deterministic: %q != %q", a, b)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	got := Build(Input{}, nil)
	if got != "" {
		t.Errorf("Build(empty) = %q, want empty string", got)
	}
}

func containsToken(sig, token string) bool {
	for _, tok := range splitTokens(sig) {
		if tok == token {
			return true
		}
	}
	return false
}

func splitTokens(sig string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(sig); i++ {
		if i == len(sig) || sig[i] == '|' {
			out = append(out, sig[start:i])
			start = i + 1
		}
	}
	return out
}
