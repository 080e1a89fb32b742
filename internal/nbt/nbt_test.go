package nbt

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/binary"
	"testing"
)

// buildCompound writes a minimal NBT compound tag with a single ExtraAttributes
// child compound containing one int field "dungeon_item_level".
func buildCompound(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer

	writeByte := func(b byte) { buf.WriteByte(b) }
	writeString := func(s string) {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	writeInt32 := func(v int32) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v))
		buf.Write(b[:])
	}

	// root compound, unnamed
	writeByte(tagCompound)
	writeString("")

	// child: ExtraAttributes (compound)
	writeByte(tagCompound)
	writeString("ExtraAttributes")

	writeByte(tagInt)
	writeString("dungeon_item_level")
	writeInt32(5)

	writeByte(tagEnd) // end ExtraAttributes

	writeByte(tagEnd) // end root

	return buf.Bytes()
}

func TestDecodeRawNBT(t *testing.T) {
	raw := buildCompound(t)
	encoded := base64.StdEncoding.EncodeToString(raw)

	extra := Decode(encoded)
	if extra == nil || !extra.IsMap() {
		t.Fatalf("expected a map node, got %#v", extra)
	}
	if got := extra.Get("dungeon_item_level").Int(); got != 5 {
		t.Errorf("dungeon_item_level = %d, want 5", got)
	}
}

func TestDecodeGzippedNBT(t *testing.T) {
	raw := buildCompound(t)
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write(raw)
	w.Close()
	encoded := base64.StdEncoding.EncodeToString(gz.Bytes())

	extra := Decode(encoded)
	if got := extra.Get("dungeon_item_level").Int(); got != 5 {
		t.Errorf("dungeon_item_level = %d, want 5", got)
	}
}

func TestDecodeInvalidBase64(t *testing.T) {
	extra := Decode("not valid base64!!!")
	if extra == nil || !extra.IsMap() || len(extra.Map) != 0 {
		t.Errorf("expected empty map on invalid base64, got %#v", extra)
	}
}
