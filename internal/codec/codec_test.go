package codec

import (
	"bytes"
	"testing"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	entries := Entries{
		"k1": []byte("v1"),
		"k2": []byte{0, 1, 2, 3, 255},
		"":   []byte("empty key is still a valid map key"),
	}

	data, err := Serialize(entries)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	got, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize failed: %v", err)
	}

	if len(got) != len(entries) {
		t.Fatalf("round trip changed entry count: got %d, want %d", len(got), len(entries))
	}
	for k, v := range entries {
		gv, ok := got[k]
		if !ok {
			t.Fatalf("missing key %q after round trip", k)
		}
		if !bytes.Equal(gv, v) {
			t.Fatalf("key %q: got %v, want %v", k, gv, v)
		}
	}
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 1000)

	compressed, err := Compress(payload)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if len(compressed) >= len(payload) {
		t.Fatalf("expected compression to shrink a repetitive payload: %d >= %d", len(compressed), len(payload))
	}

	decompressed, err := Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if !bytes.Equal(decompressed, payload) {
		t.Fatalf("decompressed payload does not match original")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := Decompress([]byte("not a zstd frame")); err == nil {
		t.Fatalf("expected Decompress to fail on garbage input")
	}
}

func TestEncodeDecodeRecordRoundTrip(t *testing.T) {
	key := "fruit/apple"
	value := []byte("crunchy")

	record, err := EncodeRecord(key, value)
	if err != nil {
		t.Fatalf("EncodeRecord failed: %v", err)
	}

	gotKey, gotValue, err := DecodeRecord(record)
	if err != nil {
		t.Fatalf("DecodeRecord failed: %v", err)
	}
	if gotKey != key {
		t.Fatalf("got key %q, want %q", gotKey, key)
	}
	if !bytes.Equal(gotValue, value) {
		t.Fatalf("got value %v, want %v", gotValue, value)
	}
}

func TestDecodeRecordRejectsMultiKeyPayload(t *testing.T) {
	raw, err := Serialize(Entries{"a": []byte("1"), "b": []byte("2")})
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	compressed, err := Compress(raw)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if _, _, err := DecodeRecord(compressed); err == nil {
		t.Fatalf("expected DecodeRecord to reject a multi-key payload")
	}
}

// ShardIndex must match int(md5_hex(utf8(k)), 16) % n exactly, since
// shard file layouts persist across process restarts (spec §3, §9).
func TestShardIndexKnownVectors(t *testing.T) {
	cases := []struct {
		key  string
		n    int
		want int
	}{
		// md5("") = d41d8cd98f00b204e9800998ecf8427e
		{"", 256, 0xd41d8cd98f00b204e9800998ecf8427e % 256},
	}
	for _, c := range cases {
		if got := ShardIndex(c.key, c.n); got != c.want {
			t.Fatalf("ShardIndex(%q, %d) = %d, want %d", c.key, c.n, got, c.want)
		}
	}
}

func TestShardIndexStableAcrossCalls(t *testing.T) {
	key := "some/stable/key"
	first := ShardIndex(key, 256)
	for i := 0; i < 100; i++ {
		if got := ShardIndex(key, 256); got != first {
			t.Fatalf("ShardIndex is not stable: got %d, want %d", got, first)
		}
	}
}

func TestShardIndexInRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		key := randomishKey(i)
		idx := ShardIndex(key, 64)
		if idx < 0 || idx >= 64 {
			t.Fatalf("ShardIndex(%q, 64) = %d, out of range", key, idx)
		}
	}
}

func randomishKey(i int) string {
	return string(rune('a'+i%26)) + string(rune('A'+(i*7)%26)) + string(rune('0'+i%10))
}
