package util

import (
	"testing"
)

func TestCompareKeysWithinClasses(t *testing.T) {
	cases := []struct {
		a, b any
		want int
	}{
		{1, 2, -1},
		{2, 2, 0},
		{3, 2, 1},
		{int64(7), uint8(7), 0},
		{1.5, 2, -1},
		{2, 1.5, 1},
		{2.0, 2, 0},
		{uint64(1 << 63), int64(9), 1},
		{"a", "b", -1},
		{"b", "b", 0},
		{[]byte("a"), []byte("ab"), -1},
		{false, true, -1},
		{nil, nil, 0},
	}

	for _, c := range cases {
		if got := CompareKeys(c.a, c.b); got != c.want {
			t.Errorf("CompareKeys(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareKeysAcrossClasses(t *testing.T) {
	// nil < bool < number < string < bytes
	ordered := []any{nil, true, 42, "42", []byte("42")}

	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if got := CompareKeys(ordered[i], ordered[j]); got != -1 {
				t.Errorf("CompareKeys(%v, %v) = %d, want -1", ordered[i], ordered[j], got)
			}
			if got := CompareKeys(ordered[j], ordered[i]); got != 1 {
				t.Errorf("CompareKeys(%v, %v) = %d, want 1", ordered[j], ordered[i], got)
			}
		}
	}
}

func TestKeyStringNormalizesNumericTypes(t *testing.T) {
	if KeyString(1) != KeyString(int64(1)) {
		t.Errorf("expected int and int64 to share a key string")
	}
	if KeyString(1) != KeyString(1.0) {
		t.Errorf("expected 1 and 1.0 to share a key string")
	}
	if KeyString(1) == KeyString("1") {
		t.Errorf("expected the number 1 and the string \"1\" to differ")
	}
	if KeyString(1.5) == KeyString(1) {
		t.Errorf("expected 1.5 and 1 to differ")
	}
}

func TestHashStringIsDeterministic(t *testing.T) {
	seed := GenerateSeed()
	if HashString("table", seed) != HashString("table", seed) {
		t.Errorf("expected identical hashes for identical input")
	}
	if HashString("table", seed) == HashString("elbat", seed) {
		t.Errorf("expected different hashes for different input")
	}
}
