package hashutil

import "testing"

func TestHashContentIsReproducible(t *testing.T) {
	a := HashContent([]byte("openapi: 3.0.0"))
	b := HashContent([]byte("openapi: 3.0.0"))
	if a != b {
		t.Fatalf("expected identical hashes for identical bytes, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64-char lowercase hex digest, got %d chars", len(a))
	}
}

func TestHashCodeIgnoresTrailingWhitespace(t *testing.T) {
	a := HashCode("result = 1 + 1\n\nprint(result)   \n")
	b := HashCode("result = 1 + 1\nprint(result)")
	if a != b {
		t.Fatalf("expected whitespace-insensitive code hash, got %s vs %s", a, b)
	}
}

func TestHashCodeBlankLinesDropped(t *testing.T) {
	a := HashCode("a\n\n\nb")
	b := HashCode("a\nb")
	if a != b {
		t.Fatalf("blank lines should not affect code id: %s vs %s", a, b)
	}
}

func TestCombineHashesOrderIndependent(t *testing.T) {
	a := CombineHashes([]string{"b", "a", "c"})
	b := CombineHashes([]string{"c", "b", "a"})
	if a != b {
		t.Fatalf("combine_hashes should be order independent, got %s vs %s", a, b)
	}
}

func TestCombineHashesEmpty(t *testing.T) {
	got := CombineHashes(nil)
	want := HashString("")
	if got != want {
		t.Fatalf("expected hash of empty join for no hashes, got %s want %s", got, want)
	}
}
