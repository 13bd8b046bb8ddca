package textutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  Test Reel  ", "Test Reel"},
		{"line one\r\n\tline two", "line one line two"},
		{"Café", "Café"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEqualIgnoresFormattingNoise(t *testing.T) {
	if !Equal("Café  interview", " Café interview\n") {
		t.Fatal("expected equal after normalization")
	}
	if Equal("Reel 1", "Reel 2") {
		t.Fatal("expected different values to differ")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Fatalf("unexpected truncate %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncate %q", got)
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{` a/b:c?"d" `, "a-b-cd"},
		{" aspace_1f2e:3d/4c? ", "aspace_1f2e-3d-4c"},
		{`back\slash*star`, "back-slash-star"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := SanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
