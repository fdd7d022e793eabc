package units

import "testing"

func TestParseBitsPerSecond(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"100K", 100000},
		{"100k", 100000},
		{"2M", 2_000_000},
		{"1G", 1_000_000_000},
		{"500", 500},
	}
	for _, c := range cases {
		got, err := ParseBitsPerSecond(c.in)
		if err != nil {
			t.Fatalf("ParseBitsPerSecond(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseBitsPerSecond(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseBytes(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"1K", 1024},
		{"1M", 1048576},
		{"1G", 1073741824},
		{"512", 512},
	}
	for _, c := range cases {
		got, err := ParseBytes(c.in)
		if err != nil {
			t.Fatalf("ParseBytes(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseBytes(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseInvalidSuffix(t *testing.T) {
	if _, err := ParseBitsPerSecond("100X"); err == nil {
		t.Fatal("expected error for bad suffix")
	}
	if _, err := ParseBytes(""); err == nil {
		t.Fatal("expected error for empty value")
	}
}
