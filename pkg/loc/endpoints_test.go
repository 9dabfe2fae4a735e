package loc

import (
	"net/url"
	"strings"
	"testing"
)

func TestSearchURL(t *testing.T) {
	raw := SearchURL("https://www.loc.gov", "aids-memorial-quilt-records", 100, 3)

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("SearchURL returned unparseable URL: %v", err)
	}

	if !strings.HasPrefix(u.Path, "/collections/aids-memorial-quilt-records/") {
		t.Errorf("unexpected path: %s", u.Path)
	}

	q := u.Query()
	if q.Get("fo") != "json" {
		t.Errorf("expected fo=json, got %q", q.Get("fo"))
	}
	if q.Get("c") != "100" {
		t.Errorf("expected c=100, got %q", q.Get("c"))
	}
	if q.Get("sp") != "3" {
		t.Errorf("expected sp=3, got %q", q.Get("sp"))
	}
}

func TestSearchURLClampsPageSize(t *testing.T) {
	raw := SearchURL(BaseURL, Collection, 5000, 1)
	u, _ := url.Parse(raw)
	if got := u.Query().Get("c"); got != "1000" {
		t.Errorf("expected page size clamped to 1000, got %q", got)
	}

	raw = SearchURL(BaseURL, Collection, 0, 0)
	u, _ = url.Parse(raw)
	if got := u.Query().Get("c"); got != "100" {
		t.Errorf("expected default page size 100, got %q", got)
	}
	if got := u.Query().Get("sp"); got != "1" {
		t.Errorf("expected page defaulted to 1, got %q", got)
	}
}

func TestItemURL(t *testing.T) {
	got := ItemURL("https://www.loc.gov", "afc2019048_0001")
	want := "https://www.loc.gov/item/afc2019048_0001/?fo=json"
	if got != want {
		t.Errorf("ItemURL = %q, want %q", got, want)
	}

	// Trailing slash on the base must not double up
	got = ItemURL("https://www.loc.gov/", "afc2019048_0001")
	if got != want {
		t.Errorf("ItemURL with trailing slash = %q, want %q", got, want)
	}
}

func TestItemIDFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.loc.gov/item/afc2019048_0001/", "afc2019048_0001"},
		{"http://www.loc.gov/item/afc2019048_2104", "afc2019048_2104"},
		{"https://www.loc.gov/item/afc2019048_0001/?fo=json", "afc2019048_0001"},
		{"afc2019048_0001", "afc2019048_0001"},
		{"  afc2019048_0001 ", "afc2019048_0001"},
	}

	for _, tt := range tests {
		if got := ItemIDFromURL(tt.in); got != tt.want {
			t.Errorf("ItemIDFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatItemID(t *testing.T) {
	tests := []struct {
		block int
		want  string
	}{
		{1, "afc2019048_0001"},
		{42, "afc2019048_0042"},
		{999, "afc2019048_0999"},
		{1000, "afc2019048_1000"},
		{5403, "afc2019048_5403"},
	}

	for _, tt := range tests {
		if got := FormatItemID(tt.block); got != tt.want {
			t.Errorf("FormatItemID(%d) = %q, want %q", tt.block, got, tt.want)
		}
	}
}

func TestBlockNumberFromItemID(t *testing.T) {
	tests := []struct {
		id   string
		want int
	}{
		{"afc2019048_0001", 1},
		{"afc2019048_1000", 1000},
		{"afc2019048_abc", 0},
		{"noseparator", 0},
		{"afc2019048_", 0},
	}

	for _, tt := range tests {
		if got := BlockNumberFromItemID(tt.id); got != tt.want {
			t.Errorf("BlockNumberFromItemID(%q) = %d, want %d", tt.id, got, tt.want)
		}
	}
}
