package discovery

import (
	"strings"
	"testing"
)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestExpand_ExchangeAnchor(t *testing.T) {
	children := Expand("AAPL.", 11, NewIndex(nil), 10)

	if len(children) != len(ExchangeSuffixes) {
		t.Fatalf("expected one child per exchange suffix (%d), got %d", len(ExchangeSuffixes), len(children))
	}
	for _, want := range []string{"AAPL.TO", "AAPL.L", "AAPL=X"} {
		if !contains(children, want) {
			t.Errorf("expected %s among children", want)
		}
	}
	for _, c := range children {
		if last := c[len(c)-1]; last >= '0' && last <= '9' {
			t.Errorf("unexpected child ending in a digit: %s", c)
		}
	}
}

func TestExpand_OptionCode(t *testing.T) {
	children := Expand("SPXW2024P", 11, NewIndex(nil), 21)

	if len(children) != 10 {
		t.Fatalf("expected 10 children, got %d: %v", len(children), children)
	}
	for d := '0'; d <= '9'; d++ {
		if !contains(children, "SPXW2024P"+string(d)) {
			t.Errorf("missing child SPXW2024P%c", d)
		}
	}
}

func TestExpand_GeneralAlphabet(t *testing.T) {
	children := Expand("AB", 11, NewIndex(nil), 21)

	if len(children) != len(GeneralSearchCharacters) {
		t.Fatalf("expected %d children, got %d", len(GeneralSearchCharacters), len(children))
	}
	if children[0] != "AB0" {
		t.Errorf("expected most frequent character first, got %s", children[0])
	}
}

func TestExpand_KnownSymbolWithoutResults(t *testing.T) {
	children := Expand("IBM", -1, NewIndex([]string{"ibm"}), 21)
	if len(children) == 0 {
		t.Error("a known symbol must be expanded even when the lookup was skipped")
	}
}

func TestExpand_Stops(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		count     int
		maxLen    int
	}{
		{"few matches", "AB", 10, 21},
		{"no matches", "AB", 0, 21},
		{"too long", strings.Repeat("A", 11), 50, 10},
		{"exchange suffix", "SHOP.TO", 50, 21},
		{"currency suffix", "EURUSD=X", 50, 21},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if children := Expand(tt.candidate, tt.count, NewIndex(nil), tt.maxLen); children != nil {
				t.Errorf("expected no children, got %d", len(children))
			}
		})
	}
}

func TestExpand_LengthBoundary(t *testing.T) {
	// a candidate of exactly maxLen characters is still expanded
	if children := Expand("ABCDEFGHIJ", 11, NewIndex(nil), 10); len(children) == 0 {
		t.Error("expected expansion at length == maxLen")
	}
}
