package normalize

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

// --- Month rule ---

func TestNormalize_MonthName(t *testing.T) {
	got := Normalize([]string{"date_month"}, map[string]string{"date_month": "March"})
	if got["date_month"] != "03" {
		t.Errorf("date_month = %q, want %q", got["date_month"], "03")
	}
}

func TestNormalize_MonthAlreadyNumeric(t *testing.T) {
	got := Normalize([]string{"date_month"}, map[string]string{"date_month": "03"})
	if got["date_month"] != "03" {
		t.Errorf("date_month = %q, want %q", got["date_month"], "03")
	}
}

func TestMonthNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{"January", "01", true},
		{"january", "01", true},
		{"JAN", "01", true},
		{"Feb.", "02", true},
		{" sept ", "09", true},
		{"May", "05", true},
		{"december", "12", true},
		{"03", "", false},
		{"Marchish", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := MonthNumber(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MonthNumber(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalize_MonthUnrecognizedLeftAsIs(t *testing.T) {
	got := Normalize([]string{"Month"}, map[string]string{"Month": "Smarch"})
	if got["Month"] != "Smarch" {
		t.Errorf("Month = %q, want unchanged %q", got["Month"], "Smarch")
	}
}

func TestNormalize_MonthRuleOnlyTouchesMonthFields(t *testing.T) {
	got := Normalize([]string{"Buyer name"}, map[string]string{"Buyer name": "May"})
	if got["Buyer name"] != "May" {
		t.Errorf("Buyer name = %q, want %q", got["Buyer name"], "May")
	}
}

// --- Year split ---

var yearDigits = []string{"year_d1", "year_d2", "year_d3", "year_d4"}

func TestNormalize_YearSplit(t *testing.T) {
	got := Normalize(yearDigits, map[string]string{"year": "2025"})
	want := map[string]string{"year_d1": "2", "year_d2": "0", "year_d3": "2", "year_d4": "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_YearSplitHyphenConvention(t *testing.T) {
	fields := []string{"Year-1", "Year-2", "Year-3", "Year-4"}
	got := Normalize(fields, map[string]string{"Year": "1987"})
	want := map[string]string{"Year-1": "1", "Year-2": "9", "Year-3": "8", "Year-4": "7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_YearSplitInvalidSourceSkipped(t *testing.T) {
	prior := map[string]string{"year": "abcd", "year_d1": "1", "year_d2": "9", "year_d3": "9", "year_d4": "0"}
	got := Normalize(yearDigits, prior)
	want := map[string]string{"year_d1": "1", "year_d2": "9", "year_d3": "9", "year_d4": "0"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_YearSplitInvalidSourceFallsBackToDefaults(t *testing.T) {
	got := Normalize(yearDigits, map[string]string{"year": "abcd"})
	want := map[string]string{"year_d1": "2", "year_d2": "0", "year_d3": "2", "year_d4": "5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_YearSplitFromHintedKey(t *testing.T) {
	fields := []string{"Year-1", "Year-2", "Year-3", "Year-4", "Sale yr"}
	got := Normalize(fields, map[string]string{"Sale yr": "2019"})
	if got["Year-1"] != "2" || got["Year-2"] != "0" || got["Year-3"] != "1" || got["Year-4"] != "9" {
		t.Errorf("digits = %v, want 2019 split", got)
	}
	if got["Sale yr"] != "2019" {
		t.Errorf("Sale yr = %q, want %q", got["Sale yr"], "2019")
	}
}

func TestNormalize_YearFieldFollowsFilledDigits(t *testing.T) {
	fields := append([]string{"year"}, yearDigits...)
	got := Normalize(fields, map[string]string{"year_d1": "1", "year_d2": "9", "year_d3": "9", "year_d4": "9"})
	want := map[string]string{"year": "1999", "year_d1": "1", "year_d2": "9", "year_d3": "9", "year_d4": "9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_YearSplitFromDefaultedHintField(t *testing.T) {
	fields := []string{"Year-1", "Year-2", "Year-3", "Year-4", "Sale yr"}
	got := Normalize(fields, map[string]string{"Year-1": "x"})
	want := map[string]string{"Year-1": "2", "Year-2": "0", "Year-3": "2", "Year-4": "5", "Sale yr": "2025"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_FormFieldYearBeatsUnknownKey(t *testing.T) {
	fields := append([]string{"year"}, yearDigits...)
	got := Normalize(fields, map[string]string{"Year": "1999", "year": "2001"})
	if got["year_d1"] != "2" || got["year_d2"] != "0" || got["year_d3"] != "0" || got["year_d4"] != "1" {
		t.Errorf("digits = %v, want 2001 split", got)
	}
}

func TestNormalize_IncompleteYearGroupIsPlainText(t *testing.T) {
	fields := []string{"Year 1", "Year 2"}
	got := Normalize(fields, map[string]string{"Year": "2024", "Year 1": "2001", "Year 2": "2002"})
	want := map[string]string{"Year 1": "2001", "Year 2": "2002"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

// --- Duplicate entity suppression ---

func TestNormalize_DuplicateSellerCleared(t *testing.T) {
	fields := []string{"seller1_name", "seller1_addr", "seller2_name", "seller2_addr"}
	raw := map[string]string{
		"seller1_name": "Alice", "seller1_addr": "1 Main St",
		"seller2_name": "Alice", "seller2_addr": "1 Main St",
	}
	got := Normalize(fields, raw)
	want := map[string]string{
		"seller1_name": "Alice", "seller1_addr": "1 Main St",
		"seller2_name": "", "seller2_addr": "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_DistinctSellerKept(t *testing.T) {
	fields := []string{"seller1_name", "seller1_addr", "seller2_name", "seller2_addr"}
	raw := map[string]string{
		"seller1_name": "Alice", "seller1_addr": "1 Main St",
		"seller2_name": "Carol", "seller2_addr": "1 Main St",
	}
	got := Normalize(fields, raw)
	if !reflect.DeepEqual(got, raw) {
		t.Errorf("Normalize() = %v, want unchanged %v", got, raw)
	}
}

func TestNormalize_DuplicateComparisonIsCaseSensitive(t *testing.T) {
	fields := []string{"seller1_name", "seller2_name"}
	got := Normalize(fields, map[string]string{"seller1_name": "Bob", "seller2_name": "bob"})
	if got["seller2_name"] != "bob" {
		t.Errorf("seller2_name = %q, want %q", got["seller2_name"], "bob")
	}
}

func TestNormalize_BlankSecondBlockNotBackfilled(t *testing.T) {
	fields := []string{"Seller print name 1", "Seller print name 2", "Sell date 1", "Sell date 2"}
	raw := map[string]string{"Seller print name 1": "Dana Scully", "Sell date 1": "04/01/2025"}
	got := Normalize(fields, raw)
	if got["Seller print name 2"] != "" {
		t.Errorf("Seller print name 2 = %q, want empty", got["Seller print name 2"])
	}
	if got["Sell date 2"] != "" {
		t.Errorf("Sell date 2 = %q, want empty", got["Sell date 2"])
	}
	if got["Seller print name 1"] != "Dana Scully" {
		t.Errorf("Seller print name 1 = %q", got["Seller print name 1"])
	}
}

func TestNormalize_UnnumberedFirstSeller(t *testing.T) {
	fields := []string{"Print seller's name", "Seller print name 2"}

	got := Normalize(fields, map[string]string{"Print seller's name": "Bob", "Seller print name 2": "Bob"})
	want := map[string]string{"Print seller's name": "Bob", "Seller print name 2": ""}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}

	got = Normalize(fields, map[string]string{"Print seller's name": "Bob", "Seller print name 2": "Carol"})
	if got["Seller print name 2"] != "Carol" {
		t.Errorf("Seller print name 2 = %q, want %q", got["Seller print name 2"], "Carol")
	}
}

func TestNormalize_DifferentEntityKindsNotCompared(t *testing.T) {
	fields := []string{"seller1_name", "buyer2_name"}
	got := Normalize(fields, map[string]string{"seller1_name": "Bob", "buyer2_name": "Bob"})
	if got["buyer2_name"] != "Bob" {
		t.Errorf("buyer2_name = %q, want %q", got["buyer2_name"], "Bob")
	}
}

// --- Backfill ---

func TestNormalize_BackfillDeterministic(t *testing.T) {
	fields := []string{"buyer_state"}
	first := Normalize(fields, nil)["buyer_state"]
	second := Normalize(fields, map[string]string{})["buyer_state"]

	if len(first) != 2 {
		t.Errorf("buyer_state = %q, want a two-letter code", first)
	}
	if first != second {
		t.Errorf("backfill not deterministic: %q vs %q", first, second)
	}
}

func TestNormalize_BackfillHeuristics(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"Buyer zip", "90210"},
		{"Seller State", "CA"},
		{"Sell date 1", "03/15/2025"},
		{"Today's date", "03/15/2025"},
		{"Day", "15"},
		{"Month", "03"},
		{"Home phone", "(555) 010-0100"},
		{"Contact email", "jane.doe@example.com"},
		{"Street address", "123 Main St"},
		{"Printed name", "Jane Doe"},
		{"Vehicle VIN", "N/A"},
	}

	for _, tt := range tests {
		got := Normalize([]string{tt.field}, nil)
		if got[tt.field] != tt.want {
			t.Errorf("backfill(%q) = %q, want %q", tt.field, got[tt.field], tt.want)
		}
	}
}

func TestNormalize_EmptyValueIsNotBackfilled(t *testing.T) {
	got := Normalize([]string{"Notes"}, map[string]string{"Notes": ""})
	if got["Notes"] != "" {
		t.Errorf("Notes = %q, want empty", got["Notes"])
	}
}

func TestNormalizer_Default(t *testing.T) {
	n := New(nil)
	if got := n.Default(yearDigits, "year_d3"); got != "2" {
		t.Errorf("Default(year_d3) = %q, want %q", got, "2")
	}
	if got := n.Default(nil, "buyer_state"); got != "CA" {
		t.Errorf("Default(buyer_state) = %q, want %q", got, "CA")
	}
}

// --- Key set, idempotence, end-to-end ---

func TestNormalize_KeySetEqualsFields(t *testing.T) {
	fields := []string{"Name", "Month", "seller1_name", "seller2_name", "year_d1", "year_d2", "year_d3", "year_d4", "Name"}
	raw := map[string]string{"Name": "X", "Unknown": "dropped", "year": "2001"}

	got := Normalize(fields, raw)

	var keys []string
	for k := range got {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := []string{"Month", "Name", "seller1_name", "seller2_name", "year_d1", "year_d2", "year_d3", "year_d4"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		raw    map[string]string
	}{
		{"empty", []string{"date_month", "year_d1", "year_d2", "year_d3", "year_d4", "Sale year", "buyer_state", "Notes"}, nil},
		{"duplicate seller", []string{"date_month", "year_d1", "year_d2", "year_d3", "year_d4", "seller1_name", "seller2_name"},
			map[string]string{"date_month": "January", "year": "1999", "seller1_name": "Bob", "seller2_name": "Bob"}},
		{"invalid month and year", []string{"date_month", "year_d1", "year_d2", "year_d3", "year_d4", "Sale year"},
			map[string]string{"date_month": "Smarch", "year": "abcd", "Sale year": "2019"}},
		{"partial second block", []string{"seller1_name", "seller1_addr", "seller2_name", "seller2_addr"},
			map[string]string{"seller1_name": "Bob", "seller2_name": "Bob", "seller2_addr": "123 Main St"}},
		{"blank value kept", []string{"seller1_name", "seller2_name", "seller1_addr", "Notes"},
			map[string]string{"seller1_name": "Ann", "seller2_name": "Ben", "seller1_addr": "9 Elm", "Notes": ""}},
		{"bad digit with hinted field", []string{"Year-1", "Year-2", "Year-3", "Year-4", "Sale yr"},
			map[string]string{"Year-1": "x"}},
		{"bad digit with base field", []string{"year_d1", "year_d2", "year_d3", "year_d4", "year"},
			map[string]string{"year_d1": "x"}},
		{"two groups disagree", []string{"Year-1", "Year-2", "Year-3", "Year-4", "year_d1", "year_d2", "year_d3", "year_d4", "year"},
			map[string]string{"Year-1": "x", "year_d1": "1", "year_d2": "9", "year_d3": "9", "year_d4": "9"}},
		{"unknown year key", []string{"Year-1", "Year-2", "Year-3", "Year-4", "Sale yr"},
			map[string]string{"YEAR": "abc", "Year-1": "x", "Sale yr": "N/A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Normalize(tt.fields, tt.raw)
			twice := Normalize(tt.fields, once)
			if !reflect.DeepEqual(once, twice) {
				t.Errorf("not idempotent\n once = %v\ntwice = %v", once, twice)
			}
		})
	}
}

func TestNormalize_IdempotentRandomized(t *testing.T) {
	pool := []string{
		"Year-1", "Year-2", "Year-3", "Year-4", "year_d1", "year_d2", "year_d3", "year_d4",
		"year", "Year", "Sale yr", "State yr", "date_month", "Month",
		"seller1_name", "seller2_name", "Print seller's name", "Seller print name 2",
		"Notes", "buyer_state",
	}
	unknown := []string{"YEAR", "sale_year", "Unknown"}
	values := []string{"", "x", "1999", "2025", " 2001", "7", "0", "March", "Bob", "abcd", "N/A"}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5000; i++ {
		var fields []string
		for _, f := range pool {
			if rng.Intn(2) == 0 {
				fields = append(fields, f)
			}
		}
		raw := make(map[string]string)
		for _, k := range append(append([]string(nil), fields...), unknown...) {
			if rng.Intn(5) < 2 {
				raw[k] = values[rng.Intn(len(values))]
			}
		}

		once := Normalize(fields, raw)
		twice := Normalize(fields, once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("not idempotent\nfields = %q\n   raw = %v\n  once = %v\n twice = %v", fields, raw, once, twice)
		}
	}
}

func TestNormalize_EndToEndScenario(t *testing.T) {
	fields := []string{"date_month", "year_d1", "year_d2", "year_d3", "year_d4", "seller1_name", "seller2_name"}
	raw := map[string]string{"date_month": "January", "year": "1999", "seller1_name": "Bob", "seller2_name": "Bob"}

	got := Normalize(fields, raw)
	want := map[string]string{
		"date_month": "01",
		"year_d1":    "1", "year_d2": "9", "year_d3": "9", "year_d4": "9",
		"seller1_name": "Bob",
		"seller2_name": "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Normalize() = %v, want %v", got, want)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	raw := map[string]string{"date_month": "March", "year": "2020"}
	_ = Normalize([]string{"date_month", "year_d1", "year_d2", "year_d3", "year_d4"}, raw)
	if raw["date_month"] != "March" || len(raw) != 2 {
		t.Errorf("input mutated: %v", raw)
	}
}
