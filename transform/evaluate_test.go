package transform

import (
	"encoding/json"
	"math"
	"testing"
)

func TestEvaluate_Variants(t *testing.T) {
	row := MapRow{
		"Vendor":  "Microsoft",
		"Code":    "42",
		"Price":   "12.50abc",
		"Part":    "a-b-c",
		"Empty":   "",
		"Date":    "10/10/2023",
		"Unicode": "straße",
	}
	cases := []struct {
		name string
		spec Spec
		want Value
	}{
		{"identity column", Identity("Vendor"), StringValue("Microsoft")},
		{"identity missing column", Identity("Nope"), Null()},
		{"identity literal", Identity(Literal("fixed")), StringValue("fixed")},
		{"identity empty literal", Identity("''"), StringValue("")},
		{"upper", Upper("Vendor"), StringValue("MICROSOFT")},
		{"upper full case mapping", Upper("Unicode"), StringValue("STRASSE")},
		{"lower", Lower("Vendor"), StringValue("microsoft")},
		{"lower missing", Lower("Nope"), StringValue("")},
		{"concat", Concat("Vendor", Literal(" / "), "Code"), StringValue("Microsoft / 42")},
		{"concat no args", Concat(), StringValue("")},
		{"concat missing column", Concat("Nope", "Code"), StringValue("42")},
		{"number", Number("Code"), NumberValue(42)},
		{"number leading prefix", Number("Price"), NumberValue(12.5)},
		{"number empty", Number("Empty"), Null()},
		{"number missing", Number("Nope"), Null()},
		{"number infinity", Number(Literal("Infinity")), Null()},
		{"padLeft", PadLeft("Code", "0", 5), StringValue("00042")},
		{"padLeft already long", PadLeft("Vendor", "0", 3), StringValue("Microsoft")},
		{"padLeft multi-char pad", PadLeft("Code", "ab", 5), StringValue("aba42")},
		{"padLeft empty pad", PadLeft("Code", "", 5), StringValue("42")},
		{"substring", Substring("Vendor", 0, 5), StringValue("Micro")},
		{"substring swapped", Substring("Vendor", 5, 0), StringValue("Micro")},
		{"substring clamped", Substring("Vendor", -3, 100), StringValue("Microsoft")},
		{"split", Split("Part", "-", 1), StringValue("b")},
		{"split out of range", Split("Part", "-", 5), StringValue("")},
		{"split negative", Split("Part", "-", -1), StringValue("")},
		{"split missing column", Split("Nope", "-", 0), StringValue("")},
		{"normalizeDate", NormalizeDate("Date"), StringValue("2023-10-10")},
		{"normalizeDate missing", NormalizeDate("Nope"), StringValue("")},
		{"unknown variant", Spec{Fn: "reverse", Sources: []string{"Vendor"}}, Null()},
	}
	for _, tc := range cases {
		got := Evaluate(row, tc.spec)
		if !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s %q, got %s %q", tc.name, tc.want.Kind(), tc.want, got.Kind(), got)
		}
	}
}

func TestEvaluate_NilRowNeverPanics(t *testing.T) {
	for _, fn := range []Fn{FnIdentity, FnUpper, FnLower, FnConcat, FnNumber, FnPadLeft, FnSubstring, FnSplit, FnNormalizeDate, "bogus"} {
		_ = Evaluate(nil, Spec{Fn: fn, Sources: []string{"x"}, Length: 3, Pad: "0", Index: 2, HasDelimiter: true})
	}
}

func TestNormalizeDateText_Fixtures(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"2023-10-10", "2023-10-10"},
		{"10/10/2023", "2023-10-10"},
		{"  10/10/2023  ", "2023-10-10"},
		{"1/2/23", "2023-01-02"},
		{"13/45/2023", "2023-13-45"},
		{"not a date", "not a date"},
		{"20240131", "2024-01-31"},
		{"1234567890", "1234567890"},
		{"1700000000000", "1700000000000"},
		{"123456", "123456"},
		{"  padded text  ", "padded text"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeDateText(tc.in); got != tc.expected {
			t.Fatalf("NormalizeDateText(%q) expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestSpec_UnmarshalJSON(t *testing.T) {
	var fm FieldMap
	raw := `{
		"Plant":    {"transform": {"fn": "padLeft", "args": ["WERKS", "0", 4]}},
		"Material": {"transform": {"fn": "upper", "args": ["MATNR"]}},
		"Year":     {"transform": {"fn": "substring", "args": ["BUDAT", "0", "4"]}},
		"Second":   {"transform": {"fn": "split", "args": ["Path", "/", 1.5]}},
		"Source":   {"transform": {"fn": "identity", "args": ["'SAP'"]}},
		"Later":    {"transform": {"fn": "someday", "args": [1, {"x": 2}]}},
		"Blank":    {}
	}`
	if err := json.Unmarshal([]byte(raw), &fm); err != nil {
		t.Fatalf("unmarshal field map: %v", err)
	}
	row := MapRow{"WERKS": "12", "MATNR": "abc", "BUDAT": "20240131", "Path": "a/b/c"}

	expect := map[string]Value{
		"Plant":    StringValue("0012"),
		"Material": StringValue("ABC"),
		"Year":     StringValue("2024"),
		"Second":   StringValue(""),
		"Source":   StringValue("SAP"),
		"Later":    Null(),
	}
	for col, want := range expect {
		got := Evaluate(row, *fm[col].Transform)
		if !got.Equal(want) {
			t.Fatalf("%s: expected %q, got %q", col, want, got)
		}
	}
	if fm["Blank"].Transform != nil {
		t.Fatalf("expected Blank to have no transform")
	}
}

func TestSpec_RejectsMalformedQuoting(t *testing.T) {
	bad := []string{
		`{"fn": "identity", "args": ["'unterminated"]}`,
		`{"fn": "concat", "args": ["A", "'"]}`,
		`{"fn": "upper", "args": []}`,
		`{"fn": "upper", "args": [5]}`,
		`{"fn": "padLeft", "args": ["A", "0", "wide"]}`,
	}
	for _, in := range bad {
		var s Spec
		if err := json.Unmarshal([]byte(in), &s); err == nil {
			t.Fatalf("expected %s to be rejected", in)
		}
	}

	// A token that only ends with a quote is still a column name.
	var s Spec
	if err := json.Unmarshal([]byte(`{"fn": "identity", "args": ["odd'"]}`), &s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := Evaluate(MapRow{"odd'": "x"}, s); got.String() != "x" {
		t.Fatalf("expected column lookup, got %q", got)
	}
}

func TestSpec_MarshalRoundTripKeepsSemantics(t *testing.T) {
	specs := []Spec{PadLeft("A", "0", 6), Substring("A", 1, 3), Split("A", ",", 2), Concat("A", Literal("-"), "B")}
	row := MapRow{"A": "x,y,z", "B": "w"}
	for _, s := range specs {
		b, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal %s: %v", s.Fn, err)
		}
		var back Spec
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if !Evaluate(row, s).Equal(Evaluate(row, back)) {
			t.Fatalf("%s changed meaning after round trip", b)
		}
	}
}

func TestValue_JSON(t *testing.T) {
	b, _ := json.Marshal([]Value{StringValue("a"), NumberValue(1.5), Null(), NumberValue(math.NaN())})
	if string(b) != `["a",1.5,null,null]` {
		t.Fatalf("unexpected encoding %s", b)
	}
	var v Value
	if err := json.Unmarshal([]byte(`{"x":1}`), &v); err == nil {
		t.Fatalf("expected object to be rejected")
	}
	if !StringValue("1").Equal(StringValue("1")) || StringValue("1").Equal(NumberValue(1)) {
		t.Fatalf("Equal must compare kind and value")
	}
}
