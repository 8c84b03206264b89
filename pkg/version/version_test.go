package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  RelayVersion
	}{
		{"1.0", RelayVersion{1, 0, 0}},
		{"1.2.3", RelayVersion{1, 2, 3}},
		{"v2.0.1", RelayVersion{2, 0, 1}},
		{"10.23", RelayVersion{10, 23, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, v, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{"", "1", "abc", "1.0.0.0", "1.x", "-1.0", "1..2"} {
		t.Run(input, func(t *testing.T) {
			if _, err := Parse(input); err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestCurrentParses(t *testing.T) {
	v := MustCurrent()
	if v.String() != Current {
		t.Errorf("String() = %q, want %q", v.String(), Current)
	}
}

func TestCompatible(t *testing.T) {
	a, _ := Parse("1.2.0")
	b, _ := Parse("1.9.4")
	c, _ := Parse("2.0.0")

	if !a.Compatible(b) {
		t.Error("1.2.0 should be compatible with 1.9.4")
	}
	if a.Compatible(c) {
		t.Error("1.2.0 should not be compatible with 2.0.0")
	}
	if !a.Less(b) || b.Less(a) || !b.Less(c) {
		t.Error("ordering is wrong")
	}
}

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		advertised string
		want       bool
		wantErr    bool
	}{
		{"", true, false},
		{Current, true, false},
		{"99.0.0", false, false},
		{"nope", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.advertised, func(t *testing.T) {
			got, err := CheckCompatible(tt.advertised)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CheckCompatible(%q) = %v, want %v", tt.advertised, got, tt.want)
			}
		})
	}
}
