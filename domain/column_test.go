package domain

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want Column
	}{
		{"", Todo},
		{"todo", Todo},
		{"TO_DO", Todo},
		{"backlog", Todo},
		{"not-started", Todo},
		{"NOT_STARTED", Todo},
		{"weird-custom-value", Todo},
		{"progress", InProgress},
		{"doing", InProgress},
		{"in-progress", InProgress},
		{"inprogress", InProgress},
		{"IN_PROGRESS", InProgress},
		{"In Progress", InProgress},
		{"  in progress  ", InProgress},
		{"done", Done},
		{"DONE", Done},
		{"completed", Done},
		{"complete", Done},
		{"COMPLETED", Done},
		{"Completed", Done},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Fatalf("Normalize(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeIsIdempotentOverCanonicalValues(t *testing.T) {
	inputs := []string{"", "doing", "COMPLETED", "whatever", "In Progress", "todo"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(string(once))
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %s then %s", in, once, twice)
		}
		if !once.Valid() {
			t.Fatalf("Normalize(%q) returned non canonical %q", in, once)
		}
	}
}

func TestParseColumn(t *testing.T) {
	if c, ok := ParseColumn("In-Progress"); !ok || c != InProgress {
		t.Fatalf("ParseColumn(In-Progress) = %q, %v", c, ok)
	}
	if c, ok := ParseColumn("TODO"); !ok || c != Todo {
		t.Fatalf("ParseColumn(TODO) = %q, %v", c, ok)
	}
	if _, ok := ParseColumn("doing"); ok {
		t.Fatalf("expected synonyms to be rejected by ParseColumn")
	}
}
