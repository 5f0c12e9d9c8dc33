package service

import (
	"reflect"
	"testing"
)

func TestClassifyChunk(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name:    "emissions and targets",
			content: "Our Scope 1 emissions baseline supports the net zero target for 2040.",
			want:    []string{"emissions", "targets"},
		},
		{
			name:    "governance only",
			content: "The board committee reviews oversight procedures quarterly.",
			want:    []string{"governance"},
		},
		{
			name:    "disclosure framework",
			content: "Prepared in accordance with CSRD and the ESRS standards.",
			want:    []string{"disclosure"},
		},
		{
			name:    "no match",
			content: "The quick brown fox jumps over the lazy dog.",
			want:    nil,
		},
		{
			name:    "case insensitive",
			content: "WASTEWATER discharge volumes and RECYCLING rates improved.",
			want:    []string{"waste", "water"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyChunk(tc.content)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyChunkDeterministic(t *testing.T) {
	content := "Water withdrawal, waste recycling, employee diversity and audit oversight."
	first := ClassifyChunk(content)
	for i := 0; i < 10; i++ {
		if got := ClassifyChunk(content); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, got, first)
		}
	}
}
