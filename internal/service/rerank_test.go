package service

import (
	"reflect"
	"strings"
	"testing"

	"github.com/esgpipe/esgpipe/internal/model"
)

func TestRerankPhraseMatchWins(t *testing.T) {
	results := []model.SearchResult{
		{ChunkID: "a", ChunkIndex: 0, VectorScore: 0.80, Content: "General discussion of reporting practices."},
		{ChunkID: "b", ChunkIndex: 1, VectorScore: 0.78, Content: "The scope 3 emissions inventory covers purchased goods."},
	}
	ranked := rerankResults("scope 3 emissions", results, 0)
	if ranked[0].ChunkID != "b" {
		t.Fatalf("expected exact phrase match first, got %s", ranked[0].ChunkID)
	}
	if ranked[0].Score <= ranked[0].VectorScore {
		t.Fatal("phrase match should raise the score above the vector score")
	}
}

func TestRerankTermOverlapProportional(t *testing.T) {
	results := []model.SearchResult{
		{ChunkID: "none", VectorScore: 0.5, Content: "unrelated text entirely"},
		{ChunkID: "half", VectorScore: 0.5, Content: "the water policy"},
		{ChunkID: "full", VectorScore: 0.5, Content: "water withdrawal figures"},
	}
	ranked := rerankResults("water withdrawal", results, 0)
	if ranked[0].ChunkID != "full" || ranked[1].ChunkID != "half" || ranked[2].ChunkID != "none" {
		t.Fatalf("unexpected order: %s %s %s", ranked[0].ChunkID, ranked[1].ChunkID, ranked[2].ChunkID)
	}
}

func TestRerankSchemaTagBonus(t *testing.T) {
	results := []model.SearchResult{
		{ChunkID: "plain", VectorScore: 0.6, Content: "zzz"},
		{ChunkID: "tagged", VectorScore: 0.6, Content: "zzz", SchemaElements: []string{"emissions"}},
	}
	ranked := rerankResults("unmatched query", results, 0)
	if ranked[0].ChunkID != "tagged" {
		t.Fatalf("expected tagged chunk first, got %s", ranked[0].ChunkID)
	}
}

func TestRerankLengthPenalty(t *testing.T) {
	long := strings.Repeat("filler text without signal ", 70)
	results := []model.SearchResult{
		{ChunkID: "long", VectorScore: 0.6, Content: long},
		{ChunkID: "short", VectorScore: 0.6, Content: "short chunk"},
	}
	ranked := rerankResults("unmatched query", results, 0.03)
	if ranked[0].ChunkID != "short" {
		t.Fatalf("expected short chunk first, got %s", ranked[0].ChunkID)
	}
	if ranked[1].Score >= 0.6 {
		t.Fatalf("length penalty not applied: %f", ranked[1].Score)
	}
}

func TestRerankScoreClamped(t *testing.T) {
	results := []model.SearchResult{
		{ChunkID: "hot", VectorScore: 0.99, Content: "net zero targets for net zero planning", SchemaElements: []string{"targets"}},
	}
	ranked := rerankResults("net zero targets", results, 0)
	if ranked[0].Score > 1 || ranked[0].Score < 0 {
		t.Fatalf("score out of range: %f", ranked[0].Score)
	}
	if ranked[0].Score != 1 {
		t.Fatalf("expected clamp to 1, got %f", ranked[0].Score)
	}
}

func TestRerankTiesKeepVectorOrder(t *testing.T) {
	results := []model.SearchResult{
		{ChunkID: "first", ChunkIndex: 9, VectorScore: 0.7, Content: "same text"},
		{ChunkID: "second", ChunkIndex: 1, VectorScore: 0.7, Content: "same text"},
	}
	ranked := rerankResults("no overlap here", results, 0)
	if ranked[0].ChunkID != "first" {
		t.Fatal("equal scores must preserve vector rank order")
	}
}

func TestRerankDeterministic(t *testing.T) {
	results := []model.SearchResult{
		{ChunkID: "a", ChunkIndex: 0, VectorScore: 0.71, Content: "emissions data for scope 2"},
		{ChunkID: "b", ChunkIndex: 1, VectorScore: 0.72, Content: "energy consumption overview"},
		{ChunkID: "c", ChunkIndex: 2, VectorScore: 0.70, Content: "scope 2 emissions methodology"},
	}
	first := rerankResults("scope 2 emissions", results, 0)
	for i := 0; i < 5; i++ {
		if got := rerankResults("scope 2 emissions", results, 0); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d produced a different order", i)
		}
	}
}
