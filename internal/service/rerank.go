package service

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/esgpipe/esgpipe/internal/model"
)

const (
	phraseMatchBonus  = 0.10
	termOverlapBonus  = 0.05
	schemaTagBonus    = 0.02
	longChunkRunes    = 1600
	defaultLenPenalty = 0.03
)

func queryTerms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// rerankResults blends lexical signals on top of the vector score. The rules
// are pure functions of query and chunk text, so reranking the same
// candidates always yields the same order.
func rerankResults(query string, results []model.SearchResult, lengthPenalty float64) []model.SearchResult {
	if len(results) == 0 {
		return results
	}
	if lengthPenalty <= 0 {
		lengthPenalty = defaultLenPenalty
	}
	terms := queryTerms(query)
	loweredQuery := strings.ToLower(strings.TrimSpace(query))

	type ranked struct {
		model.SearchResult
		vecRank int
	}
	items := make([]ranked, 0, len(results))
	for i, res := range results {
		score := res.VectorScore
		lowered := strings.ToLower(res.Content)
		if loweredQuery != "" && strings.Contains(lowered, loweredQuery) {
			score += phraseMatchBonus
		}
		if len(terms) > 0 {
			matched := 0
			for _, term := range terms {
				if strings.Contains(lowered, term) {
					matched++
				}
			}
			score += termOverlapBonus * float64(matched) / float64(len(terms))
		}
		if len(res.SchemaElements) > 0 {
			score += schemaTagBonus
		}
		if utf8.RuneCountInString(res.Content) > longChunkRunes {
			score -= lengthPenalty
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		res.Score = score
		items = append(items, ranked{SearchResult: res, vecRank: i})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].vecRank != items[j].vecRank {
			return items[i].vecRank < items[j].vecRank
		}
		return items[i].ChunkIndex < items[j].ChunkIndex
	})
	out := make([]model.SearchResult, 0, len(items))
	for _, item := range items {
		out = append(out, item.SearchResult)
	}
	return out
}
