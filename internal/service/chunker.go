package service

import (
	"strings"
	"unicode"
)

// ChunkDraft is a chunk before persistence: position and content only.
type ChunkDraft struct {
	Index      int
	Content    string
	TokenCount int
}

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 160
)

// ChunkText splits normalized text into a fixed-size sliding window with the
// given overlap, both measured in runes. Window ends prefer paragraph and
// sentence breaks when one falls within the snap tolerance; indices are
// contiguous from 0 and fixed at chunking time.
func ChunkText(input string, size, overlap int) []ChunkDraft {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	tolerance := size / 5

	runes := []rune(text)
	var chunks []ChunkDraft
	start := 0
	index := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = snapBoundary(runes, start, end, tolerance)
		}
		content := strings.TrimRightFunc(string(runes[start:end]), unicode.IsSpace)
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, ChunkDraft{
				Index:      index,
				Content:    content,
				TokenCount: estimateTokens(content),
			})
			index++
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// snapBoundary moves the window end back to the nearest paragraph break,
// sentence end or whitespace, but never further than the tolerance.
func snapBoundary(runes []rune, start, end, tolerance int) int {
	low := end - tolerance
	if low <= start {
		low = start + 1
	}
	for i := end - 1; i >= low; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= low; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	for i := end - 1; i >= low; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}

// estimateTokens counts words for latin text plus one token per non-ascii
// rune, a cheap approximation that tracks provider tokenizers closely enough
// for budgeting.
func estimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
