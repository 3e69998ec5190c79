// Package rag implements the per-job retrieval store: paragraph chunking,
// a flat unit-normalized vector index with exact similarity search, and a
// keyword-overlap degradation path when no embedder is available.
package rag

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the soft character cap per chunk.
const DefaultChunkSize = 1000

var blankLines = regexp.MustCompile(`\n[ \t]*\n`)

// SplitChunks splits text on blank lines into paragraphs and greedily merges
// consecutive paragraphs into chunks of up to maxChars characters. A
// paragraph is never split, even when it alone exceeds the cap.
func SplitChunks(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultChunkSize
	}

	var paragraphs []string
	for _, p := range blankLines.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	current := paragraphs[0]
	for _, p := range paragraphs[1:] {
		if len(current)+2+len(p) <= maxChars {
			current += "\n\n" + p
			continue
		}
		chunks = append(chunks, current)
		current = p
	}
	chunks = append(chunks, current)
	return chunks
}
