// file: internal/session/chunker.go
package session

import "unicode/utf8"

// DefaultChunkSize is the byte budget per chunk frame payload when the
// configuration does not override it. Boundaries are chosen by size, never by
// semantic content.
const DefaultChunkSize = 4096

// splitChunks slices text into payloads of at most size bytes without ever
// splitting a UTF-8 rune across a boundary. Empty text yields no chunks; the
// terminal frame alone signals completion.
func splitChunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}

	var chunks []string
	start := 0
	current := 0
	for current < len(text) {
		_, width := utf8.DecodeRuneInString(text[current:])
		if current+width-start > size && current > start {
			chunks = append(chunks, text[start:current])
			start = current
		}
		current += width
	}
	chunks = append(chunks, text[start:])
	return chunks
}
