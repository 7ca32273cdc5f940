package interview

import "unicode"

// isTerminal reports whether r ends a sentence.
func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// SplitSentences cuts the buffered text at every terminal punctuation
// mark followed by whitespace, returning the completed sentences and the
// unconsumed remainder. A buffer that itself ends in terminal
// punctuation is fully consumed; otherwise the trailing fragment is
// returned so the caller can carry it into the next chunk.
func SplitSentences(buffer string) ([]string, string) {
	var complete []string

	runes := []rune(buffer)
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		if !isTerminal(runes[i]) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		complete = append(complete, string(runes[start:i+1]))
		i++
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
		start = i + 1
	}

	tail := string(runes[start:])
	if tail != "" && isTerminal(runes[len(runes)-1]) {
		complete = append(complete, tail)
		tail = ""
	}
	return complete, tail
}
