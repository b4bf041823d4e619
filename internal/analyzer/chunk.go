package analyzer

import "strings"

// splitExtractedText splits extracted text into chunks bounded by
// maxChars, breaking on line boundaries where possible (a token-budget
// line accumulator, generalized from source-code chunking to
// extracted-document text).
func splitExtractedText(content string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = 4000
	}
	if len(content) <= maxChars {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []string{content}
	}

	lines := strings.Split(content, "\n")
	var chunks []string
	var current []string
	currentLen := 0

	for _, line := range lines {
		lineLen := len(line) + 1
		if currentLen+lineLen > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = nil
			currentLen = 0
		}
		current = append(current, line)
		currentLen += lineLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}
