package analyzer

import "strings"

// financialTerms hint that a filename concerns money: invoices,
// receipts, budgets, statements, taxes. Used by the OCR pre-pass
// trigger (step 6) and hallucination validation (step 11).
var financialTerms = []string{
	"invoice", "receipt", "budget", "financial", "statement", "tax",
	"expense", "payment", "bill", "billing", "account", "ledger",
}

// financialStems are the stem forms checked against keywords, a
// subset of financialTerms that commonly appear as word stems rather
// than whole filename tokens.
var financialStems = []string{
	"invoice", "receipt", "budget", "financ", "statement", "tax",
	"expense", "payment", "bill", "account",
}

// documentTerms hint that a filename concerns a textual document
// (reports, forms, contracts) without necessarily being financial.
var documentTerms = []string{
	"report", "document", "form", "contract", "letter", "memo",
	"agreement", "proposal",
}

// landscapeTerms hint that the suggested name or category describes a
// scenic photograph, the false-positive the hallucination rules guard
// against.
var landscapeTerms = []string{
	"mountain", "sunset", "sunrise", "beach", "landscape", "ocean",
	"forest", "lake", "valley", "skyline", "horizon", "scenery",
}

// ocrHintTerms are filename substrings that trigger the OCR pre-pass
// for images.
var ocrHintTerms = []string{
	"report", "document", "invoice", "receipt", "form", "screenshot",
	"budget", "financial", "statement", "tax",
}

func containsAnyTerm(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func containsAnyStem(words []string, stems []string) bool {
	for _, w := range words {
		lower := strings.ToLower(w)
		for _, stem := range stems {
			if strings.Contains(lower, stem) {
				return true
			}
		}
	}
	return false
}

// genericCategories are categories too vague to stand as a final
// answer on their own.
var genericCategories = map[string]bool{
	"documents": true,
	"files":     true,
	"work":      true,
	"general":   true,
	"other":     true,
	"misc":      true,
}

func isGenericCategory(category string) bool {
	return genericCategories[strings.ToLower(strings.TrimSpace(category))]
}

// supportedExtensions gates step 1: extensions the analyzer knows how
// to handle at all, across both orchestrator flavors.
var supportedExtensions = map[string]bool{
	".txt": true, ".md": true, ".pdf": true, ".doc": true, ".docx": true,
	".rtf": true, ".csv": true, ".json": true, ".xml": true, ".html": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".webp": true, ".tiff": true, ".heic": true,
}

func isSupportedExtension(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// filenameCategoryHints maps a filename term to a specific category, used
// by step 11's filename_fallback when the AI category is generic.
var filenameCategoryHints = []struct {
	terms    []string
	category string
}{
	{financialTerms, "Finance"},
	{documentTerms, "Documents"},
	{[]string{"photo", "img", "picture", "camera"}, "Photos"},
	{[]string{"screenshot", "screen shot", "screencap"}, "Screenshots"},
}

// filenameFallbackCategory returns the most specific category a
// filename suggests, or "" if none of the known hints match.
func filenameFallbackCategory(filename string) string {
	for _, hint := range filenameCategoryHints {
		if containsAnyTerm(filename, hint.terms) {
			return hint.category
		}
	}
	return ""
}
