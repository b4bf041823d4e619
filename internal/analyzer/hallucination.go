package analyzer

import (
	"path/filepath"
	"strings"
)

// filenameWithoutExt returns the base filename, extension stripped,
// the unit hallucination validation matches its term lists against.
func filenameWithoutExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// validateHallucination penalizes or overrides a result when the
// filename or OCR text contradicts what the model returned.
func validateHallucination(result *AnalysisResult, filePath, ocrText string) {
	filename := filenameWithoutExt(filePath)
	isFinancialFilename := containsAnyTerm(filename, financialTerms)
	isDocumentFilename := containsAnyTerm(filename, documentTerms)
	isLandscapeSuggestion := containsAnyTerm(result.SuggestedName, landscapeTerms) ||
		containsAnyTerm(result.Category, landscapeTerms)
	filenameHasLandscapeTerm := containsAnyTerm(filename, landscapeTerms)

	overridden := false

	// Rule: financial filename + landscape suggestion + no landscape
	// hint in the filename itself => force override, confidence <= 25.
	if isFinancialFilename && isLandscapeSuggestion && !filenameHasLandscapeTerm {
		applyFilenameOverride(result, filename, 25)
		overridden = true
	}

	// Rule: document filename + landscape suggestion => force override,
	// confidence <= 30.
	if !overridden && isDocumentFilename && isLandscapeSuggestion {
		applyFilenameOverride(result, filename, 30)
		overridden = true
	}

	// Rule: OCR text with money markers + landscape suggestion =>
	// override, confidence <= 20.
	if !overridden && isLandscapeSuggestion && containsAnyTerm(ocrText, []string{"$", "total", "amount"}) {
		applyFilenameOverride(result, filename, 20)
		overridden = true
	}

	// Rule: financial filename with no financial stem in keywords =>
	// penalize confidence, inject filename terms into keywords.
	if isFinancialFilename && !containsAnyStem(result.Keywords, financialStems) {
		result.Confidence -= 20
		if result.Confidence < 0 {
			result.Confidence = 0
		}
		result.Keywords = injectFilenameTerms(result.Keywords, filename, financialTerms)
	}

	// Rule: generic AI category + a specific filename-derived category
	// available => replace with filename_fallback.
	if !overridden && isGenericCategory(result.Category) {
		if fallback := filenameFallbackCategory(filename); fallback != "" {
			result.LLMOriginalCategory = result.Category
			result.Category = fallback
			result.CategorySource = SourceFilenameFallback
		}
	}

	result.HallucinationDetected = overridden
}

// applyFilenameOverride replaces the suggested name and category with
// filename-derived values and caps confidence, per step 11's forced
// overrides.
func applyFilenameOverride(result *AnalysisResult, filename string, maxConfidence int) {
	result.LLMOriginalCategory = result.Category
	result.SuggestedName = filename
	if fallback := filenameFallbackCategory(filename); fallback != "" {
		result.Category = fallback
	}
	result.CategorySource = SourceFilenameFinancial
	if result.Confidence > maxConfidence {
		result.Confidence = maxConfidence
	}
}

// injectFilenameTerms appends the financial terms found in filename to
// keywords, de-duplicating and capping at 7.
func injectFilenameTerms(keywords []string, filename string, terms []string) []string {
	lower := strings.ToLower(filename)
	merged := make([]string, len(keywords))
	copy(merged, keywords)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			merged = append(merged, t)
		}
	}
	return dedupKeywords(merged)
}
