package analyzer

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/localsort-core/internal/config"
	"github.com/ziadkadry99/localsort-core/internal/modelruntime"
)

const systemPrompt = `You are a file organization assistant. Analyze the provided file and return a structured JSON response describing its category, suggested name, and content. Be precise and factual. Do not invent details that are not present in the file.`

const documentPromptTemplate = `Analyze this file and return a JSON object with exactly these fields:

{
  "category": "one of the smart folders below, or a short specific category if none fit",
  "suggestedName": "a concise descriptive filename without extension",
  "keywords": ["up to 7 keywords"],
  "confidence": 0,
  "summary": "1-3 sentence summary of the file's content",
  "purpose": "one sentence describing the file's role",
  "project": "project or context this file belongs to, if evident",
  "entity": "the primary person, company, or organization named in the file, if any",
  "documentType": "e.g. invoice, report, contract, letter, form",
  "keyEntities": ["up to 20 named people, companies, or places mentioned"],
  "date": "YYYY-MM-DD if a clear document date is present, else omit",
  "hasText": true
}

Smart folders (pick one by name if the content clearly belongs there):
%s

File path: %s
%s
` + "```\n%s\n```"

const imagePromptTemplate = `Analyze this image and return a JSON object with exactly these fields:

{
  "category": "one of the smart folders below, or a short specific category if none fit",
  "suggestedName": "a concise descriptive filename without extension",
  "keywords": ["up to 7 keywords"],
  "confidence": 0,
  "summary": "1-3 sentence description of what the image shows",
  "purpose": "one sentence describing the image's likely use",
  "contentType": "one of: text_document, photograph, screenshot, other",
  "colors": ["up to 5 dominant colors as hex codes"],
  "hasText": false,
  "documentType": "e.g. receipt, form, screenshot, photo",
  "keyEntities": ["up to 20 named people, companies, or places visible"],
  "date": "YYYY-MM-DD if a clear date is visible, else omit"
}

Smart folders (pick one by name if the image clearly belongs there):
%s
%s
File path: %s
`

const fallbackPromptTemplate = `Summarize this file in 1-2 sentences and suggest a short filename. Return JSON: {"summary": "...", "suggestedName": "...", "category": "..."}

File path: %s

` + "```\n%s\n```"

// buildFolderList renders the smart-folder catalog the prompt lists,
// capped so the prompt stays bounded regardless of how many folders
// are configured.
func buildFolderList(folders []config.SmartFolder) string {
	const maxFolders = 20
	if len(folders) == 0 {
		return "(none configured)"
	}
	lines := make([]string, 0, len(folders))
	for i, f := range folders {
		if i >= maxFolders {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", f.Name, f.Description))
	}
	return strings.Join(lines, "\n")
}

// buildDocumentMessages constructs the text-analysis prompt. languageHint
// is the source-code language a directory walk detected for path, if
// any ("" for single-file analysis or non-source files).
func buildDocumentMessages(path, content string, folders []config.SmartFolder, languageHint string) []modelruntime.Message {
	hintLine := ""
	if languageHint != "" {
		hintLine = fmt.Sprintf("Detected source language: %s.", languageHint)
	}
	userPrompt := fmt.Sprintf(documentPromptTemplate, buildFolderList(folders), path, hintLine, content)
	return []modelruntime.Message{
		{Role: modelruntime.RoleSystem, Content: systemPrompt},
		{Role: modelruntime.RoleUser, Content: userPrompt},
	}
}

// buildImagePrompt constructs the image-analysis prompt text. ocrSnippet
// is the grounding text produced by the OCR pre-pass, if any.
func buildImagePrompt(path string, folders []config.SmartFolder, ocrSnippet string) string {
	ocrBlock := ""
	if ocrSnippet != "" {
		ocrBlock = fmt.Sprintf("\nText detected in the image via OCR:\n%s\n", ocrSnippet)
	}
	return fmt.Sprintf(imagePromptTemplate, buildFolderList(folders), ocrBlock, path)
}

// buildFallbackMessages constructs the simplified retry-after-parse-failure prompt.
func buildFallbackMessages(path, content string) []modelruntime.Message {
	userPrompt := fmt.Sprintf(fallbackPromptTemplate, path, content)
	return []modelruntime.Message{
		{Role: modelruntime.RoleSystem, Content: systemPrompt},
		{Role: modelruntime.RoleUser, Content: userPrompt},
	}
}
