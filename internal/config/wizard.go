package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to localsort! Let's configure your file organizer.")
	fmt.Println()

	cfg := DefaultConfig()

	backendPrompt := promptui.Select{
		Label: "Select model runtime backend",
		Items: []string{"ollama", "anthropic", "openai", "google"},
	}
	_, backendStr, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend selection: %w", err)
	}
	cfg.Backend = Backend(backendStr)

	textModelPrompt := promptui.Prompt{
		Label:   "Text analysis model",
		Default: cfg.TextModel,
	}
	textModel, err := textModelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("text model: %w", err)
	}
	cfg.TextModel = textModel

	visionModelPrompt := promptui.Prompt{
		Label:   "Vision (image) analysis model",
		Default: cfg.VisionModel,
	}
	visionModel, err := visionModelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vision model: %w", err)
	}
	cfg.VisionModel = visionModel

	embeddingModelPrompt := promptui.Prompt{
		Label:   "Embedding model",
		Default: cfg.EmbeddingModel,
	}
	embeddingModel, err := embeddingModelPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding model: %w", err)
	}
	cfg.EmbeddingModel = embeddingModel

	if cfg.Backend == BackendOllama {
		hostPrompt := promptui.Prompt{
			Label:   "Ollama host",
			Default: cfg.OllamaHost,
		}
		host, err := hostPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("ollama host: %w", err)
		}
		cfg.OllamaHost = host
	}

	timingPrompt := promptui.Select{
		Label: "When should analyzed files be embedded?",
		Items: []string{string(TimingDuringAnalysis), string(TimingAfterOrganize), string(TimingManual)},
	}
	_, timingStr, err := timingPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding timing: %w", err)
	}
	cfg.EmbeddingTiming = EmbeddingTiming(timingStr)

	includePrompt := promptui.Prompt{
		Label:   "Include patterns (comma-separated globs)",
		Default: "**",
	}
	includeStr, err := includePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("include patterns: %w", err)
	}
	cfg.Include = splitAndTrim(includeStr)

	excludePrompt := promptui.Prompt{
		Label:   "Extra exclude patterns (comma-separated, leave blank for defaults)",
		Default: "",
	}
	excludeStr, err := excludePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("exclude patterns: %w", err)
	}
	exclude := DefaultExcludes
	if excludeStr != "" {
		exclude = append(exclude, splitAndTrim(excludeStr)...)
	}
	cfg.Exclude = exclude

	addFolder := promptui.Prompt{Label: "Add a smart folder now", IsConfirm: true}
	for {
		if _, err := addFolder.Run(); err != nil {
			break
		}
		folder, err := promptSmartFolder()
		if err != nil {
			return nil, err
		}
		cfg.SmartFolders = append(cfg.SmartFolders, folder)
	}

	envVar := APIKeyEnvVar(cfg.Backend)
	if envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: set %s in your environment before running localsort analyze.\n", envVar)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating wizard config: %w", err)
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func promptSmartFolder() (SmartFolder, error) {
	namePrompt := promptui.Prompt{Label: "Folder name"}
	name, err := namePrompt.Run()
	if err != nil {
		return SmartFolder{}, fmt.Errorf("folder name: %w", err)
	}

	pathPrompt := promptui.Prompt{Label: "Folder path"}
	path, err := pathPrompt.Run()
	if err != nil {
		return SmartFolder{}, fmt.Errorf("folder path: %w", err)
	}

	descPrompt := promptui.Prompt{Label: "Folder description (what belongs here)"}
	desc, err := descPrompt.Run()
	if err != nil {
		return SmartFolder{}, fmt.Errorf("folder description: %w", err)
	}

	return SmartFolder{
		ID:          uuid.NewString(),
		Name:        name,
		Path:        path,
		Description: desc,
	}, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace
// from each token, dropping empty tokens.
func splitAndTrim(s string) []string {
	var result []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			token := trimSpace(s[start:i])
			if token != "" {
				result = append(result, token)
			}
			start = i + 1
		}
	}
	return result
}

func trimSpace(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
