package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. The caller decides where to save it.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to docpipe! Let's configure your pipeline worker.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Embedding provider.
	providerPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{"openai", "mock"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.EmbeddingProvider = ProviderType(providerStr)

	// 2. Embedding model.
	if cfg.EmbeddingProvider == ProviderOpenAI {
		modelPrompt := promptui.Select{
			Label: "Select embedding model",
			Items: []string{"text-embedding-3-small", "text-embedding-3-large"},
		}
		_, model, err := modelPrompt.Run()
		if err != nil {
			return nil, fmt.Errorf("model selection: %w", err)
		}
		cfg.EmbeddingModel = model
	}

	// 3. Task engine URL.
	enginePrompt := promptui.Prompt{
		Label:   "Task engine base URL",
		Default: cfg.Worker.EngineURL,
	}
	engineURL, err := enginePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("engine URL: %w", err)
	}
	cfg.Worker.EngineURL = engineURL

	// 4. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory",
		Default: cfg.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = dataDir

	// 5. Chunk target size.
	sizePrompt := promptui.Prompt{
		Label:   "Chunk target size (characters)",
		Default: strconv.Itoa(cfg.Chunking.TargetSize),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return fmt.Errorf("must be a positive integer")
			}
			return nil
		},
	}
	sizeStr, err := sizePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("chunk size: %w", err)
	}
	cfg.Chunking.TargetSize, _ = strconv.Atoi(sizeStr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("resulting config invalid: %w", err)
	}

	return cfg, nil
}
