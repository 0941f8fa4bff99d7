// Command listmodels writes the names of the models available to the
// configured Gemini API key to models_log.txt.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const outputFile = "models_log.txt"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is not set in the environment")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GenAI client")
	}
	defer client.Close()

	var out strings.Builder
	out.WriteString("Available Models:\n")
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			out.Reset()
			fmt.Fprintf(&out, "Error: %v\n", err)
			break
		}
		fmt.Fprintf(&out, "- %s\n", m.Name)
	}

	if err := os.WriteFile(outputFile, []byte(out.String()), 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write model list")
	}
	log.Info().Str("file", outputFile).Msg("Model list written")
}
