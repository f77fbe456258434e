package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/twin/internal/narrative"
	"github.com/Yates-Labs/twin/internal/orchestrator"
)

var (
	topK    int
	verbose bool
	stream  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the twin a question from the terminal",
	Long: `Ask a natural language question about the profile using RAG (Retrieval-Augmented Generation).

This command:
1. Embeds your question
2. Retrieves the most relevant profile snippets from the vector index
3. Generates an answer with the chat model, using the snippets as context

Required environment variables:
  OPENAI_API_KEY             - embedding provider API key
  UPSTASH_VECTOR_REST_URL    - vector index URL (Milvus address with VECTOR_BACKEND=milvus)
  UPSTASH_VECTOR_REST_TOKEN  - vector index token
  GROQ_API_KEY               - chat provider API key

Examples:
  twin ask "What is your experience with distributed systems?"
  twin ask "Which languages do you use most?" --topk 5 --verbose
  twin ask "Tell me about your last project" --stream`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().IntVar(&topK, "topk", 0, "Number of profile snippets to retrieve (default: RAG_TOP_K or 3)")
	askCmd.Flags().BoolVar(&verbose, "verbose", false, "Show retrieved context and pipeline progress")
	askCmd.Flags().BoolVar(&stream, "stream", false, "Print the answer as it is generated")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger := cliLogger(verbose)
	defer func() { _ = logger.Sync() }()

	pipelineCfg := orchestrator.DefaultPipelineConfig()
	pipelineCfg.Logger = logger
	pipeline := orchestrator.NewPipeline(pipelineCfg)

	// Print question
	fmt.Println()
	fmt.Println(headerStyle.Render("Question:"))
	fmt.Println(accentStyle.Render(question))
	fmt.Println()

	if stream {
		fmt.Println(headerStyle.Render("Answer:"))
		fmt.Println()
		return streamAnswer(ctx, pipeline, question)
	}

	if verbose {
		fmt.Println(mutedStyle.Render("→ Retrieving context and generating answer..."))
	}

	result, err := pipeline.AnswerWithContext(ctx, question, topK)
	if err != nil {
		return err
	}

	if verbose {
		printContext(result)
	}

	fmt.Println(headerStyle.Render("Answer:"))
	fmt.Println()
	fmt.Println(textStyle.Render(strings.TrimSpace(result.Answer)))
	fmt.Println()
	return nil
}

func printContext(result orchestrator.Result) {
	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Retrieved %d snippets", len(result.Matches))))
	for _, m := range result.Matches {
		fmt.Println(mutedStyle.Render(fmt.Sprintf("  %.3f  %s  %s", m.Score, m.ID, m.Metadata.Title)))
	}
	if result.Context != "" {
		fmt.Println()
		fmt.Println(headerStyle.Render("Context:"))
		fmt.Println(mutedStyle.Render(result.Context))
	}
	fmt.Println()
}

// streamAnswer prints fragments as they arrive. The streamed path answers
// from the persona alone when retrieval is unavailable.
func streamAnswer(ctx context.Context, pipeline *orchestrator.Pipeline, question string) error {
	fragments, err := pipeline.AnswerStream(ctx, []narrative.Message{
		{Role: narrative.RoleUser, Content: question},
	})
	if err != nil {
		return err
	}

	for frag := range fragments {
		if frag.Err != nil {
			fmt.Println()
			return frag.Err
		}
		fmt.Print(textStyle.Render(frag.Text))
	}
	fmt.Println()
	fmt.Println()
	return nil
}
