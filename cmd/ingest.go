package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Yates-Labs/twin/internal/orchestrator"
	"github.com/Yates-Labs/twin/internal/rag"
)

var (
	exportFile string
	dryRun     bool
	batchSize  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [profile]",
	Short: "Chunk a profile document and load it into the vector index",
	Long: `Ingest a profile document (JSON or YAML) into the vector index.

The profile is split into titled chunks:
- Personal Info (one chunk)
- Education (one chunk per entry)
- Skills (core skills, then one chunk per other skill group)
- Experience and Projects (one chunk per entry)

Each chunk is embedded and upserted with id chunk_<n> and {title, content}
metadata, so re-ingesting the same profile replaces earlier entries.

Examples:
  twin ingest profile.json
  twin ingest profile.yaml --export chunks.json --dry-run
  twin ingest profile.json --batch-size 8`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&exportFile, "export", "", "Export chunks to JSON file: --export <filename>")
	ingestCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Chunk and display the profile without embedding or upserting")
	ingestCmd.Flags().IntVar(&batchSize, "batch-size", rag.DefaultIndexOptions().BatchSize, "Number of chunks per embedding request")
	ingestCmd.Flags().BoolVar(&verbose, "verbose", false, "Show pipeline progress")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	chunks, err := orchestrator.LoadChunks(args[0])
	if err != nil {
		return fmt.Errorf("failed to read profile: %w", err)
	}

	// Handle export flag
	if exportFile != "" {
		if err := handleExport(chunks, exportFile); err != nil {
			return err
		}
	}

	outputTable(chunks)

	if dryRun {
		fmt.Println(mutedStyle.Render("Dry run: nothing was written to the index"))
		return nil
	}

	logger := cliLogger(verbose)
	defer func() { _ = logger.Sync() }()

	pipelineCfg := orchestrator.DefaultPipelineConfig()
	pipelineCfg.Logger = logger
	pipeline := orchestrator.NewPipeline(pipelineCfg)

	bar := progressbar.NewOptions(len(chunks),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Indexing[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	written, err := pipeline.Ingest(ctx, chunks, rag.IndexOptions{
		BatchSize: batchSize,
		Progress: func(written, total int) {
			_ = bar.Set(written)
		},
	})
	if err != nil {
		return fmt.Errorf("ingestion stopped after %d of %d chunks: %w", written, len(chunks), err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Indexed %d chunks", written)))
	return nil
}

func handleExport(chunks []rag.Chunk, filename string) error {
	// Create output file
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	// Export chunks as JSON
	if err := rag.ExportChunks(chunks, "json", file); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("✓ Exported %d chunks to %s", len(chunks), filename)))
	return nil
}

func outputTable(chunks []rag.Chunk) {
	// Column widths
	const (
		idWidth      = 12
		titleWidth   = 28
		charsWidth   = 8
		previewWidth = 48
	)

	cellHeader := headerStyle.Padding(0, 1)
	borderStyle := lipgloss.NewStyle().Foreground(mutedColor)

	// Print header
	headers := []string{
		cellHeader.Width(idWidth).Render("CHUNK"),
		cellHeader.Width(titleWidth).Render("TITLE"),
		cellHeader.Width(charsWidth).Render("CHARS"),
		cellHeader.Width(previewWidth).Render("PREVIEW"),
	}
	fmt.Println(strings.Join(headers, borderStyle.Render("│")))

	separatorParts := []string{
		strings.Repeat("─", idWidth),
		strings.Repeat("─", titleWidth),
		strings.Repeat("─", charsWidth),
		strings.Repeat("─", previewWidth),
	}
	fmt.Println(borderStyle.Render(strings.Join(separatorParts, "┼")))

	idStyle := lipgloss.NewStyle().Foreground(accentColor).Padding(0, 1).Width(idWidth)
	titleStyle := lipgloss.NewStyle().Foreground(headerColor).Padding(0, 1).Width(titleWidth)
	numStyle := lipgloss.NewStyle().Foreground(textColor).Padding(0, 1).Width(charsWidth).Align(lipgloss.Right)
	previewStyle := lipgloss.NewStyle().Foreground(textColor).Padding(0, 1).Width(previewWidth)

	total := 0
	for _, c := range chunks {
		total += len(c.Content)
		cells := []string{
			idStyle.Render(c.ID),
			titleStyle.Render(truncate(c.Title, titleWidth-2)),
			numStyle.Render(fmt.Sprintf("%d", len(c.Content))),
			previewStyle.Render(truncate(c.Content, previewWidth-2)),
		}
		fmt.Println(strings.Join(cells, borderStyle.Render("│")))
	}

	fmt.Println()
	fmt.Println(accentStyle.Render(fmt.Sprintf("Total: %d chunks, %d characters", len(chunks), total)))
	fmt.Println()
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
