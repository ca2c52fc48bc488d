package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var queryCmd = &cobra.Command{
	Use:         "query <question>",
	Short:       "Answer a single question from the index",
	Args:        cobra.MinimumNArgs(1),
	Annotations: map[string]string{annotationInteractive: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), currentConfig, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		ans, err := a.answers.Answer(cmd.Context(), strings.Join(args, " "), uuid.NewString())
		if err != nil {
			return err
		}

		fmt.Println(ans.Answer)
		printSources(ans.SourceDocuments, ans.RelQueries)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:         "chat",
	Short:       "Chat with the indexed documents",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationInteractive: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx, currentConfig, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := uuid.NewString()

		color.Cyan("\nChat with your knowledge base (type 'exit' to quit)")
		if a.store.Len() == 0 {
			color.Yellow("The index is empty. Run `instructai ingest <url>` first.")
		}

		scanner := bufio.NewScanner(os.Stdin)
		userPrompt := color.New(color.FgGreen).PrintfFunc()
		assistantPrompt := color.New(color.FgCyan).PrintfFunc()

		for {
			userPrompt("\nYou: ")
			if !scanner.Scan() {
				break
			}

			query := strings.TrimSpace(scanner.Text())
			if query == "" {
				continue
			}
			if strings.ToLower(query) == "exit" {
				break
			}

			if strings.HasPrefix(query, "/ingest ") {
				summary, err := a.ingest.Upload(ctx, strings.TrimSpace(strings.TrimPrefix(query, "/ingest ")))
				if err != nil {
					color.Red("Error: %v\n", err)
					continue
				}
				color.Green("✓ %s (%d chunks)\n", summary.Message, summary.Chunks)
				continue
			}

			fmt.Print("\n")
			assistantPrompt("Assistant: ")

			ans, err := a.answers.AnswerStream(ctx, query, sessionID, func(chunk string) error {
				assistantPrompt("%s", chunk)
				return nil
			})
			fmt.Print("\n")
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}

			printSources(ans.SourceDocuments, ans.RelQueries)
		}

		return scanner.Err()
	},
}

func printSources(sources, related []string) {
	if len(sources) > 0 {
		color.Blue("\nSources:")
		for _, s := range sources {
			fmt.Printf("  - %s\n", s)
		}
	}
	if len(related) > 0 {
		color.Blue("\nRelated questions:")
		for _, q := range related {
			fmt.Printf("  - %s\n", q)
		}
	}
}

func init() {
	rootCmd.AddCommand(queryCmd, chatCmd)
}
