package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloo-solutions/ragbot/internal/domain"
	"github.com/spf13/cobra"
)

// ChatRequest mirrors the /chat request body.
type ChatRequest struct {
	Messages       []domain.ChatTurn `json:"messages"`
	TopK           int               `json:"top_k,omitempty"`
	IncludeSources bool              `json:"include_sources"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var (
		topK        int
		noSources   bool
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask a question",
		Long: `Sends a question to the /chat endpoint and prints the answer with its sources.

With --interactive, questions are read line by line from stdin and the
conversation history is carried between turns.`,
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			c := NewAPIClientWithCmd(cmd)
			s := &chatSession{client: c, topK: topK, includeSources: !noSources, outputJSON: outputJSON}

			if interactive {
				return s.loop(cmd, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			if len(args) == 0 {
				return fmt.Errorf("a question is required unless --interactive is set")
			}
			_, err := s.ask(cmd, cmd.OutOrStdout(), args[0])
			return err
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to retrieve")
	cmd.Flags().BoolVar(&noSources, "no-sources", false, "Do not request sources")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Read questions from stdin")

	return cmd
}

type chatSession struct {
	client         *APIClient
	topK           int
	includeSources bool
	outputJSON     bool
	history        []domain.ChatTurn
}

func (s *chatSession) ask(cmd *cobra.Command, out io.Writer, question string) (*domain.ChatResponse, error) {
	messages := append(append([]domain.ChatTurn{}, s.history...), domain.ChatTurn{Role: domain.RoleUser, Content: question})

	resp, err := s.client.Post(cmd.Context(), "/chat", ChatRequest{
		Messages:       messages,
		TopK:           s.topK,
		IncludeSources: s.includeSources,
	})
	if err != nil {
		return nil, err
	}

	var chat domain.ChatResponse
	if err := json.Unmarshal(resp.Data, &chat); err != nil {
		return nil, fmt.Errorf("failed to parse chat response: %w", err)
	}

	s.history = append(messages, domain.ChatTurn{Role: domain.RoleAssistant, Content: chat.Answer})

	if s.outputJSON {
		return &chat, printJSON(out, chat)
	}
	printChat(out, &chat)
	return &chat, nil
}

func (s *chatSession) loop(cmd *cobra.Command, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return nil
		}
		if _, err := s.ask(cmd, out, question); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func printChat(out io.Writer, chat *domain.ChatResponse) {
	fmt.Fprintln(out, chat.Answer)
	fmt.Fprintf(out, "\nintent: %s  confidence: %.2f", chat.Intent, chat.Confidence)
	if chat.Degraded {
		fmt.Fprintf(out, "  degraded: %s", chat.ErrorKind)
	}
	fmt.Fprintln(out)

	for i, src := range chat.Sources {
		fmt.Fprintf(out, "  [%d] %s (score %.3f)\n", i+1, src.Source, src.Score)
	}
}
