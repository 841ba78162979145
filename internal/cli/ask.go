package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kirillkom/catalog-assistant/internal/core/domain"
)

var (
	statusColor = color.New(color.FgCyan)
	answerColor = color.New(color.Bold)
	sourceColor = color.New(color.FgYellow)
	errorColor  = color.New(color.FgRed)
)

// AskCmd runs one chat turn against the active index.
func AskCmd(load Loader) *cobra.Command {
	var (
		stream         bool
		outputJSON     bool
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the catalog assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := loadServices(cmd, load)
			if err != nil {
				return err
			}
			defer services.close()

			req := domain.ChatRequest{
				Message:        strings.Join(args, " "),
				ConversationID: conversationID,
			}
			out := cmd.OutOrStdout()

			if !stream {
				resp, err := services.Chat.Chat(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printResponse(out, resp, outputJSON)
			}

			return services.Chat.Stream(cmd.Context(), req, func(event domain.StreamEvent) error {
				if event.Type == domain.EventStatus {
					if !outputJSON {
						statusColor.Fprintf(out, "… %s\n", event.Message)
					}
					return nil
				}
				return printResponse(out, event.ChatResponse, outputJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&stream, "stream", false, "Print pipeline progress while answering")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Print the response as JSON")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID to reuse")
	return cmd
}

func printResponse(w io.Writer, resp *domain.ChatResponse, asJSON bool) error {
	if resp == nil {
		return nil
	}
	if asJSON {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(resp)
	}

	answerColor.Fprintln(w, resp.Answer)
	if resp.Error != "" {
		errorColor.Fprintf(w, "error: %s\n", resp.Error)
	}
	if resp.RewrittenQuery != nil {
		fmt.Fprintf(w, "rewritten query: %q\n", *resp.RewrittenQuery)
	}
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, source := range resp.Sources {
			sourceColor.Fprintf(w, "  Page %d", source.Page)
			fmt.Fprintf(w, " [%s, %s] %s\n", source.ContentType, source.MatchType, oneLine(source.ContentPreview))
		}
	}
	fmt.Fprintf(w, "conversation: %s\n", resp.ConversationID)
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
