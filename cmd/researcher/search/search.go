// Package searchcmder provides the search command for retrieval over the
// indexed documents.
package searchcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	apisearch "github.com/papercomputeco/researcher/api/search"
	"github.com/papercomputeco/researcher/cmd/researcher/stack"
	"github.com/papercomputeco/researcher/pkg/cliui"
	"github.com/papercomputeco/researcher/pkg/rag"
)

type searchCommander struct {
	flags     stack.Flags
	quiet     bool
	jsonOut   bool
	apiTarget string
}

const searchLongDesc string = `Search the indexed documents.

The query is embedded and compared against every contextualized chunk. The
most similar chunks are printed with their similarity, source and the
context the model wrote for them.

Use --quiet to output only chunk ids, one per line, or --json for the raw
results. With --api-target the search runs against a "researcher serve"
instance instead of the local index.

Examples:
  researcher search "permafrost carbon feedback"
  researcher search "ocean heat content" --top-k 10
  researcher search "ice sheet models" --quiet
  researcher search "ice sheet models" --api-target http://localhost:8081`

const searchShortDesc string = "Search the indexed documents"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmder.run,
	}

	cmder.flags.AddQueryFlags(cmd)
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only chunk ids, one per line")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Output the results as JSON")
	cmd.Flags().StringVar(&cmder.apiTarget, "api-target", "", "Search a running researcher API server instead of the local index")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("query is empty")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log := stack.NewLogger(cmd)

	var (
		output *apisearch.Output
		err    error
	)
	if c.apiTarget != "" {
		cfg, cfgErr := stack.LoadConfig(cmd, stack.QueryFlags)
		if cfgErr != nil {
			return cfgErr
		}
		output, err = SearchAPI(ctx, c.apiTarget, query, int(cfg.Research.TopK))
	} else {
		s, openErr := stack.OpenForCommand(ctx, cmd, stack.QueryFlags, log)
		if openErr != nil {
			return openErr
		}
		defer s.Close()
		output, err = apisearch.Search(ctx, s.DB, query, int(s.Config.Research.TopK), log)
	}
	if errors.Is(err, rag.ErrNoData) {
		return errors.New("nothing is indexed yet, run \"researcher index\" first")
	}
	if err != nil {
		return err
	}

	return Print(cmd.OutOrStdout(), output, c.quiet, c.jsonOut)
}

// Print writes output in the selected format.
func Print(w io.Writer, output *apisearch.Output, quiet, jsonOut bool) error {
	switch {
	case jsonOut:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(output)

	case quiet:
		for _, result := range output.Results {
			fmt.Fprintln(w, result.ChunkID)
		}
		return nil
	}

	if output.Count == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	lipgloss.Fprintf(w, "\n%s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.SourceStyle.Render(fmt.Sprintf("%q", output.Query)),
	)
	width := cliui.TerminalWidth(100) - 4
	for _, result := range output.Results {
		printResult(w, result, width)
	}
	return nil
}

func printResult(w io.Writer, result apisearch.Result, width int) {
	lipgloss.Fprintf(w, "  %s  %s  %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("#%d", result.Rank)),
		cliui.ScoreStyle.Render(fmt.Sprintf("similarity: %.4f", result.Similarity)),
		cliui.SourceStyle.Render(result.DocID+"/"+result.ChunkID),
	)
	if result.Context != "" {
		lipgloss.Fprintf(w, "  %s %s\n",
			cliui.KeyStyle.Render("context:"),
			cliui.DimStyle.Render(cliui.Truncate(oneLine(result.Context), width-9)),
		)
	}
	lipgloss.Fprintf(w, "  %s\n\n", cliui.ValueStyle.Render(cliui.Truncate(oneLine(result.Content), width)))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SearchAPI calls the researcher search API and returns the parsed output.
func SearchAPI(ctx context.Context, apiTarget, query string, topK int) (*apisearch.Output, error) {
	searchURL, err := url.Parse(apiTarget)
	if err != nil {
		return nil, fmt.Errorf("invalid API target URL: %w", err)
	}
	searchURL.Path = "/v1/search"
	q := searchURL.Query()
	q.Set("query", query)
	if topK > 0 {
		q.Set("top_k", strconv.Itoa(topK))
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to researcher API at %s: %w", apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, rag.ErrNoData
	default:
		return nil, fmt.Errorf("search request failed (HTTP %d): %s", resp.StatusCode, string(body))
	}

	var output apisearch.Output
	if err := json.Unmarshal(body, &output); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &output, nil
}
