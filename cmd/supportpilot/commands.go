package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/supportpilot/internal/answer"
	"github.com/kalambet/supportpilot/internal/config"
	"github.com/kalambet/supportpilot/internal/ingest"
	"github.com/kalambet/supportpilot/internal/pipeline"
	"github.com/kalambet/supportpilot/internal/retrieval"
	"github.com/kalambet/supportpilot/internal/storage"
	"github.com/kalambet/supportpilot/internal/ticket"
)

// loadApp reads the config, installs logging and wires the engines.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return newApp(cfg)
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify [description]",
	Short: "Classify one ticket by topic, sentiment and priority",
	Long: `Classify one ticket by topic, sentiment and priority.

Examples:
  supportpilot classify --title "SSO broken" --description "Okta login loops"
  supportpilot classify "How do I see lineage for a Snowflake table?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		asJSON, _ := cmd.Flags().GetBool("json")
		if description == "" {
			description = strings.Join(args, " ")
		}
		if title == "" && description == "" {
			return fmt.Errorf("--title or --description is required")
		}

		a, err := loadApp()
		if err != nil {
			return err
		}

		c := a.classifier.Classify(cmd.Context(), title, description)
		if asJSON {
			return printJSON(os.Stdout, c)
		}
		printClassification(os.Stdout, c)
		return nil
	},
}

func init() {
	classifyCmd.Flags().String("title", "", "ticket title")
	classifyCmd.Flags().String("description", "", "ticket description")
	classifyCmd.Flags().Bool("json", false, "print the classification as JSON")
}

func printClassification(w io.Writer, c ticket.Classification) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Topic:    "), c.Topic)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Sentiment:"), c.Sentiment)
	fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Priority: "), c.Priority)
	if c.Reasoning != "" {
		fmt.Fprintf(w, "%s %s\n", colorize(colorBold, "Reasoning:"), c.Reasoning)
	}
}

// --- bulk ---

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Classify every ticket in a JSON or YAML file",
	Long: `Classify every ticket in a JSON or YAML file and print the annotated
tickets as JSON, in input order.

Examples:
  supportpilot bulk --file sample_tickets.json
  supportpilot bulk --file tickets.yaml --save --output classified.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		save, _ := cmd.Flags().GetBool("save")
		output, _ := cmd.Flags().GetString("output")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		tickets, err := loadTickets(file)
		if err != nil {
			return err
		}

		a, err := loadApp()
		if err != nil {
			return err
		}

		printStep("Classifying %d tickets...", len(tickets))
		results := a.classifier.ClassifyBulk(cmd.Context(), tickets)

		if save {
			store, err := storage.Open(a.cfg.Storage.DataDir)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()
			if err := store.SaveClassifiedTickets(results); err != nil {
				return err
			}
			printSuccess("Saved %d tickets to history", len(results))
		}

		w := io.Writer(os.Stdout)
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := printJSON(w, results); err != nil {
			return err
		}

		printTopicSummary(os.Stderr, results)
		if output != "" {
			printSuccess("Classified tickets written to %s", output)
		}
		return nil
	},
}

func init() {
	bulkCmd.Flags().String("file", "", "tickets file (.json, .yaml or .yml)")
	bulkCmd.Flags().Bool("save", false, "store the classified tickets in the history")
	bulkCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// printTopicSummary writes the ticket count per topic, most common first.
func printTopicSummary(w io.Writer, results []ticket.Classified) {
	counts := make(map[string]int)
	for _, r := range results {
		counts[string(r.Topic)]++
	}
	topics := make([]string, 0, len(counts))
	for t := range counts {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		if counts[topics[i]] != counts[topics[j]] {
			return counts[topics[i]] > counts[topics[j]]
		}
		return topics[i] < topics[j]
	})
	for _, t := range topics {
		fmt.Fprintf(w, "  %-16s %d\n", t, counts[t])
	}
}

// --- build ---

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Scrape documentation seeds and build the search index",
	Long: `Scrape documentation seeds and build the search index.

By default the index is built in this process, which reports what would be
indexed. With --remote the running server builds its own index.

Examples:
  supportpilot build
  supportpilot build --seed https://docs.atlan.com --max-pages 10
  supportpilot build --remote --async`,
	RunE: func(cmd *cobra.Command, args []string) error {
		seedURLs, _ := cmd.Flags().GetStringSlice("seed")
		maxPages, _ := cmd.Flags().GetInt("max-pages")
		remote, _ := cmd.Flags().GetBool("remote")
		async, _ := cmd.Flags().GetBool("async")

		var seeds []ingest.Seed
		for _, u := range seedURLs {
			seeds = append(seeds, ingest.Seed{URL: u, MaxPages: maxPages})
		}

		if remote {
			client, err := newAPIClient()
			if err != nil {
				return err
			}
			return remoteBuild(cmd.Context(), client, seeds, async)
		}

		a, err := loadApp()
		if err != nil {
			return err
		}
		if len(seeds) == 0 {
			seeds = a.seeds()
			if maxPages > 0 {
				for i := range seeds {
					seeds[i].MaxPages = maxPages
				}
			}
		}
		if len(seeds) == 0 {
			return fmt.Errorf("no seeds given and knowledge.seeds is empty")
		}

		printStep("Building knowledge base from %d seeds...", len(seeds))
		stats := a.builder.Build(cmd.Context(), seeds)
		printBuildStats(stats)
		for _, d := range a.retriever.Documents() {
			fmt.Printf("  %s  %s\n", colorize(colorCyan, d.URL), d.Title)
		}
		return nil
	},
}

func init() {
	buildCmd.Flags().StringSlice("seed", nil, "seed URL (repeatable; default: knowledge.seeds)")
	buildCmd.Flags().Int("max-pages", 0, "pages per seed (default: knowledge.max_pages)")
	buildCmd.Flags().Bool("remote", false, "ask the running server to rebuild its index")
	buildCmd.Flags().Bool("async", false, "with --remote, queue the build and return immediately")
}

func remoteBuild(ctx context.Context, client *apiClient, seeds []ingest.Seed, async bool) error {
	resp, err := client.post(ctx, "/v1/knowledge/build", map[string]any{
		"seeds": seeds,
		"async": async,
	})
	if err != nil {
		return err
	}

	if async {
		var queued map[string]string
		if err := decodeJSON(resp, &queued); err != nil {
			return err
		}
		printSuccess("Queued build job %s", queued["id"])
		return nil
	}

	var stats ingest.BuildStats
	if err := decodeJSON(resp, &stats); err != nil {
		return err
	}
	printBuildStats(stats)
	return nil
}

func printBuildStats(s ingest.BuildStats) {
	printStatus("Seeds", "%d", s.Seeds)
	printStatus("Scraped", "%d pages", s.Scraped)
	printStatus("Indexed", "%d documents", s.Indexed)
	printStatus("Duration", "%dms", s.DurationMs)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the server's documentation index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topK, _ := cmd.Flags().GetInt("top-k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/search", map[string]any{
			"query": strings.Join(args, " "),
			"top_k": topK,
		})
		if err != nil {
			return err
		}

		var results []retrieval.Result
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}
		printResults(os.Stdout, results)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("top-k", 0, "maximum number of results (default: retrieval.top_k)")
}

func printResults(w io.Writer, results []retrieval.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for i, r := range results {
		fmt.Fprintf(w, "\n%s [similarity: %.3f]\n", colorize(colorBold, fmt.Sprintf("%d. %s", i+1, r.Title)), r.Similarity)
		fmt.Fprintf(w, "  %s\n", colorize(colorCyan, r.URL))
		fmt.Fprintf(w, "  %s\n", truncateRunes(r.Content, 300))
	}
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the server's documentation index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/answer", map[string]string{
			"query": strings.Join(args, " "),
			"topic": topic,
		})
		if err != nil {
			return err
		}

		var result answer.Result
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printAnswer(os.Stdout, result)
		return nil
	},
}

func init() {
	askCmd.Flags().String("topic", "How-to", "topic the question belongs to")
}

func printAnswer(w io.Writer, r answer.Result) {
	fmt.Fprintln(w, r.Answer)
	if len(r.Sources) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Sources:"))
	for _, s := range r.Sources {
		fmt.Fprintf(w, "  - %s\n", s)
	}
}

// --- triage ---

var triageCmd = &cobra.Command{
	Use:   "triage [description]",
	Short: "Classify a ticket, then answer it or route it to a team",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		if description == "" {
			description = strings.Join(args, " ")
		}
		if title == "" && description == "" {
			return fmt.Errorf("--title or --description is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/v1/triage", map[string]string{
			"title":       title,
			"description": description,
		})
		if err != nil {
			return err
		}

		var res pipeline.Resolution
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		printResolution(os.Stdout, res)
		return nil
	},
}

func init() {
	triageCmd.Flags().String("title", "", "ticket title")
	triageCmd.Flags().String("description", "", "ticket description")
}

func printResolution(w io.Writer, res pipeline.Resolution) {
	printClassification(w, res.Classification)
	fmt.Fprintln(w)
	if res.Answerable && res.Answer != nil {
		printAnswer(w, *res.Answer)
		return
	}
	fmt.Fprintln(w, res.RoutingMessage)
}

// --- tickets ---

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Browse the classified ticket history",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tickets, most urgent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		sentiment, _ := cmd.Flags().GetString("sentiment")
		priority, _ := cmd.Flags().GetString("priority")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), ticketsPath(storage.TicketFilter{
			Topic:     topic,
			Sentiment: sentiment,
			Priority:  priority,
		}, limit, offset))
		if err != nil {
			return err
		}

		var tickets []storage.StoredTicket
		if err := decodeJSON(resp, &tickets); err != nil {
			return err
		}

		if len(tickets) == 0 {
			fmt.Println("No tickets found.")
			return nil
		}
		for _, t := range tickets {
			fmt.Printf("%s  %-11s  %-14s  %s\n",
				colorize(colorCyan, t.ID),
				t.Priority,
				t.Topic,
				truncateRunes(t.Title, 60),
			)
		}
		return nil
	},
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single stored ticket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/tickets/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var t storage.StoredTicket
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}
		return printJSON(os.Stdout, t)
	},
}

var ticketsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ticket counts per topic, sentiment and priority",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/tickets/stats")
		if err != nil {
			return err
		}

		var stats storage.Stats
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}
		printStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	ticketsListCmd.Flags().String("topic", "", "filter by topic")
	ticketsListCmd.Flags().String("sentiment", "", "filter by sentiment")
	ticketsListCmd.Flags().String("priority", "", "filter by priority, e.g. \"P0 (High)\"")
	ticketsListCmd.Flags().Int("limit", 20, "maximum number of tickets to list")
	ticketsListCmd.Flags().Int("offset", 0, "number of tickets to skip")
	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsShowCmd)
	ticketsCmd.AddCommand(ticketsStatsCmd)
}

// ticketsPath builds the list URL with its query string encoded.
func ticketsPath(f storage.TicketFilter, limit, offset int) string {
	q := url.Values{}
	if f.Topic != "" {
		q.Set("topic", f.Topic)
	}
	if f.Sentiment != "" {
		q.Set("sentiment", f.Sentiment)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return "/v1/tickets?" + q.Encode()
}

func printStats(w io.Writer, s storage.Stats) {
	fmt.Fprintf(w, "%s %d\n", colorize(colorBold, "Total tickets:"), s.Total)
	for _, group := range []struct {
		name   string
		counts map[string]int
	}{
		{"Topic", s.ByTopic},
		{"Sentiment", s.BySentiment},
		{"Priority", s.ByPriority},
	} {
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, group.name))
		keys := make([]string, 0, len(group.counts))
		for k := range group.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-16s %d\n", k, group.counts[k])
		}
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("Config file: %s\n", config.FilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value.\n\nValid keys:\n  " +
		strings.Join(config.ValidKeys(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
