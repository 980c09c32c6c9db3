package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"normafetch/internal/config"
	"normafetch/internal/service"
	"normafetch/internal/urn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// Global flags
	verbose bool

	// Reference flags shared by every subcommand that takes one.
	flagActType string
	flagDate    string
	flagNumber  string
	flagArticle string
	flagAnnex   string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "normafetch",
	Short: "normafetch - Italian and EU legal norm retriever",
	Long: `normafetch resolves legal references (laws, codes, EU acts) to their
canonical URN:NIR or ELI identifier and fetches article text, document
trees, amendment histories and doctrinal commentary from Normattiva,
EUR-Lex and Brocardi.

Results are printed to stdout as JSON; the stream subcommand emits
newline-delimited JSON, one record per article.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// addReferenceFlags registers the reference flags on a subcommand.
func addReferenceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagActType, "type", "", "act type (legge, decreto legislativo, codice civile, regolamento ue, ...)")
	cmd.Flags().StringVar(&flagDate, "date", "", "act date (YYYY-MM-DD, YYYY, or spelled-out Italian date)")
	cmd.Flags().StringVar(&flagNumber, "number", "", "act number")
	cmd.Flags().StringVar(&flagArticle, "article", "", "article number (e.g. 3, 16-bis)")
	cmd.Flags().StringVar(&flagAnnex, "annex", "", "annex number")
}

func referenceFromFlags() urn.Reference {
	return urn.Reference{
		ActType:   flagActType,
		Date:      flagDate,
		ActNumber: flagNumber,
		Article:   flagArticle,
		Annex:     flagAnnex,
	}
}

// withService builds the service, runs fn, and shuts the browser down.
func withService(ctx context.Context, fn func(*service.Service) error) error {
	svc, err := service.New(ctx, config.Load(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Shutdown(); err != nil {
			logger.Warn("shutdown failed", zap.Error(err))
		}
	}()
	return fn(svc)
}

// printJSON writes v to stdout, indented.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	for _, c := range []*cobra.Command{resolveCmd, articleCmd, treeCmd, amendmentsCmd, enrichCmd, streamCmd} {
		addReferenceFlags(c)
	}

	articleCmd.Flags().BoolVar(&flagWithLinks, "links", false, "annotate outbound references with resolver URLs")
	articleCmd.Flags().StringVar(&flagAtDate, "at", "", "fetch the text in force at this date (YYYY-MM-DD)")
	articleCmd.Flags().BoolVar(&flagOriginal, "original", false, "fetch the text as originally enacted")
	articleCmd.MarkFlagsMutuallyExclusive("at", "original")

	treeCmd.Flags().BoolVar(&flagTreeLinks, "links", false, "add a direct URL per article")
	treeCmd.Flags().BoolVar(&flagTreeDetails, "details", false, "keep partition headers")
	treeCmd.Flags().BoolVar(&flagTreeMetadata, "metadata", false, "add per-annex article counts")

	streamCmd.Flags().StringVar(&flagArticles, "articles", "", `article selection ("3", "1,4", "4-7", empty = whole act)`)
	streamCmd.Flags().BoolVar(&flagStreamEnrich, "enrich", false, "attach doctrinal commentary per article")
	streamCmd.Flags().BoolVar(&flagStreamLinks, "links", false, "annotate outbound references with resolver URLs")
	streamCmd.Flags().BoolVar(&flagCollect, "collect", false, "print one JSON array instead of NDJSON")

	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(articleCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(amendmentsCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(streamCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
