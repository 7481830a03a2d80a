package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rc := NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := rc.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "ocrkv",
		Short: "Convert per-sample OCR datasets into a sequentially keyed key-value store.",
		Long: `ocrkv converts a dataset laid out as

	<root>/{train_data,test_data}/<sample>/label.json

where each label.json maps image filenames in its directory to their
transcription, into a single transactional store keyed image-%09d,
label-%09d and num-samples, ready for random-access training.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags())
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")

	rc.AddCommand(newConvertCommand(stdout, stderr))
	rc.AddCommand(newVerifyCommand(stdout, stderr))
	rc.AddCommand(newStatsCommand(stdout, stderr))
	rc.AddCommand(newCharsetCommand(stdout, stderr))
	rc.AddCommand(newIndexCommand(stdout, stderr))
	rc.AddCommand(newSearchCommand(stdout, stderr))
	rc.AddCommand(newGenerateConfigCommand(stdout))

	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func newConvertCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := NewConfig()
	cmd := &cobra.Command{
		Use:   "convert <root-dir> <output-path>",
		Short: "Convert one split of a dataset into a store.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			mapSize, err := cfg.MapSizeBytes()
			if err != nil {
				return err
			}
			logger := newLoggerTo(stderr, cfg.Verbose).WithPrefix(fmt.Sprintf("[%s] ", uuid.NewString()[:8]))

			conv := NewConverter()
			conv.Backend = cfg.Backend
			conv.MapSize = mapSize
			conv.FlushEvery = cfg.FlushEvery
			conv.CheckValid = cfg.CheckValid
			conv.Fresh = cfg.Fresh
			conv.Logger = logger
			conv.Metrics = NewMetrics(cfg.Split)

			n, err := conv.Convert(cmd.Context(), filepath.Join(args[0], cfg.Split), args[1])
			if cfg.MetricsPath != "" {
				if merr := conv.Metrics.WriteFile(cfg.MetricsPath); merr != nil {
					logger.Errorf("%v", merr)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%d\n", n)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.Backend, "backend", cfg.Backend, "Store backend: bolt or sqlite.")
	flags.StringVar(&cfg.MapSize, "map-size", cfg.MapSize, "Store capacity hint, e.g. 1TiB or 512MB.")
	flags.IntVar(&cfg.FlushEvery, "flush-every", cfg.FlushEvery, "Accepted records per committed transaction.")
	flags.BoolVar(&cfg.CheckValid, "check-valid", cfg.CheckValid, "Skip samples whose image does not decode.")
	flags.StringVar(&cfg.Split, "split", cfg.Split, "Split to convert: train_data or test_data.")
	flags.BoolVar(&cfg.Fresh, "fresh", cfg.Fresh, "Remove existing store content before converting.")
	flags.StringVar(&cfg.MetricsPath, "metrics-path", cfg.MetricsPath, "Write run metrics in Prometheus text format to this file.")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Enable debug logging.")
	return cmd
}

func newVerifyCommand(stdout, stderr io.Writer) *cobra.Command {
	var backend string
	var checkImages bool
	cmd := &cobra.Command{
		Use:   "verify <store-path>",
		Short: "Check that a store is complete and its ordinals are contiguous.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openExisting(backend, args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := VerifyStore(store, checkImages)
			if err != nil {
				return errors.Wrapf(err, "verify %s", args[0])
			}
			report.Render(stdout)
			if !report.OK() {
				return errors.Errorf("store %s failed verification", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", BackendBolt, "Store backend: bolt or sqlite.")
	cmd.Flags().BoolVar(&checkImages, "check-images", false, "Decode every stored image.")
	return cmd
}

func newStatsCommand(stdout, stderr io.Writer) *cobra.Command {
	var workers int
	var verbose bool
	cmd := &cobra.Command{
		Use:   "stats <root-dir>",
		Short: "Report image size and text length statistics of a dataset.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := CollectStats(cmd.Context(), args[0], workers, newLoggerTo(stderr, verbose))
			if err != nil {
				return err
			}
			st.Render(stdout)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel image decoders (0 means one per CPU).")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
	return cmd
}

func newCharsetCommand(stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "charset <root-dir>",
		Short: "Write the sorted set of characters used by all labels.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chars, err := CollectCharset(args[0], NewStandardLogger(stderr))
			if err != nil {
				return err
			}
			if err := WriteCharset(output, chars); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Saved %d unique characters to %s\n", len(chars), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "character_dict.txt", "Output file.")
	return cmd
}

func newIndexCommand(stdout, stderr io.Writer) *cobra.Command {
	var backend string
	var batchSize int
	cmd := &cobra.Command{
		Use:   "index <store-path> <index-path>",
		Short: "Build a full-text index over the labels of a store.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openExisting(backend, args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			idx := &LabelIndex{}
			if err := idx.Initialize(args[1]); err != nil {
				return err
			}
			defer idx.Close()

			n, err := BuildLabelIndex(store, idx, batchSize)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Indexer: indexed %d labels into %s.\n", n, args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", BackendBolt, "Store backend: bolt or sqlite.")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "Documents per index batch.")
	return cmd
}

func newSearchCommand(stdout, stderr io.Writer) *cobra.Command {
	var limit, indent int
	var outputJSON bool
	cmd := &cobra.Command{
		Use:   "search <index-path> [query]",
		Short: "Search label text in an index built by the index command.",
		Long: `search runs a bleve query string query against the label index:

	hà nội              - labels matching any of the terms
	+text:phố -text:cũ  - must contain "phố", must not contain "cũ"
	text:duong~1        - fuzzy match with edit distance 1
`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return errors.Wrapf(err, "label index %s", args[0])
			}
			idx := &LabelIndex{}
			if err := idx.Initialize(args[0]); err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args[1:], " "), limit)
			if err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(stdout, hits, indent)
			}
			if len(hits) == 0 {
				fmt.Fprintln(stdout, "No results found.")
				return nil
			}
			t := table.NewWriter()
			t.SetOutputMirror(stdout)
			t.AppendHeader(table.Row{"ordinal", "score", "text"})
			for _, h := range hits {
				t.AppendRow(table.Row{h.Ordinal, fmt.Sprintf("%.3f", h.Score), h.Text})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results.")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output matching results in JSON.")
	cmd.Flags().IntVarP(&indent, "indent", "i", 2, "With --json, # of spaces to indent by.")
	return cmd
}

func newGenerateConfigCommand(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Print the default configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return NewConfig().WriteTOML(stdout)
		},
	}
}

// openExisting opens a store for reading, refusing paths that do not exist
// so a typo does not silently create an empty store.
func openExisting(backend, path string) (Datastore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "store %s", path)
	}
	store, err := NewDatastore(backend)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(path, 0); err != nil {
		return nil, err
	}
	return store, nil
}

func writeJSON(w io.Writer, v interface{}, indent int) error {
	var b []byte
	var err error
	if indent > 0 {
		b, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
