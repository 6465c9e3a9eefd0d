// h5cat lists the datasets in an HDF5 container and prints one of them.
//
//	h5cat [-config file] [-recursive] [-n N] [-parquet out.parquet] path [dataset]
//
// path may be a local file or an s3://bucket/key object.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/robert-malhotra/h5cat/catalog"
	"github.com/robert-malhotra/h5cat/export"
	"github.com/robert-malhotra/h5cat/extract"
	"github.com/robert-malhotra/h5cat/internal/config"
	"github.com/robert-malhotra/h5cat/source"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	headStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type flags struct {
	recursive bool
	preview   int
	parquet   string
}

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		fl      flags
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional)")
	flag.BoolVar(&fl.recursive, "recursive", false, "Descend into groups")
	flag.IntVar(&fl.preview, "n", -1, "Number of values to print (0 prints all; default from config)")
	flag.StringVar(&fl.parquet, "parquet", "", "Write the catalog, or the dataset when given, to this Parquet file")
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "Usage: h5cat [-config file] [-recursive] [-n N] [-parquet out] <path> [dataset]")
		os.Exit(2)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("config: "+err.Error()))
		os.Exit(1)
	}
	if fl.preview < 0 {
		fl.preview = cfg.Output.Preview
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "h5cat",
		Level:  hclog.LevelFromString(cfg.LogLevel),
		Output: os.Stderr,
	})

	ctx := context.Background()
	resolver := &source.Resolver{Logger: logger}
	if _, _, isS3, _ := source.ParseS3URI(flag.Arg(0)); isS3 {
		client, err := source.NewS3Client(ctx, cfg.S3)
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
			os.Exit(1)
		}
		resolver.Client = client
	}

	os.Exit(run(ctx, os.Stdout, resolver, cfg, logger, fl, flag.Args()))
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, w io.Writer, resolver *source.Resolver, cfg *config.Config, logger hclog.Logger, fl flags, args []string) int {
	path, cleanup, err := resolver.Resolve(ctx, args[0])
	if err != nil {
		fmt.Fprintln(w, errStyle.Render(err.Error()))
		return 1
	}
	defer cleanup()

	catOpts := []catalog.Option{catalog.WithLogger(logger), catalog.WithLimits(cfg.Limits)}
	if fl.recursive {
		catOpts = append(catOpts, catalog.WithRecursive())
	}
	cat, err := catalog.Discover(path, catOpts...)
	defer cat.Release()
	if err != nil {
		fmt.Fprintln(w, errStyle.Render(err.Error()))
		return 1
	}
	printCatalog(w, args[0], cat)

	if len(args) < 2 {
		if fl.parquet != "" {
			rec := export.CatalogRecord(cat)
			defer rec.Release()
			if err := export.WriteParquetFile(fl.parquet, rec); err != nil {
				fmt.Fprintln(w, errStyle.Render(err.Error()))
				return 1
			}
		}
		return 0
	}

	name := args[1]
	res := extract.Extract(path, name, extract.WithLogger(logger), extract.WithLimits(cfg.Limits))
	defer res.Release()
	if res.Error != "" {
		logger.Error("extraction failed", "dataset", name, "error", res.Err())
		fmt.Fprintln(w, errStyle.Render(fmt.Sprintf("%s: %s", name, res.Error)))
		return 1
	}
	printResult(w, name, res, fl.preview)

	if fl.parquet != "" {
		rec, err := export.Record(name, res)
		if err != nil {
			fmt.Fprintln(w, errStyle.Render(err.Error()))
			return 1
		}
		defer rec.Release()
		if err := export.WriteParquetFile(fl.parquet, rec); err != nil {
			fmt.Fprintln(w, errStyle.Render(err.Error()))
			return 1
		}
	}
	return 0
}

func printCatalog(w io.Writer, location string, cat *catalog.Catalog) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s: %d datasets", location, cat.Count())))
	fmt.Fprintln(w, headStyle.Render(fmt.Sprintf("  %-32s %-8s %-5s %-16s %s", "NAME", "TYPE", "RANK", "SHAPE", "ELEMENTS")))
	for _, d := range cat.Datasets {
		fmt.Fprintf(w, "  %-32s %-8s %-5d %-16s %d\n", d.Name, d.Type, d.Rank, fmt.Sprint(d.Shape), d.ElementCount)
	}
	if cat.Truncated {
		fmt.Fprintln(w, noteStyle.Render("  (catalog truncated at capacity)"))
	}
}

func printResult(w io.Writer, name string, res *extract.Result, n int) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("Dataset "+name))
	fmt.Fprintf(w, "  Rank:  %d\n", res.Rank)
	fmt.Fprintf(w, "  Shape: %v\n", res.Shape)
	fmt.Fprintln(w, "  Metadata:")
	for _, p := range res.Metadata {
		fmt.Fprintf(w, "    %s = %s\n", p.Key, p.Value)
	}
	values := res.Preview(n)
	fmt.Fprintf(w, "  Values (%d of %d): %v\n", len(values), res.TotalSize, values)
}
