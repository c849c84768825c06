// Command lawgraph ingests legal documents and builds the law graph from
// the command line.
//
// Build with FTS5 enabled:
//
//	go build -tags sqlite_fts5 ./cmd/lawgraph
//
// Usage:
//
//	lawgraph [-config cfg.json] [-env .env] ingest <file> [-build] [-force] [-published 2020-06-05]
//	lawgraph build <source-id>
//	lawgraph seed <registry.xlsx>
//	lawgraph laws
//	lawgraph law <id>
//	lawgraph sources
//
// Results are printed to stdout as JSON; logs go to stderr.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/brunobiangulo/legalgraph"
)

var errUsage = errors.New("usage: lawgraph [-config file] [-env file] <ingest|build|seed|laws|law|sources> [args]")

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	dotenv := flag.String("env", "", "Path to .env file (default: ./.env when present)")
	flag.Parse()

	cfg, err := legalgraph.LoadConfig(*configPath, *dotenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	open := func() (legalgraph.Engine, error) { return legalgraph.New(cfg) }
	if err := run(ctx, flag.Args(), os.Stdout, open); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// run dispatches one subcommand. The engine is opened only after the
// arguments have been checked.
func run(ctx context.Context, args []string, out io.Writer, open func() (legalgraph.Engine, error)) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	var exec func(legalgraph.Engine) (any, error)
	switch cmd {
	case "ingest":
		fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		build := fs.Bool("build", false, "run the graph pipeline after ingesting")
		force := fs.Bool("force", false, "re-parse even when the content is unchanged")
		published := fs.String("published", "", "publication date of the source")
		path, err := parseOne(fs, rest)
		if err != nil {
			return err
		}
		exec = func(e legalgraph.Engine) (any, error) {
			return ingest(ctx, e, path, *build, *force, *published)
		}
	case "build":
		id, err := oneArg(rest)
		if err != nil {
			return err
		}
		exec = func(e legalgraph.Engine) (any, error) {
			rep, err := e.Build(ctx, id)
			if err != nil && rep != nil {
				// The report says which stage failed; print it before failing.
				writeJSON(out, rep)
				return nil, err
			}
			return rep, err
		}
	case "seed":
		path, err := oneArg(rest)
		if err != nil {
			return err
		}
		exec = func(e legalgraph.Engine) (any, error) {
			n, err := e.SeedLaws(ctx, path)
			return map[string]int{"seeded": n}, err
		}
	case "laws":
		exec = func(e legalgraph.Engine) (any, error) { return e.ListLaws(ctx) }
	case "sources":
		exec = func(e legalgraph.Engine) (any, error) { return e.ListSources(ctx) }
	case "law":
		arg, err := oneArg(rest)
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid law id %q", errUsage, arg)
		}
		exec = func(e legalgraph.Engine) (any, error) { return e.GetLaw(ctx, id) }
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	e, err := open()
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer e.Close()

	v, err := exec(e)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return writeJSON(out, v)
}

func ingest(ctx context.Context, e legalgraph.Engine, path string, build, force bool, published string) (any, error) {
	var opts []legalgraph.IngestOption
	if force {
		opts = append(opts, legalgraph.WithForceReparse())
	}
	if published != "" {
		opts = append(opts, legalgraph.WithPublishedAt(published))
	}
	src, err := e.IngestSource(ctx, path, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("lawgraph: source ingested", "id", src.ID, "chunks", src.Chunks, "unchanged", src.Unchanged)
	if !build {
		return map[string]any{"source": src}, nil
	}
	rep, err := e.Build(ctx, src.ID)
	if err != nil {
		return map[string]any{"source": src, "report": rep, "error": err.Error()}, err
	}
	return map[string]any{"source": src, "report": rep}, nil
}

// parseOne parses flags that may appear before or after a single
// positional argument.
func parseOne(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	pos := fs.Args()
	if len(pos) == 0 {
		return "", fmt.Errorf("%w: %s needs one argument", errUsage, fs.Name())
	}
	if err := fs.Parse(pos[1:]); err != nil {
		return "", fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 0 {
		return "", fmt.Errorf("%w: %s takes one argument", errUsage, fs.Name())
	}
	return pos[0], nil
}

func oneArg(args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected exactly one argument", errUsage)
	}
	return args[0], nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
