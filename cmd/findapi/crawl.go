package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/zx197009220/findApi/internal/config"
	"github.com/zx197009220/findApi/internal/crawler"
	"github.com/zx197009220/findApi/pkg/types"
)

const defaultConfigPath = "configs/config.yaml"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type crawlOptions struct {
	configPath string
	seeds      []string
	seedsFile  string
	out        string
	topParams  int
}

func newCrawlCmd() *cobra.Command {
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl from seed URLs and stream findings as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "Path to configuration file")
	cmd.Flags().StringArrayVarP(&opts.seeds, "seed", "s", nil, "Seed URL (repeatable)")
	cmd.Flags().StringVarP(&opts.seedsFile, "seeds-file", "S", "", "File of seed URLs or paths, one per line")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "-", "Output file for JSON lines (- for stdout)")
	cmd.Flags().IntVar(&opts.topParams, "top-params", 20, "Number of parameter names to report at the end (0 for all)")
	return cmd
}

// eventLine is one JSON line of output.
type eventLine struct {
	Event string `json:"event"`
	RunID string `json:"run_id,omitempty"`
	Data  any    `json:"data"`
}

func runCrawl(parent context.Context, opts *crawlOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || opts.configPath != defaultConfigPath {
			return fmt.Errorf("load config: %w", err)
		}
		def := config.Default()
		cfg = &def
	}

	seeds, err := collectSeeds(cfg, opts)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if opts.out != "" && opts.out != "-" {
		fh, err := os.Create(opts.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer fh.Close()
		out = fh
	}

	engine, err := crawler.NewEngine(*cfg)
	if err != nil {
		return fmt.Errorf("initialise engine: %w", err)
	}
	defer engine.Close()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	run, err := engine.Start(ctx, seeds...)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	write := func(event string, data any) error {
		return enc.Encode(eventLine{Event: event, RunID: run.ID, Data: data})
	}

	if err := stream(run, write); err != nil {
		run.Stop()
		<-run.Done()
		return fmt.Errorf("write output: %w", err)
	}

	runErr := run.Wait()
	if err := write("params", engine.ParamCounter().Top(opts.topParams)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := write("summary", map[string]int64{
		"successes":  run.Stats().Successes.Load(),
		"failures":   run.Stats().Failures.Load(),
		"exclusions": run.Stats().Exclusions.Load(),
		"visited":    int64(run.Visited()),
	}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	if errors.Is(runErr, context.Canceled) {
		engine.Logger().Warn("crawl interrupted")
		return nil
	}
	return runErr
}

// stream copies events until both streams close or the run ends, then
// drains whatever is still buffered.
func stream(run *crawler.Run, write func(string, any) error) error {
	outC, exC := run.Outcomes(), run.Exclusions()
	done := run.Done()
	for outC != nil || exC != nil {
		select {
		case o, ok := <-outC:
			if !ok {
				outC = nil
				continue
			}
			if err := write(outcomeEvent(o), o); err != nil {
				return err
			}
		case ex, ok := <-exC:
			if !ok {
				exC = nil
				continue
			}
			if err := write("excluded", ex); err != nil {
				return err
			}
		case <-done:
			return drain(outC, exC, write)
		}
	}
	return nil
}

func drain(outC <-chan types.Outcome, exC <-chan types.Excluded, write func(string, any) error) error {
	for outC != nil || exC != nil {
		select {
		case o, ok := <-outC:
			if !ok {
				outC = nil
				continue
			}
			if err := write(outcomeEvent(o), o); err != nil {
				return err
			}
		case ex, ok := <-exC:
			if !ok {
				exC = nil
				continue
			}
			if err := write("excluded", ex); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

func outcomeEvent(o types.Outcome) string {
	if _, ok := o.(types.FetchError); ok {
		return "error"
	}
	return "fetched"
}

func collectSeeds(cfg *config.Config, opts *crawlOptions) ([]string, error) {
	seeds := append([]string{}, cfg.Crawl.Seeds...)
	seeds = append(seeds, opts.seeds...)

	files := []string{cfg.Crawl.SeedsFile, opts.seedsFile}
	for _, path := range files {
		if path == "" {
			continue
		}
		fromFile, err := config.LoadSeeds(path, cfg.Crawl.SeedBase, cfg.Crawl.SeedContext)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fromFile...)
	}
	if len(seeds) == 0 {
		return nil, errors.New("no seeds: pass --seed, --seeds-file, or set crawl.seeds")
	}
	return seeds, nil
}
