package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zx197009220/findApi/internal/config"
	"github.com/zx197009220/findApi/internal/extractor"
	"github.com/zx197009220/findApi/internal/fetcher"
	"github.com/zx197009220/findApi/internal/rules"
	"github.com/zx197009220/findApi/pkg/types"
)

// ErrNoSeeds is returned by Start when no seed URL was given.
var ErrNoSeeds = errors.New("no seed urls")

// Engine holds everything that outlives a single run: configuration, the
// compiled rule set, the parameter dictionary and its frequency counter,
// the request template, and the HTTP client.
type Engine struct {
	cfg config.Config

	fetcher    fetcher.Fetcher
	template   *fetcher.Template
	rules      *rules.Set
	params     map[string]string
	paramsSet  bool
	counter    *extractor.ParamCounter
	extractor  *extractor.Extractor
	logger     *slog.Logger
	requestLog *RequestLog

	closers   []func() error
	closeOnce sync.Once
}

// Option overrides a collaborator that NewEngine would otherwise build from
// configuration.
type Option func(*Engine)

// WithFetcher injects the fetcher used by every run.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithRules injects a compiled rule set instead of reading cfg.RulesFile.
func WithRules(set *rules.Set) Option {
	return func(e *Engine) { e.rules = set }
}

// WithParams injects the parameter dictionary; nil disables substitution.
func WithParams(params map[string]string) Option {
	return func(e *Engine) {
		e.params = params
		e.paramsSet = true
	}
}

// WithTemplate injects the base request template.
func WithTemplate(tpl *fetcher.Template) Option {
	return func(e *Engine) { e.template = tpl }
}

// WithLogger injects the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRequestLog injects the per-request log.
func WithRequestLog(l *RequestLog) Option {
	return func(e *Engine) { e.requestLog = l }
}

// NewEngine builds a crawler engine from configuration. Collaborators not
// supplied through options are loaded from the files cfg points at.
func NewEngine(cfg config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, counter: extractor.NewParamCounter()}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		logger, err := buildLogger(cfg.Logging)
		if err != nil {
			return nil, err
		}
		e.logger = logger
	}

	if e.rules == nil {
		set, err := rules.LoadFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		e.rules = set
	}
	for _, skipped := range e.rules.Skipped() {
		e.logger.Warn("rule skipped", "group", skipped.Group, "rule", skipped.Name, "error", skipped.Err)
	}

	if !e.paramsSet {
		params, err := config.LoadParams(cfg.Params)
		if err != nil {
			return nil, err
		}
		e.params = params
	}

	filter, err := extractor.NewFilter(cfg.Crawl.SubDomain, cfg.Crawl.ExtensionList())
	if err != nil {
		return nil, err
	}
	e.extractor = extractor.New(e.rules, extractor.ContextNormalizer{}, filter, extractor.NewFuzzer(e.params, e.counter))

	if e.template == nil && cfg.TemplateFile != "" {
		replace := make([]fetcher.Replacement, 0, len(cfg.TemplateReplace))
		for _, r := range cfg.TemplateReplace {
			replace = append(replace, fetcher.Replacement{Pattern: r.Pattern, With: r.With})
		}
		tpl, err := fetcher.LoadTemplate(cfg.TemplateFile, fetcher.TemplateOptions{Replace: replace})
		if err != nil {
			return nil, err
		}
		e.template = tpl
	}

	if e.fetcher == nil {
		httpFetcher, err := fetcher.NewHTTPFetcher(fetcher.Options{
			UserAgent:          cfg.Crawl.UserAgent,
			ProxyURL:           cfg.Crawl.Proxy(),
			InsecureSkipVerify: cfg.Crawl.InsecureSkipVerify,
			MaxBodyBytes:       cfg.Crawl.MaxBodyBytes,
			ConnectTimeout:     cfg.Timeouts.Connect.Duration,
			ReadTimeout:        cfg.Timeouts.Read.Duration,
			WriteTimeout:       cfg.Timeouts.Write.Duration,
			PoolTimeout:        cfg.Timeouts.Pool.Duration,
			MaxConns:           cfg.Worker.MaxConnsPerHost,
			MaxRetries:         cfg.Crawl.MaxRetries,
			RetryBackoff:       cfg.Crawl.RetryBackoff.Duration,
		})
		if err != nil {
			return nil, fmt.Errorf("http fetcher: %w", err)
		}
		e.fetcher = httpFetcher
		e.closers = append(e.closers, func() error {
			httpFetcher.CloseIdleConnections()
			return nil
		})
	}

	if e.requestLog == nil {
		reqLog, err := NewRequestLog(cfg.Logging.RequestLog, cfg.Logging.RequestLogConsole)
		if err != nil {
			return nil, err
		}
		e.requestLog = reqLog
		e.closers = append(e.closers, reqLog.Close)
	}

	return e, nil
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() *rules.Set { return e.rules }

// ParamCounter returns the parameter frequency counter shared by all runs.
func (e *Engine) ParamCounter() *extractor.ParamCounter { return e.counter }

// Logger returns the engine's diagnostic logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Start launches a run over seeds, which receive depths "1", "2", ... in
// order. The run stops on quiescence, on Stop, or when ctx is cancelled.
func (e *Engine) Start(ctx context.Context, seeds ...string) (*Run, error) {
	cleaned := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s = strings.TrimSpace(s); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoSeeds
	}

	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	r := &Run{
		ID:         id,
		engine:     e,
		cancel:     cancel,
		logger:     e.logger.With("run_id", id),
		requests:   NewQueue[*types.URLTask](),
		pages:      NewQueue[*types.Page](),
		visited:    NewVisited(),
		outcomes:   make(chan types.Outcome, e.cfg.Events.Buffer),
		exclusions: make(chan types.Excluded, e.cfg.Events.Buffer),
		live:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	for i, seed := range cleaned {
		r.requests.Put(&types.URLTask{URL: seed, Origin: types.OriginSource, Depth: strconv.Itoa(i + 1)})
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < e.cfg.Worker.FetchConcurrency; i++ {
		g.Go(func() error { return r.fetchWorker(gctx) })
	}
	for i := 0; i < e.cfg.Worker.ExtractConcurrency; i++ {
		g.Go(func() error { return r.extractWorker(gctx) })
	}

	detector := Detector{
		PollInterval:    e.cfg.Quiescence.PollInterval.Duration,
		ConfirmInterval: e.cfg.Quiescence.ConfirmInterval.Duration,
		ConfirmChecks:   e.cfg.Quiescence.ConfirmChecks,
		Idle:            r.idle,
	}
	g.Go(func() error {
		if detector.Wait(gctx, r.live) {
			r.logger.Debug("pipeline quiescent, injecting sentinels")
			r.requests.Put(nil)
			r.pages.Put(nil)
		}
		return nil
	})

	r.logger.Info("crawl started", "seeds", len(cleaned), "max_depth", e.cfg.Crawl.MaxDepth)
	go r.supervise(runCtx, g)
	return r, nil
}

// Close releases resources owned by the engine.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		for _, closer := range e.closers {
			if cerr := closer(); cerr != nil {
				err = errors.Join(err, cerr)
			}
		}
	})
	return err
}

func (e *Engine) request(target string) fetcher.Request {
	return e.template.Request(e.cfg.Crawl.Method, target)
}

func buildLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Structured {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
