package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/st3v3nmw/beacon-dns-lists/internal/classify"
	"github.com/st3v3nmw/beacon-dns-lists/internal/config"
	"github.com/st3v3nmw/beacon-dns-lists/internal/rules"
	"github.com/st3v3nmw/beacon-dns-lists/internal/types"
	"github.com/st3v3nmw/beacon-dns-lists/pkg/ids"
	"github.com/st3v3nmw/beacon-dns-lists/pkg/threadsafe"
	"golang.org/x/sync/errgroup"
)

const maxLineSize = 1 << 20

var ErrNoInputs = errors.New("no input file could be read")

// Validator gates block rules on whether their domain still resolves.
type Validator interface {
	Validate(ctx context.Context, domain string) bool
}

type inputFile struct {
	config.InputConfig
	path string
}

type processor struct {
	cfg        *config.Config
	validator  Validator
	classifier *classify.Classifier
	counters   counters
	logger     *slog.Logger
}

// Run processes every configured input and atomically replaces the block
// and allow outputs. On error nothing is written.
func Run(ctx context.Context, cfg *config.Config, v Validator) (*Result, error) {
	res, err := Process(ctx, cfg, v)
	if err != nil {
		return nil, err
	}

	err = writeAll(map[string][]string{
		cfg.Output.Block: res.Rules.Lines(types.ActionBlock, cfg.Output.Format),
		cfg.Output.Allow: res.Rules.Lines(types.ActionAllow, cfg.Output.Format),
	})
	if err != nil {
		return res, err
	}

	recordRun(res)
	slog.Info("Wrote rule sets", "run", res.RunID, "block", cfg.Output.Block, "allow", cfg.Output.Allow)
	return res, nil
}

// Process classifies every configured input without writing anything.
// Inputs that cannot be read are logged and skipped, the run only fails
// when none of them could be read or ctx is cancelled.
func Process(ctx context.Context, cfg *config.Config, v Validator) (*Result, error) {
	res := &Result{
		RunID:   ids.NewRunID(),
		Started: time.Now(),
	}

	p := &processor{
		cfg:        cfg,
		validator:  v,
		classifier: classify.New(cfg.Classify.Policy, cfg.Classify.Depth),
		logger:     slog.With("run", res.RunID),
	}

	cacheHits := func() int64 { return 0 }
	if c, ok := v.(interface{ CacheHits() int64 }); ok {
		cacheHits = c.CacheHits
	}
	hitsBefore := cacheHits()
	prog := startProgress(p.logger, &p.counters, cacheHits, cfg.Pipeline.ProgressInterval)
	defer prog.Stop()

	inputs, err := expandInputs(cfg.Inputs)
	if err != nil {
		return nil, err
	}

	failed := 0
	for _, input := range inputs {
		report := p.processFile(ctx, input)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if report.Err != nil {
			failed++
			p.logger.Error("Skipping input", "input", report.Name, "path", report.Path, "error", report.Err)
		} else {
			p.logger.Info("Processed input", "input", report.Name, "path", report.Path, "lines", report.Lines, "kept", report.Kept)
		}
		res.Files = append(res.Files, report)
	}

	if failed == len(inputs) {
		return nil, ErrNoInputs
	}

	res.Rules = p.classifier.Resolve()
	res.Stats = p.counters.snapshot()
	res.Stats.Duplicates = int64(p.classifier.Duplicates())
	res.Stats.CacheHits = cacheHits() - hitsBefore
	res.Stats.Conflicts = res.Rules.Conflicts
	res.Stats.Block = len(res.Rules.Block)
	res.Stats.Allow = len(res.Rules.Allow)
	res.Elapsed = time.Since(res.Started)

	p.logger.Info("Run complete", "stats", res.Stats, "elapsed", res.Elapsed)
	return res, nil
}

// expandInputs resolves globs. A pattern that matches nothing is kept as a
// literal path so that it shows up as a failed input.
func expandInputs(inputs []config.InputConfig) ([]inputFile, error) {
	var files []inputFile
	for _, input := range inputs {
		matches, err := filepath.Glob(input.Path)
		if err != nil {
			return nil, fmt.Errorf("invalid input pattern %q: %w", input.Path, err)
		}
		if len(matches) == 0 {
			matches = []string{input.Path}
		}

		for _, path := range matches {
			files = append(files, inputFile{InputConfig: input, path: path})
		}
	}
	return files, nil
}

func (p *processor) processFile(ctx context.Context, input inputFile) FileReport {
	report := FileReport{Name: input.Name, Path: input.path}

	f, err := os.Open(input.path)
	if err != nil {
		report.Err = err
		return report
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	// survivors are staged until the whole file has been read, so a file
	// that fails halfway contributes nothing
	var staged []outcome

	batchSize := p.cfg.Pipeline.BatchSize
	batch := make([]string, 0, batchSize)
	flush := func() bool {
		report.Lines += int64(len(batch))
		staged = append(staged, p.processBatch(ctx, input, batch)...)
		batch = batch[:0]
		return ctx.Err() == nil
	}

	for scanner.Scan() {
		batch = append(batch, scanner.Text())
		if len(batch) == batchSize && !flush() {
			return report
		}
	}
	if err := scanner.Err(); err != nil {
		report.Err = fmt.Errorf("failed to read %s: %w", input.path, err)
		return report
	}
	if len(batch) > 0 && !flush() {
		return report
	}

	report.Kept = p.fold(staged)
	return report
}

// processBatch evaluates lines concurrently and returns the survivors.
func (p *processor) processBatch(ctx context.Context, input inputFile, lines []string) []outcome {
	var kept threadsafe.Slice[outcome]

	var g errgroup.Group
	g.SetLimit(p.cfg.Pipeline.Workers)
	for _, line := range lines {
		g.Go(func() error {
			if o, ok := p.evaluate(ctx, input, line); ok {
				kept.Append(o)
			}
			return nil
		})
	}
	g.Wait()

	if ctx.Err() != nil {
		return nil
	}

	return slices.Collect(kept.All())
}

// fold adds staged outcomes to the classifier and returns how many new
// entries they contributed.
func (p *processor) fold(staged []outcome) int64 {
	var added int64
	for _, o := range staged {
		if o.passthrough {
			added += int64(p.classifier.AddVerbatim(o.rule))
		} else {
			added += int64(p.classifier.Add(o.rule))
		}
	}
	p.counters.kept.Add(added)

	return added
}

type outcome struct {
	rule        rules.Rule
	passthrough bool
}

// evaluate parses a line and decides whether it survives filtering.
func (p *processor) evaluate(ctx context.Context, input inputFile, line string) (outcome, bool) {
	p.counters.lines.Add(1)

	r := rules.Parse(line)
	if input.Action == types.ActionAllow {
		r = r.AsAllow()
	}

	switch r.Kind {
	case types.KindComment:
		p.counters.comments.Add(1)
		return outcome{}, false
	case types.KindUnparseable:
		if r.Verbatim {
			return outcome{rule: r}, true
		}
		if p.keepUnparseable(input, r) {
			return outcome{rule: r, passthrough: true}, true
		}
		p.counters.unparseable.Add(1)
		return outcome{}, false
	case types.KindAllow:
		return outcome{rule: r}, true
	}

	domains := p.withoutExcluded(r.Targets())
	if len(domains) == 0 {
		p.counters.excluded.Add(1)
		return outcome{}, false
	}
	r = r.WithDomains(domains)

	// already accepted from an earlier line or file
	if p.classifier.Contains(r) {
		return outcome{rule: r}, true
	}

	for _, domain := range domains {
		if p.validator.Validate(ctx, domain) {
			return outcome{rule: r}, true
		}
	}

	p.counters.invalid.Add(1)
	return outcome{}, false
}

// keepUnparseable reports whether a non-DNS line is preserved as-is in the
// block output. Rejected hosts & regex lines are malformed rather than
// foreign syntax.
func (p *processor) keepUnparseable(input inputFile, r rules.Rule) bool {
	if !p.cfg.Rules.KeepUnparseable || input.Action == types.ActionAllow {
		return false
	}
	return r.Syntax != types.SyntaxHosts && r.Syntax != types.SyntaxRegex
}

func (p *processor) withoutExcluded(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, domain := range domains {
		if !p.isExcluded(domain) {
			out = append(out, domain)
		}
	}
	return out
}

func (p *processor) isExcluded(domain string) bool {
	for _, suffix := range p.cfg.Rules.ExcludeSuffixes {
		if domain == strings.TrimPrefix(suffix, ".") || strings.HasSuffix(domain, "."+strings.TrimPrefix(suffix, ".")) {
			return true
		}
	}
	return false
}
