package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aladics/code-change-repr/internal/corpus"
	"github.com/aladics/code-change-repr/internal/dataset"
	"github.com/aladics/code-change-repr/internal/snapcache"
	"github.com/aladics/code-change-repr/pkg/changetree"
	"github.com/aladics/code-change-repr/pkg/cst"
	"github.com/aladics/code-change-repr/pkg/flatten"
	"github.com/aladics/code-change-repr/pkg/node"
)

var (
	// ErrUnknownLanguage means no grammar could be determined for a row.
	ErrUnknownLanguage = errors.New("pipeline: cannot determine language")

	// ErrNoMethodAt means a snapshot parsed but holds no method at the
	// row's position.
	ErrNoMethodAt = errors.New("pipeline: no method at position")
)

// outcome classifies what happened to one row.
type outcome int

const (
	outcomeDone outcome = iota
	outcomeFailed
	outcomeIgnored
	outcomeSkipped
	outcomeUnchanged
)

type rowResult struct {
	index   int
	repo    string
	before  string
	after   string
	outcome outcome
	err     error
}

func (r rowResult) fail(err error) rowResult {
	r.outcome = outcomeFailed
	r.err = err

	return r
}

// ignoreKey identifies a row for the ignore list: same repository, same
// commit pair, same method positions. The label and URLs are left out
// so an entry matches no matter which class or fetch source it came
// from.
func ignoreKey(row dataset.Row) string {
	return strings.Join([]string{
		row.Repository,
		row.BeforeSHA,
		row.AfterSHA,
		row.BeforePos.String(),
		row.AfterPos.String(),
	}, "\x00")
}

// processRow turns one dataset row into its before/after corpus lines,
// or classifies why it produced none.
func (p *Pipeline) processRow(ctx context.Context, index int, row dataset.Row) rowResult {
	res := rowResult{index: index, repo: row.Repository}

	if index < p.cfg.Options.SkipN {
		res.outcome = outcomeSkipped

		return res
	}

	if _, drop := p.ignore[ignoreKey(row)]; drop {
		res.outcome = outcomeIgnored

		return res
	}

	ctx, span := p.cfg.Tracer.Start(ctx, "pipeline.row", trace.WithAttributes(
		attribute.Int("row.index", index),
		attribute.String("row.repo", row.Repository),
	))
	defer span.End()

	before, after, err := p.acquirePair(ctx, row)
	if err != nil {
		return res.fail(fmt.Errorf("acquire snapshots: %w", err))
	}

	language := p.cfg.Options.Language
	if language == "" {
		language = cst.GuessLanguage(row.AfterPath, after)
	}

	if language == "" {
		return res.fail(fmt.Errorf("%w: %s", ErrUnknownLanguage, row.AfterPath))
	}

	beforeLine, afterLine, err := p.changeLines(ctx, language, row, before, after)
	if err != nil {
		return res.fail(err)
	}

	if p.unchanged(beforeLine, afterLine) {
		res.outcome = outcomeUnchanged

		return res
	}

	res.before = beforeLine
	res.after = afterLine
	res.outcome = outcomeDone

	return res
}

// acquirePair resolves both snapshots of a row.
func (p *Pipeline) acquirePair(ctx context.Context, row dataset.Row) (before, after []byte, err error) {
	ctx, span := p.cfg.Tracer.Start(ctx, "pipeline.acquire")
	defer span.End()

	before, err = p.acquire(ctx, row.Repository, row.BeforeSHA, row.BeforePath, row.BeforeURL)
	if err != nil {
		return nil, nil, fmt.Errorf("before state: %w", err)
	}

	after, err = p.acquire(ctx, row.Repository, row.AfterSHA, row.AfterPath, row.AfterURL)
	if err != nil {
		return nil, nil, fmt.Errorf("after state: %w", err)
	}

	return before, after, nil
}

// acquire resolves one snapshot through the cache, the local mirror,
// and finally HTTP. A mirror failure is carried into the fetch error so
// a fully failed acquisition reports both causes.
func (p *Pipeline) acquire(ctx context.Context, repo, rev, path, url string) ([]byte, error) {
	key := snapcache.Key(repo, rev, path)

	if p.cfg.Cache != nil {
		if data, ok := p.cfg.Cache.Get(key); ok {
			return data, nil
		}
	}

	var mirrorErr error

	if p.cfg.Mirror != nil {
		data, err := p.cfg.Mirror.FileAt(repo, rev, path)
		if err == nil {
			p.store(key, data)

			return data, nil
		}

		mirrorErr = err
	}

	if p.cfg.Fetcher == nil {
		return nil, mirrorErr
	}

	data, err := p.cfg.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, errors.Join(mirrorErr, err)
	}

	p.fetched.Add(uint64(len(data)))
	p.store(key, data)

	return data, nil
}

func (p *Pipeline) store(key string, data []byte) {
	if p.cfg.Cache != nil {
		p.cfg.Cache.Put(key, data)
	}
}

// changeLines parses both snapshots, narrows each to the method at the
// row's position, and flattens the two change trees into corpus lines.
func (p *Pipeline) changeLines(
	ctx context.Context, language string, row dataset.Row, before, after []byte,
) (string, string, error) {
	ctx, span := p.cfg.Tracer.Start(ctx, "pipeline.diff",
		trace.WithAttributes(attribute.String("language", language)))
	defer span.End()

	parser, err := cst.NewParser(language)
	if err != nil {
		return "", "", fmt.Errorf("new parser: %w", err)
	}

	beforeRoot, err := methodRoot(ctx, parser, before, row.BeforePos)
	if err != nil {
		return "", "", fmt.Errorf("before state: %w", err)
	}

	afterRoot, err := methodRoot(ctx, parser, after, row.AfterPos)
	if err != nil {
		return "", "", fmt.Errorf("after state: %w", err)
	}

	tree := changetree.New(beforeRoot, afterRoot, p.cfg.Options.MaxRootPaths)

	if err := tree.BuildBefore(); err != nil {
		return "", "", fmt.Errorf("build before change tree: %w", err)
	}

	beforeLine := flatten.Line(flatten.Flatten(tree.Root()))

	if err := tree.BuildAfter(); err != nil {
		return "", "", fmt.Errorf("build after change tree: %w", err)
	}

	afterLine := flatten.Line(flatten.Flatten(tree.Root()))

	return beforeLine, afterLine, nil
}

// methodRoot parses src and returns the root of the method enclosing
// pos, or the whole tree when the row carries no position.
func methodRoot(ctx context.Context, parser *cst.Parser, src []byte, pos dataset.Position) (node.Node, error) {
	tree, err := parser.Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	if pos.Line <= 0 {
		return tree.Root(), nil
	}

	method := tree.MethodAt(pos.Line)
	if method == nil {
		return nil, fmt.Errorf("%w: line %d", ErrNoMethodAt, pos.Line)
	}

	return method.Root(), nil
}

// unchanged reports whether the two flattened lines describe the same
// method. With a vocabulary the comparison runs over filtered tokens,
// matching how the corpus looks after OOV substitution.
func (p *Pipeline) unchanged(beforeLine, afterLine string) bool {
	if v := p.cfg.Vocab; v != nil {
		return slices.Equal(
			v.FilterDocument(corpus.Tokenize(beforeLine)),
			v.FilterDocument(corpus.Tokenize(afterLine)),
		)
	}

	return beforeLine == afterLine
}
