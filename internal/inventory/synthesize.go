package inventory

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Options configures a full inventory pass.
type Options struct {
	Normalize NormalizeOptions
	Assemble  AssembleOptions
}

// Result is the outcome of normalizing a single raw record: either a
// classified VM or the reason it was skipped.
type Result struct {
	VM   ClassifiedVM
	Skip error
}

// Stats counts what happened to the records fed into a Builder.
type Stats struct {
	Seen    int
	Emitted int
	Skipped int
}

// Builder folds raw records into a document one at a time.
type Builder struct {
	opts    Options
	records []ClassifiedVM
	stats   Stats
}

func NewBuilder(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Add normalizes and classifies raw. Skipped records never reach the document.
func (b *Builder) Add(raw RawVM) Result {
	b.stats.Seen++
	vm, err := Normalize(raw, b.stats.Seen, b.opts.Normalize)
	if err != nil {
		b.stats.Skipped++
		zap.S().Named("builder").Debugw("record skipped", "name", raw.Name, "reason", err)
		return Result{Skip: err}
	}

	classified := Classify(vm)
	b.records = append(b.records, classified)
	b.stats.Emitted++
	return Result{VM: classified}
}

func (b *Builder) Stats() Stats {
	return b.stats
}

// Build assembles everything added so far.
func (b *Builder) Build() *Document {
	return Assemble(b.records, b.opts.Assemble)
}

// Synthesize runs the whole pipeline over raws. It stops between records
// when ctx is cancelled; the partial document is discarded in that case.
func Synthesize(ctx context.Context, raws []RawVM, opts Options) (*Document, Stats, error) {
	b := NewBuilder(opts)
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return nil, b.Stats(), err
		}
		b.Add(raw)
	}
	return b.Build(), b.Stats(), nil
}

// IsSkip reports whether err is a per-record skip reason.
func IsSkip(err error) bool {
	return errors.Is(err, ErrTemplate)
}
