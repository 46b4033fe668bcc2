// Package batch translates many texts at once: a list of strings or one
// column of a table. Rows are processed strictly in order and the first
// failure aborts the batch.
package batch

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
	"github.com/dasmlab/polyglot/pkg/metrics"
	"github.com/dasmlab/polyglot/pkg/translate"
)

// Columns added by ProcessTable.
const (
	TranslationColumn = "translation"
	SourceLangColumn  = "source_lang"
	TargetLangColumn  = "target_lang"
)

// ProgressFunc is called after each translated row.
type ProgressFunc func(done, total int)

// Option configures a batch run.
type Option func(*runOptions)

type runOptions struct {
	progress ProgressFunc
}

// WithProgress reports progress after each row.
func WithProgress(fn ProgressFunc) Option {
	return func(o *runOptions) {
		o.progress = fn
	}
}

// Processor applies a Translator to batches.
type Processor struct {
	translator translate.Translator
	logger     *logrus.Logger
}

// NewProcessor creates a batch processor.
func NewProcessor(translator translate.Translator, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Processor{translator: translator, logger: logger}
}

// ProcessList translates texts in order and returns the translations in the
// same order.
func (p *Processor) ProcessList(ctx context.Context, texts []string, sourceLang, targetLang string, opts ...Option) ([]string, error) {
	o := runOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	out := make([]string, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap("batch.process", err)
		}
		translated, err := p.translator.Translate(ctx, text, sourceLang, targetLang)
		metrics.RecordBatchRow(err == nil)
		if err != nil {
			p.logger.WithError(err).WithField("row", i).Error("Batch aborted")
			return nil, apperrors.Wrap("batch.process", err)
		}
		out = append(out, translated)
		if o.progress != nil {
			o.progress(i+1, len(texts))
		}
	}

	p.logger.WithFields(logrus.Fields{
		"rows":        len(texts),
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Batch translated")
	return out, nil
}

// ProcessTable translates every cell of column and returns a copy of table
// with a translation column (overwritten if present) followed by source_lang
// and target_lang columns. The input table is not modified.
func (p *Processor) ProcessTable(ctx context.Context, table *Table, column, sourceLang, targetLang string, opts ...Option) (*Table, error) {
	texts, err := table.Column(column)
	if err != nil {
		return nil, apperrors.Wrap("batch.process_table", err)
	}

	translations, err := p.ProcessList(ctx, texts, sourceLang, targetLang, opts...)
	if err != nil {
		return nil, err
	}

	out := table.Clone()
	if err := out.SetColumn(TranslationColumn, translations); err != nil {
		return nil, apperrors.Wrap("batch.process_table", err)
	}
	out.Fill(SourceLangColumn, sourceLang)
	out.Fill(TargetLangColumn, targetLang)
	return out, nil
}
