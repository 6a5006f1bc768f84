package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/attachextract/internal/descriptor"
	"github.com/teemow/attachextract/internal/filter"
	"github.com/teemow/attachextract/internal/instrumentation"
	"github.com/teemow/attachextract/internal/logging"
	"github.com/teemow/attachextract/internal/mimetree"
	"github.com/teemow/attachextract/internal/pathsafe"
	"github.com/teemow/attachextract/internal/store"
)

// Message states, logged at debug level as a message moves through the
// pipeline.
const (
	StateFetchedMetadata = "fetched-metadata"
	StateSkipped         = "skipped"
	StateFetchedRaw      = "fetched-raw"
	StateParsed          = "parsed"
	StateExtracting      = "extracting"
	StateValidated       = "validated"
	StateRewritten       = "rewritten"
	StateReinserted      = "reinserted"
	StateOriginalTagged  = "original-tagged"
)

// Extractor runs the extraction pipeline against one mailbox.
type Extractor struct {
	source Source
	sink   Sink
	opts   Options

	logger  *slog.Logger
	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger
	saver   *store.Saver
	now     func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithAuditLogger sets the logger for mailbox mutations.
func WithAuditLogger(al *instrumentation.AuditLogger) Option {
	return func(e *Extractor) { e.audit = al }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New validates opts and returns an Extractor. The sink may be nil for
// dry runs.
func New(source Source, sink Sink, opts Options, options ...Option) (*Extractor, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: no message source", ErrConfiguration)
	}
	if opts.Filter == nil {
		opts.Filter = filter.MatchAll()
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if sink == nil && !opts.DryRun {
		return nil, fmt.Errorf("%w: mailbox modifications need a sink", ErrConfiguration)
	}

	e := &Extractor{
		source: source,
		sink:   sink,
		opts:   opts,
		logger: slog.Default(),
		saver:  store.NewSaver(),
		now:    time.Now,
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// run is the state of one Run call. Uniqueness state lives here so that it
// spans pages but not runs.
type run struct {
	stats    *Stats
	resolver *pathsafe.Resolver
	labels   map[string]Label
	pre      Label
	post     Label
	sequence int
}

// Run processes every message matching the query. It returns the run
// statistics together with any error; in fail-late mode per-message
// failures are collected into a *RunError.
func (e *Extractor) Run(ctx context.Context) (*Stats, error) {
	ctx, span := instrumentation.StartRunSpan(ctx, e.opts.Query, e.opts.DryRun)
	defer span.End()

	stats, err := e.run(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	e.logger.Info("extraction finished", stats.LogAttrs()...)
	return stats, err
}

func (e *Extractor) run(ctx context.Context) (*Stats, error) {
	r := &run{
		stats:    newStats(e.opts.Query, e.opts.DryRun),
		resolver: pathsafe.NewResolver(&pathsafe.Counter{}),
		labels:   map[string]Label{},
	}

	if _, err := os.Lstat(e.opts.OutputDir); err == nil {
		return r.stats, fmt.Errorf("%w: output directory %q already exists", ErrPrecondition, e.opts.OutputDir)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return r.stats, fmt.Errorf("failed to check output directory: %w", err)
	}

	page, err := e.source.ListMessages(ctx, e.opts.Query, "")
	if err != nil {
		return r.stats, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(page.Messages) == 0 {
		e.logger.Info("no messages matched query", slog.String("query", e.opts.Query))
		return r.stats, nil
	}

	if err := e.prepareLabels(ctx, r); err != nil {
		return r.stats, err
	}

	e.logger.Info("query matched messages",
		slog.String("query", e.opts.Query),
		slog.Int64("estimate", page.ResultSizeEstimate),
		slog.Bool(logging.KeyDryRun, e.opts.DryRun))

	first := true
	for pageNum := 1; ; pageNum++ {
		e.logger.Debug("processing page", slog.Int(logging.KeyPage, pageNum), slog.Int("messages", len(page.Messages)))

		for _, ref := range page.Messages {
			if !first {
				if err := e.wait(ctx); err != nil {
					return r.stats, err
				}
			}
			first = false
			if err := ctx.Err(); err != nil {
				return r.stats, err
			}

			r.stats.Processed++
			err := e.processMessage(ctx, r, ref)
			if err == nil {
				continue
			}

			var merr *MessageError
			if !errors.As(err, &merr) {
				merr = &MessageError{MessageID: ref.ID, Err: err}
			}
			if !e.opts.FailLate || errors.Is(err, pathsafe.ErrExhausted) || ctx.Err() != nil {
				return r.stats, merr
			}
			r.stats.Failures = append(r.stats.Failures, merr)
			e.logger.Error("message failed, continuing",
				slog.String(logging.KeyMessageID, ref.ID),
				slog.Int("error_number", len(r.stats.Failures)),
				logging.Err(merr.Err))
		}

		if page.NextPageToken == "" {
			break
		}
		page, err = e.source.ListMessages(ctx, e.opts.Query, page.NextPageToken)
		if err != nil {
			return r.stats, fmt.Errorf("failed to list messages: %w", err)
		}
		if len(page.Messages) == 0 {
			break
		}
	}

	if len(r.stats.Failures) > 0 {
		return r.stats, &RunError{Failures: r.stats.Failures}
	}
	return r.stats, nil
}

func (e *Extractor) wait(ctx context.Context) error {
	if e.opts.InterMessageWait <= 0 {
		return nil
	}
	timer := time.NewTimer(e.opts.InterMessageWait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// prepareLabels loads the label list and, unless this is a dry run, creates
// the bookkeeping labels. Existing bookkeeping labels abort the run.
func (e *Extractor) prepareLabels(ctx context.Context, r *run) error {
	labels, err := e.source.ListLabels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}
	byName := make(map[string]bool, len(labels))
	for _, l := range labels {
		r.labels[l.ID] = l
		byName[l.Name] = true
	}

	if e.opts.DryRun {
		return nil
	}

	preName, postName := e.opts.PreLabel(), e.opts.PostLabel()
	if byName[preName] || byName[postName] {
		return fmt.Errorf("%w: labels %q and/or %q already exist, choose a different labels prefix", ErrPrecondition, preName, postName)
	}

	for _, target := range []struct {
		name  string
		label *Label
	}{{preName, &r.pre}, {postName, &r.post}} {
		l, err := e.sink.CreateLabel(ctx, target.name)
		e.audit.LogMutation(instrumentation.MutationEvent{
			Mutation:  instrumentation.MutationCreateLabel,
			LabelID:   l.ID,
			LabelName: target.name,
			Err:       err,
		}.WithSpanContext(ctx))
		if err != nil {
			return fmt.Errorf("failed to create label %q: %w", target.name, err)
		}
		*target.label = l
		r.labels[l.ID] = l
	}
	e.logger.Info("created output labels", slog.String("pre", preName), slog.String("post", postName))
	return nil
}

// preCheck runs the filter against the metadata of a message. It returns
// the declared sizes of qualifying parts and the MIME types of all
// attachment candidates. Parts of a single-part message never qualify.
func (e *Extractor) preCheck(meta MessageMeta) (sizes []int64, candidates []string) {
	for _, p := range meta.Parts {
		if p.Filename == "" {
			continue
		}
		candidates = append(candidates, p.MimeType)
		if !meta.SinglePart && e.opts.Filter.Satisfies(p.Filename, p.MimeType, p.Size) {
			sizes = append(sizes, p.Size)
		}
	}
	return sizes, candidates
}

// tally holds per-message counters, added to the run stats and metrics
// only when the message completes.
type tally struct {
	attachments int
	bytes       int64
	extracted   []string
	filtered    []string
	records     []attachmentRecord
}

type attachmentRecord struct {
	result   string
	mimeType string
	size     int64
}

func (t *tally) record(result, mimeType string, size int64) {
	t.records = append(t.records, attachmentRecord{result: result, mimeType: mimeType, size: size})
}

func (e *Extractor) processMessage(ctx context.Context, r *run, ref MessageRef) (err error) {
	start := time.Now()
	ctx, span := instrumentation.StartMessageSpan(ctx, ref.ID)
	result := instrumentation.ResultFailed
	defer func() {
		if err != nil {
			instrumentation.SetSpanError(span, err)
		} else {
			instrumentation.SetSpanSuccess(span)
		}
		span.SetAttributes(attribute.String(instrumentation.SpanAttrState, result))
		span.End()
		e.metrics.RecordMessage(ctx, result, time.Since(start))
	}()

	logger := logging.WithMessage(e.logger, ref.ID, ref.ThreadID)
	state := func(s string, attrs ...any) {
		logger.Debug("message state", append([]any{slog.String(logging.KeyState, s)}, attrs...)...)
	}

	meta, err := e.source.GetMessage(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to get message metadata: %w", err)
	}
	state(StateFetchedMetadata, slog.Int("parts", len(meta.Parts)))
	logger.Info("processing message",
		slog.Int("number", r.stats.Processed),
		logging.Subject(meta.Subject))

	sizes, candidates := e.preCheck(meta)
	if len(sizes) == 0 {
		r.stats.FilteredTypes.Add(candidates...)
		for _, mimeType := range candidates {
			e.metrics.RecordAttachment(ctx, instrumentation.ResultFiltered, mimeType, 0)
		}
		result = instrumentation.ResultSkipped
		state(StateSkipped, slog.Int("candidates", len(candidates)))
		return nil
	}

	fail := func(err error, subject string) error {
		return &MessageError{MessageID: ref.ID, Subject: subject, Err: err}
	}

	raw, err := e.source.GetRawMessage(ctx, ref.ID)
	if err != nil {
		return fail(fmt.Errorf("failed to get raw message: %w", err), meta.Subject)
	}
	state(StateFetchedRaw, slog.Int(logging.KeySize, len(raw.Raw)))

	root, err := mimetree.Parse(raw.Raw)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrStructure, err), meta.Subject)
	}
	subject := root.Subject()
	receivedAt, err := root.Date()
	if err != nil || receivedAt.IsZero() {
		receivedAt = raw.InternalDate
		if receivedAt.IsZero() {
			receivedAt = meta.InternalDate
		}
	}
	receivedAt = receivedAt.Local()
	state(StateParsed, slog.Int("leaves", len(root.Leaves())))

	r.sequence++
	copyID := mimetree.NextMessageID(root.MessageID(), r.sequence, e.now())

	dir, err := r.resolver.UniqueDir(e.opts.OutputDir, receivedAt, subject)
	if err != nil {
		return fail(fmt.Errorf("failed to create attachments directory: %w", err), subject)
	}
	state(StateExtracting, slog.String(logging.KeyPath, dir), slog.Int("expected", len(sizes)))

	ledger := NewSizeLedger(sizes...)
	leaves, t, err := e.extractLeaves(r, &pass{
		logger:     logger,
		root:       root,
		dir:        dir,
		copyID:     copyID,
		subject:    subject,
		receivedAt: receivedAt,
		ledger:     ledger,
	})
	if err != nil {
		return fail(err, subject)
	}
	if err := ledger.Verify(); err != nil {
		return fail(err, subject)
	}
	state(StateValidated, slog.Int("attachments", t.attachments))

	rewritten, err := mimetree.Replace(root, leaves)
	if err != nil {
		return fail(fmt.Errorf("%w: %w", ErrStructure, err), subject)
	}
	body, err := rewritten.WithMessageID(copyID).Bytes()
	if err != nil {
		return fail(fmt.Errorf("failed to serialize rewritten message: %w", err), subject)
	}
	state(StateRewritten, slog.Int(logging.KeySize, len(body)))

	if !e.opts.DryRun {
		if err := e.commit(ctx, r, ref, raw, subject, body); err != nil {
			return fail(err, subject)
		}
		state(StateOriginalTagged)
	}

	r.stats.Extracted++
	r.stats.Attachments += t.attachments
	r.stats.Bytes += t.bytes
	r.stats.ExtractedTypes.Add(t.extracted...)
	r.stats.FilteredTypes.Add(t.filtered...)
	for _, rec := range t.records {
		e.metrics.RecordAttachment(ctx, rec.result, rec.mimeType, rec.size)
	}
	result = instrumentation.ResultExtracted
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrAttachments, t.attachments))
	return nil
}

// pass carries what the attachment pass over one message needs.
type pass struct {
	logger     *slog.Logger
	root       *mimetree.Entity
	dir        string
	copyID     string
	subject    string
	receivedAt time.Time
	ledger     *SizeLedger
}

// extractLeaves saves every attachment candidate of the message and returns
// the leaf list for the rewritten message: qualifying attachments are
// replaced by descriptors, everything else is kept. Candidates that do not
// qualify are removed from disk again.
func (e *Extractor) extractLeaves(r *run, p *pass) ([]*mimetree.Entity, tally, error) {
	var t tally
	logger := p.logger
	leaves := p.root.Leaves()
	out := make([]*mimetree.Entity, len(leaves))

	for i, leaf := range leaves {
		out[i] = leaf
		name := leaf.Filename()
		if name == "" {
			continue
		}
		mimeType := leaf.MediaType()

		target, err := r.resolver.UniqueFile(p.dir, name)
		if err != nil {
			return nil, t, fmt.Errorf("failed to resolve file name for %q: %w", name, err)
		}
		content, err := leaf.Content()
		if err != nil {
			return nil, t, fmt.Errorf("%w: %w", ErrStructure, err)
		}
		saved, err := e.saver.Save(content, target.Path())
		if err != nil {
			return nil, t, fmt.Errorf("failed to save %q: %w", name, err)
		}

		if !e.opts.Filter.Satisfies(name, mimeType, saved.Size) {
			if err := e.saver.Remove(saved.Path); err != nil {
				return nil, t, fmt.Errorf("failed to remove filtered attachment: %w", err)
			}
			t.filtered = append(t.filtered, mimeType)
			t.record(instrumentation.ResultFiltered, mimeType, saved.Size)
			logger.Info("attachment not extracted",
				slog.String(logging.KeyAttachment, name),
				slog.String(logging.KeyMimeType, mimeType),
				slog.Int64(logging.KeySize, saved.Size))
			continue
		}

		if err := p.ledger.Settle(saved.Size); err != nil {
			return nil, t, fmt.Errorf("attachment %q: %w", name, err)
		}

		savedAs, err := filepath.Rel(e.opts.OutputDir, saved.Path)
		if err != nil {
			savedAs = saved.Path
		}
		text := descriptor.Descriptor{
			DeletedAt:     e.now(),
			MessageID:     p.root.MessageID(),
			CopyMessageID: p.copyID,
			Subject:       p.subject,
			ReceivedAt:    p.receivedAt,
			Filename:      name,
			SavedAs:       filepath.ToSlash(savedAs),
			Size:          saved.Size,
			SHA1:          saved.SHA1,
			MD5:           saved.MD5,
		}.Text()
		replacement, err := mimetree.NewDescriptorLeaf(leaf, descriptor.FileName(name), text)
		if err != nil {
			return nil, t, fmt.Errorf("failed to build descriptor for %q: %w", name, err)
		}
		out[i] = replacement

		t.attachments++
		t.bytes += saved.Size
		t.extracted = append(t.extracted, mimeType)
		t.record(instrumentation.ResultExtracted, mimeType, saved.Size)
		logger.Info("attachment saved",
			slog.String(logging.KeyAttachment, name),
			slog.String(logging.KeyPath, saved.Path),
			slog.String(logging.KeyMimeType, mimeType),
			slog.Int64(logging.KeySize, saved.Size))
	}
	return out, t, nil
}

// commit inserts the rewritten copy into the original thread and tags the
// original.
func (e *Extractor) commit(ctx context.Context, r *run, ref MessageRef, raw RawMessage, subject string, body []byte) error {
	labelIDs := make([]string, 0, len(raw.LabelIDs)+1)
	for _, id := range raw.LabelIDs {
		if l, ok := r.labels[id]; ok && isBookkeepingLabel(l.Name) {
			continue
		}
		labelIDs = append(labelIDs, id)
	}
	labelIDs = append(labelIDs, r.post.ID)

	threadID := raw.ThreadID
	if threadID == "" {
		threadID = ref.ThreadID
	}

	inserted, err := e.sink.InsertMessage(ctx, body, labelIDs, threadID)
	e.audit.LogMutation(instrumentation.MutationEvent{
		Mutation:  instrumentation.MutationInsertMessage,
		MessageID: inserted.ID,
		ThreadID:  threadID,
		LabelID:   r.post.ID,
		LabelName: r.post.Name,
		Subject:   subject,
		Err:       err,
	}.WithSpanContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to insert rewritten message: %w", err)
	}
	e.logger.Debug("message state",
		slog.String(logging.KeyMessageID, ref.ID),
		slog.String(logging.KeyState, StateReinserted),
		slog.String("copy_id", inserted.ID))

	err = e.sink.AddLabel(ctx, ref.ID, r.pre.ID)
	e.audit.LogMutation(instrumentation.MutationEvent{
		Mutation:  instrumentation.MutationAddLabel,
		MessageID: ref.ID,
		ThreadID:  threadID,
		LabelID:   r.pre.ID,
		LabelName: r.pre.Name,
		Subject:   subject,
		Err:       err,
	}.WithSpanContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to label original message: %w", err)
	}
	return nil
}

func isBookkeepingLabel(name string) bool {
	return strings.HasSuffix(name, PreLabelSuffix) || strings.HasSuffix(name, PostLabelSuffix)
}
