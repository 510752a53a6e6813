package nrs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"nrscrawler/internal/components/assert"
	"nrscrawler/internal/components/chrono"
	"nrscrawler/internal/components/telemetry"
	"nrscrawler/internal/store"
)

const (
	report_walker_run     = "walker.run"
	report_walker_pages   = "walker.pages"
	report_walker_records = "walker.records"
)

// State is the persistent state of a crawl.
type State interface {
	IndividualCache
	LoadCheckpoint(ctx context.Context) (store.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) error
	ClearCheckpoint(ctx context.Context) error
	ClearIndividuals(ctx context.Context) error
}

// Sink receives the records of every page.
type Sink interface {
	Append(records ...any) error
	Replay(w io.Writer) (int, error)
	Remove() error
}

type Options struct {
	SourceUrl string
	Templates Templates
	Protocol  Protocol
	// PageSize is the number of rows the server returns per page.
	PageSize int
	// FirstPageRequestNumber is the page number sent for the first page.
	// The observed server returns nothing useful for page 1 right after
	// the priming request and the first page of results for page 2.
	FirstPageRequestNumber int
	// DiscardPrimingPage sends one throwaway request for page 1 before
	// the loop starts.
	DiscardPrimingPage bool
	// Replay receives the records of the interrupted run when resuming,
	// it can be nil.
	Replay io.Writer
}

// Walker drives the crawl of the whole listing. It issues one request at a
// time, the server-side postback state cannot be shared by concurrent
// requests.
type Walker struct {
	opts     Options
	sender   Sender
	session  *Session
	markup   markup
	parser   parser
	resolver *Resolver
	state    State
	sink     Sink
	chrono   chrono.API
	tel      telemetry.API
}

func NewWalker(opts Options, sender Sender, state State, sink Sink, clock chrono.API, tel telemetry.API) (*Walker, error) {
	assert.NotNil(sender)
	assert.NotNil(state)
	assert.NotNil(sink)
	assert.NotNil(clock)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.SourceUrl)
	assert.Positive("page size", opts.PageSize)

	err := opts.Templates.Validate()
	if err != nil {
		return nil, err
	}
	m, err := newMarkup(opts.Protocol)
	if err != nil {
		return nil, err
	}
	if opts.FirstPageRequestNumber <= 0 {
		opts.FirstPageRequestNumber = 1
	}

	session := NewSession(opts.Templates, opts.Protocol)
	p := parser{protocol: opts.Protocol, tel: tel}

	return &Walker{
		opts:    opts,
		sender:  sender,
		session: session,
		markup:  m,
		parser:  p,
		resolver: &Resolver{
			url:     opts.SourceUrl,
			sender:  sender,
			session: session,
			markup:  m,
			parser:  p,
			cache:   state,
			tel:     tel,
		},
		state:  state,
		sink:   sink,
		chrono: clock,
		tel:    tel,
	}, nil
}

// Reset discards the checkpoint, the individual cache and the output so the
// next run starts from page 1.
func (w *Walker) Reset(ctx context.Context) error {
	err := w.state.ClearCheckpoint(ctx)
	if err != nil {
		return err
	}
	err = w.state.ClearIndividuals(ctx)
	if err != nil {
		return err
	}
	return w.sink.Remove()
}

func (w *Walker) send(ctx context.Context, method, body string) (string, error) {
	return w.sender.Send(ctx, Request{
		Method: method,
		Url:    w.opts.SourceUrl,
		Body:   body,
	})
}

// prime seeds the session from the initial form and sends the throwaway
// first page request.
func (w *Walker) prime(ctx context.Context) error {
	w.tel.ReportDebug("getting initial view state")
	document, err := w.send(ctx, http.MethodGet, "")
	if err != nil {
		return err
	}
	triad, err := w.session.SeedTokens(document)
	if err != nil {
		return fmt.Errorf("initial form: %w", err)
	}
	w.session.Replace(triad)

	if !w.opts.DiscardPrimingPage {
		return nil
	}
	res, err := w.send(ctx, http.MethodPost, w.session.PageBody(1, triad))
	if err != nil {
		return err
	}
	triad, err = w.session.CaptureTokens(res)
	if err != nil {
		return fmt.Errorf("priming page: %w", err)
	}
	w.session.Replace(triad)
	return nil
}

func (w *Walker) more(checkpoint store.Checkpoint) bool {
	if checkpoint.CheckCount == 0 {
		return true
	}
	return (checkpoint.Page-1)*w.opts.PageSize < checkpoint.CheckCount
}

// Run crawls the listing from the checkpoint (or page 1) to the end.
func (w *Walker) Run(ctx context.Context) error {
	checkpoint, err := w.state.LoadCheckpoint(ctx)
	if err != nil {
		return err
	}

	if checkpoint.Resuming() {
		w.tel.ReportDebug(fmt.Sprintf("resuming run from page %d", checkpoint.Page))
		if w.opts.Replay != nil {
			_, err = w.sink.Replay(w.opts.Replay)
			if err != nil {
				return fmt.Errorf("replay previous records: %w", err)
			}
		}
	} else {
		err = w.Reset(ctx)
		if err != nil {
			return err
		}
		checkpoint = store.Checkpoint{Page: 1}
	}

	err = w.prime(ctx)
	if err != nil {
		return err
	}

	records := int64(0)
	for w.more(checkpoint) {
		checkpoint, err = w.page(ctx, checkpoint, &records)
		if err != nil {
			return err
		}
	}

	w.tel.ReportDebug("run finished", checkpoint.Page-1, records)
	err = w.state.ClearCheckpoint(ctx)
	if err != nil {
		return err
	}
	return w.state.ClearIndividuals(ctx)
}

// page processes one page of the listing and returns the checkpoint of the
// next one.
func (w *Walker) page(ctx context.Context, checkpoint store.Checkpoint, records *int64) (store.Checkpoint, error) {
	size := w.opts.PageSize
	w.tel.ReportDebug(fmt.Sprintf(
		"requesting rows %d - %d",
		(checkpoint.Page-1)*size,
		checkpoint.Page*size,
	))

	requestNumber := checkpoint.Page
	if checkpoint.Page == 1 {
		requestNumber = w.opts.FirstPageRequestNumber
	}
	res, err := w.send(ctx, http.MethodPost, w.session.PageBody(requestNumber, w.session.Current()))
	if err != nil {
		return checkpoint, err
	}
	triad, err := w.session.CaptureTokens(res)
	if err != nil {
		return checkpoint, fmt.Errorf("page %d: %w", checkpoint.Page, err)
	}
	w.session.Replace(triad)

	declared, err := w.markup.RecordCount(res)
	if err != nil {
		return checkpoint, fmt.Errorf("page %d: %w: %w", checkpoint.Page, ErrEmptyDataset, err)
	}
	if checkpoint.CheckCount != 0 && checkpoint.CheckCount != declared {
		w.tel.ReportBroken(report_walker_run, "record count changed", checkpoint.CheckCount, declared)
		err = w.Reset(ctx)
		if err != nil {
			return checkpoint, err
		}
		return checkpoint, fmt.Errorf(
			"%w: expected %d records, page %d declared %d",
			ErrDatasetChanged, checkpoint.CheckCount, checkpoint.Page, declared,
		)
	}
	if declared <= 0 {
		return checkpoint, ErrEmptyDataset
	}
	checkpoint.CheckCount = declared

	table, err := w.markup.ResultTable(res)
	if err != nil {
		return checkpoint, fmt.Errorf("page %d: %w", checkpoint.Page, err)
	}
	rows, err := w.parser.summaryRows(table)
	if err != nil {
		return checkpoint, err
	}

	var out []any
	for _, row := range rows {
		var detail FirmDetail
		if row.Href != "" {
			detail, err = w.resolver.ResolveFirm(ctx, row, triad)
			if err != nil {
				return checkpoint, err
			}
		}
		for _, r := range Flatten(row, detail, w.chrono.Now(), w.opts.SourceUrl) {
			out = append(out, r)
		}
	}
	err = w.sink.Append(out...)
	if err != nil {
		return checkpoint, err
	}
	*records += int64(len(out))

	next := store.Checkpoint{
		Page:       checkpoint.Page + 1,
		CheckCount: checkpoint.CheckCount,
	}
	err = w.state.SaveCheckpoint(ctx, next)
	if err != nil {
		return checkpoint, err
	}

	w.tel.ReportCount(report_walker_pages, int64(checkpoint.Page))
	w.tel.ReportCount(report_walker_records, *records)
	return next, nil
}
