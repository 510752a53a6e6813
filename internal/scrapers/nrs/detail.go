package nrs

import (
	"context"
	"fmt"
	"net/http"
	"nrscrawler/internal/components/telemetry"
	"nrscrawler/internal/store"
	"nrscrawler/pkg/htmlutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_detail_resolve_firm        = "detail.resolve-firm"
	report_individuals_resolve        = "individuals.resolve"
	report_individuals_paginate       = "individuals.paginate"
	report_individuals_cache_hits     = "individuals.cache-hits"
	report_individuals_detail_fetches = "individuals.detail-fetches"
)

// Sender sends a request and returns the body of a successful response.
type Sender interface {
	Send(ctx context.Context, req Request) (string, error)
}

// IndividualCache is the read-through cache of individuals for a run.
type IndividualCache interface {
	GetIndividual(ctx context.Context, key store.IndividualKey) (store.Individual, bool, error)
	PutIndividual(ctx context.Context, individual store.Individual) error
}

// FirmDetail is everything resolved from a firm's detail link.
type FirmDetail struct {
	// Entries holds the current entries followed by the historical ones,
	// the two are never merged.
	Entries         []DetailEntry
	HistoricalNames string
}

// Resolver drills down into detail panels. Every method takes the triad of
// the branch it starts from and never touches the session's current triad.
type Resolver struct {
	url     string
	sender  Sender
	session *Session
	markup  markup
	parser  parser
	cache   IndividualCache
	tel     telemetry.API

	cacheHits     int64
	detailFetches int64
}

func (r *Resolver) post(ctx context.Context, body string) (string, error) {
	return r.sender.Send(ctx, Request{
		Method: http.MethodPost,
		Url:    r.url,
		Body:   body,
	})
}

type panelResponses struct {
	current string
	// history is the raw historical response, empty if the panel has none.
	history    string
	hasHistory bool
}

// fetchPanel activates a detail link and, if the panel has one, its
// historical records link using the tokens of the detail response.
func (r *Resolver) fetchPanel(ctx context.Context, panel panelMarkup, controlId string, triad TokenTriad) (panelResponses, error) {
	current, err := r.post(ctx, r.session.ControlBody(controlId, triad))
	if err != nil {
		return panelResponses{}, err
	}
	out := panelResponses{current: current}
	if !strings.Contains(current, panel.protocol.HistoricalMarker) {
		return out, nil
	}

	detailTriad, err := r.session.CaptureTokens(current)
	if err != nil {
		return panelResponses{}, fmt.Errorf("detail response: %w", err)
	}
	history, err := r.post(ctx, r.session.ControlBody(panel.protocol.HistoricalControl, detailTriad))
	if err != nil {
		return panelResponses{}, err
	}
	out.history = history
	out.hasHistory = true
	return out, nil
}

type parsedPanel struct {
	entries []DetailEntry
	// historyDoc is nil when there is no parsable historical panel.
	historyDoc *goquery.Document
}

// parsePanel parses the current and (repaired) historical entries.
func (r *Resolver) parsePanel(panel panelMarkup, responses panelResponses) (parsedPanel, error) {
	var out parsedPanel

	div, ok := r.markup.DetailsDiv(responses.current)
	if ok {
		doc, err := htmlutil.NewDocument(div)
		if err != nil {
			return parsedPanel{}, err
		}
		out.entries = r.parser.entries(doc, panel.protocol.LocationsSelector, false)
	} else {
		r.tel.ReportWarning(report_detail_resolve_firm, "detail response without a details div")
	}

	if !responses.hasHistory {
		return out, nil
	}
	div, ok = r.markup.DetailsDiv(panel.repairHistory(responses.history))
	if !ok {
		r.tel.ReportWarning(report_detail_resolve_firm, "historical response without a details div")
		return out, nil
	}
	doc, err := htmlutil.NewDocument(div)
	if err != nil {
		return parsedPanel{}, err
	}
	out.entries = append(out.entries, r.parser.entries(doc, panel.protocol.LocationsSelector, true)...)
	out.historyDoc = doc
	return out, nil
}

// ResolveFirm resolves the detail panel of a summary row, including its
// historical entries, previous names and registered individuals. triad must
// be the triad of the listing page the row came from.
func (r *Resolver) ResolveFirm(ctx context.Context, row SummaryRow, triad TokenTriad) (FirmDetail, error) {
	responses, err := r.fetchPanel(ctx, r.markup.firm, ControlId(row.Href), triad)
	if err != nil {
		return FirmDetail{}, fmt.Errorf("resolve firm %s: %w", row.Firm, err)
	}
	parsed, err := r.parsePanel(r.markup.firm, responses)
	if err != nil {
		return FirmDetail{}, fmt.Errorf("resolve firm %s: %w", row.Firm, err)
	}

	detail := FirmDetail{Entries: parsed.entries}
	if parsed.historyDoc != nil {
		detail.HistoricalNames = r.parser.previousNames(parsed.historyDoc)
	}

	for i := range detail.Entries {
		entry := &detail.Entries[i]
		if entry.individualsHref == "" {
			continue
		}

		// the link must be activated with the tokens of the response it
		// was found in
		source := responses.current
		if entry.Historical {
			source = responses.history
		}
		branch, err := r.session.CaptureTokens(source)
		if err != nil {
			return FirmDetail{}, fmt.Errorf("resolve firm %s: %w", row.Firm, err)
		}

		entry.Individuals, err = r.resolveIndividuals(ctx, entry.individualsHref, branch, entry.Jurisdiction, row.Firm)
		if err != nil {
			return FirmDetail{}, fmt.Errorf("resolve individuals of %s in %s: %w", row.Firm, entry.Jurisdiction, err)
		}
	}

	return detail, nil
}

// resolveIndividuals walks the nested, paginated listing of individuals of
// a firm in a jurisdiction.
func (r *Resolver) resolveIndividuals(ctx context.Context, href string, triad TokenTriad, jurisdiction, firm string) ([]store.Individual, error) {
	r.tel.ReportDebug("retrieving individuals", firm, jurisdiction)

	listing, err := r.post(ctx, r.session.ControlBody(ControlId(href), triad))
	if err != nil {
		return nil, err
	}
	if strings.Contains(listing, r.parser.protocol.NoRecordsMarker) {
		return []store.Individual{}, nil
	}

	declared, err := r.markup.RecordCount(listing)
	if err != nil {
		return nil, fmt.Errorf("individuals listing: %w", err)
	}

	out := []store.Individual{}
	processed := 0
	lastProcessed := 0
	page := 1

	for {
		listingTriad, err := r.session.CaptureTokens(listing)
		if err != nil {
			return nil, fmt.Errorf("individuals listing page %d: %w", page, err)
		}
		anchors, err := r.parser.individualAnchors(ctx, listing)
		if err != nil {
			return nil, err
		}

		for _, a := range anchors {
			processed++

			individual, ok, err := r.individual(ctx, a, listingTriad, jurisdiction, firm)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, individual)
			}
		}

		if processed >= declared {
			break
		}
		if processed == lastProcessed {
			r.tel.ReportWarning(
				report_individuals_paginate,
				"broke out of possible infinite loop retrieving individuals",
				firm,
				jurisdiction,
				processed,
				declared,
			)
			break
		}

		page++
		listing, err = r.post(ctx, r.session.ControlBody(r.session.PagerControl(page), listingTriad))
		if err != nil {
			return nil, err
		}
		lastProcessed = processed
	}

	return out, nil
}

// individual is a read-through cache lookup of an individual, ok is false
// when the individual could not be resolved under this firm.
func (r *Resolver) individual(ctx context.Context, a htmlutil.Anchor, triad TokenTriad, jurisdiction, firm string) (store.Individual, bool, error) {
	key := store.IndividualKey{
		Jurisdiction: jurisdiction,
		Name:         a.Name,
		Firm:         firm,
	}
	cached, ok, err := r.cache.GetIndividual(ctx, key)
	if err != nil {
		return store.Individual{}, false, err
	}
	if ok {
		r.cacheHits++
		r.tel.ReportCount(report_individuals_cache_hits, r.cacheHits)
		return cached, true, nil
	}

	err = r.fetchIndividual(ctx, a, triad)
	if err != nil {
		return store.Individual{}, false, fmt.Errorf("resolve individual %s: %w", a.Name, err)
	}

	// read back what was stored, a panel that failed to parse under this
	// key is left out instead of being emitted half empty
	stored, ok, err := r.cache.GetIndividual(ctx, key)
	if err != nil {
		return store.Individual{}, false, err
	}
	if !ok {
		r.tel.ReportWarning(report_individuals_resolve, "individual not stored under firm", a.Name, firm, jurisdiction)
	}
	return stored, ok, nil
}

// fetchIndividual resolves every entry of an individual's panel into the
// cache, each under its own jurisdiction and firm.
func (r *Resolver) fetchIndividual(ctx context.Context, a htmlutil.Anchor, triad TokenTriad) error {
	r.detailFetches++
	r.tel.ReportCount(report_individuals_detail_fetches, r.detailFetches)

	responses, err := r.fetchPanel(ctx, r.markup.individual, ControlId(a.Href), triad)
	if err != nil {
		return err
	}
	parsed, err := r.parsePanel(r.markup.individual, responses)
	if err != nil {
		return err
	}

	for _, entry := range parsed.entries {
		err := r.cache.PutIndividual(ctx, store.Individual{
			Jurisdiction: entry.Jurisdiction,
			Name:         a.Name,
			Firm:         entry.Firm,
			Terms:        entry.Terms,
			Contact:      entry.Contact,
			Categories:   entry.Categories,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
