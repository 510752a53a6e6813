package nrs

import (
	"context"
	"nrscrawler/internal/components/telemetry"
	"nrscrawler/internal/store"
	"nrscrawler/pkg/htmlutil"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const report_detail_parse_entry = "detail.parse-entry"

const (
	labelFirm        = "Firm"
	labelCategory    = "Category"
	labelFrom        = "From"
	labelTo          = "To"
	labelStatus      = "Status"
	labelTerms       = "Terms & Conditions"
	labelContactInfo = "Contact Information"
)

// SummaryRow is one row of a page of the listing.
type SummaryRow struct {
	Firm          string
	Jurisdictions string
	// Href is the postback pseudo-url of the detail link.
	Href string
}

// DetailEntry is one jurisdiction of a firm's or individual's registration.
type DetailEntry struct {
	Jurisdiction string
	// Firm is only set on individual panels.
	Firm       string
	Categories []store.Category
	Terms      string
	Contact    string
	// Individuals is nil when the entry has no individuals link.
	Individuals []store.Individual
	Historical  bool

	individualsHref string
}

type parser struct {
	protocol Protocol
	tel      telemetry.API
}

// summaryRows reads the two cell rows of the result table, other rows are
// headers or pager rows. A row without a detail link is kept with an empty
// Href.
func (p parser) summaryRows(table string) ([]SummaryRow, error) {
	doc, err := htmlutil.NewDocument(table)
	if err != nil {
		return nil, err
	}

	var rows []SummaryRow
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() != 2 {
			return
		}
		firm := htmlutil.Text(tds.Eq(0))
		href, ok := tds.Eq(0).Find("a").First().Attr("href")
		if !ok {
			p.tel.ReportWarning(report_detail_parse_entry, "summary row without a detail link", firm)
		}
		rows = append(rows, SummaryRow{
			Firm:          firm,
			Jurisdictions: htmlutil.Text(tds.Eq(1)),
			Href:          href,
		})
	})
	return rows, nil
}

// entries parses every jurisdiction entry selected by selector.
func (p parser) entries(doc *goquery.Document, selector string, historical bool) []DetailEntry {
	var out []DetailEntry
	doc.Find(selector).Each(func(_ int, cell *goquery.Selection) {
		entry := p.entry(cell)
		entry.Historical = historical
		out = append(out, entry)
	})
	return out
}

func rowLabel(row *goquery.Selection) (string, bool) {
	label := row.Find("th > span")
	if label.Length() == 0 {
		label = row.Find("th")
	}
	if label.Length() == 0 {
		return "", false
	}
	return htmlutil.Text(label), true
}

func (p parser) entry(cell *goquery.Selection) DetailEntry {
	entry := DetailEntry{
		Jurisdiction: htmlutil.Text(cell.Find(".sectiontitle > span")),
		Categories:   []store.Category{},
	}
	if entry.Jurisdiction == "" {
		p.tel.ReportWarning(report_detail_parse_entry, "entry without a jurisdiction")
	}

	rows := cell.ChildrenFiltered("table").First().
		ChildrenFiltered("tbody").
		ChildrenFiltered("tr")

	rows.Each(func(_ int, row *goquery.Selection) {
		if href, ok := p.individualsLink(row); ok {
			entry.individualsHref = href
		}

		label, ok := rowLabel(row)
		if !ok {
			return
		}
		value := htmlutil.Text(row.Find("td"))

		switch label {
		case labelFirm:
			entry.Firm = value
		case labelCategory:
			entry.Categories = append(entry.Categories, store.Category{Category: value})
		case labelFrom, labelTo, labelStatus:
			if len(entry.Categories) == 0 {
				p.tel.ReportWarning(
					report_detail_parse_entry,
					"field without an open category",
					entry.Jurisdiction,
					label,
					value,
				)
				return
			}
			open := &entry.Categories[len(entry.Categories)-1]
			switch label {
			case labelFrom:
				open.From = value
			case labelTo:
				open.To = value
			case labelStatus:
				open.Status = value
			}
		case labelTerms:
			terms := row.Find("td > span")
			if terms.Length() == 0 {
				entry.Terms = value
				return
			}
			entry.Terms = htmlutil.Text(terms)
		case labelContactInfo:
			entry.Contact = p.contact(row)
		}
	})

	return entry
}

// contact joins every line of the nested contact table, then drops the
// boilerplate link text and collapses whitespace.
func (p parser) contact(row *goquery.Selection) string {
	var text strings.Builder
	value := row.ChildrenFiltered("td").First()
	value.Find("table td").Each(func(_ int, cell *goquery.Selection) {
		var lines []string
		for _, s := range htmlutil.GetStrings(cell.Nodes[0]) {
			lines = append(lines, strings.TrimSpace(s))
		}
		text.WriteString("\n")
		text.WriteString(strings.Join(lines, "\n"))
	})
	contact := text.String()
	if p.protocol.ContactBoilerplate != "" {
		contact = strings.ReplaceAll(contact, p.protocol.ContactBoilerplate, "")
	}
	return htmlutil.CollapseWhitespace(contact)
}

func (p parser) individualsLink(row *goquery.Selection) (string, bool) {
	var (
		href  string
		found bool
	)
	row.Find("span > a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(htmlutil.GetText(a.Nodes[0]), p.protocol.IndividualsLinkText) {
			return true
		}
		href, found = a.Attr("href")
		return !found
	})
	return href, found
}

// previousNames joins the former names of a firm listed on its historical
// panel, skipping the label cells.
func (p parser) previousNames(doc *goquery.Document) string {
	var names []string
	doc.Find(p.protocol.PreviousNamesSelector).Each(func(_ int, cell *goquery.Selection) {
		text := htmlutil.GetText(cell.Nodes[0])
		if strings.Contains(text, p.protocol.PreviousNameLabel) {
			return
		}
		name := strings.TrimSpace(text)
		if name == "" {
			return
		}
		names = append(names, name)
	})
	return strings.Join(names, "\n\n")
}

// individualAnchors returns the individual detail links of a nested listing.
func (p parser) individualAnchors(ctx context.Context, response string) ([]htmlutil.Anchor, error) {
	doc, err := htmlutil.NewDocument(response)
	if err != nil {
		return nil, err
	}
	var out []htmlutil.Anchor
	for _, a := range htmlutil.GetAnchors(ctx, doc.Find("tr > td > a")) {
		if !strings.Contains(a.Href, p.protocol.IndividualDetailMarker) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
