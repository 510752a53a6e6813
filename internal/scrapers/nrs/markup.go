package nrs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type panelMarkup struct {
	protocol PanelProtocol
	repair   *regexp.Regexp
}

// repairHistory collapses the malformed nesting historical panels are
// served with. Parsing the raw markup drops or misattributes rows.
func (p panelMarkup) repairHistory(text string) string {
	return p.repair.ReplaceAllString(text, p.protocol.RepairReplacement)
}

// markup holds the compiled text patterns of a Protocol. Patterns only ever
// cut a fragment out of a response or repair it, field values are read
// with a real html parser.
type markup struct {
	protocol    Protocol
	recordCount *regexp.Regexp
	resultTable *regexp.Regexp
	details     *regexp.Regexp
	firm        panelMarkup
	individual  panelMarkup
}

func compilePanel(name string, p PanelProtocol) (panelMarkup, error) {
	repair, err := regexp.Compile(p.RepairPattern)
	if err != nil {
		return panelMarkup{}, fmt.Errorf("%s repair pattern: %w", name, err)
	}
	return panelMarkup{protocol: p, repair: repair}, nil
}

func newMarkup(p Protocol) (markup, error) {
	var (
		m   = markup{protocol: p}
		err error
	)
	m.recordCount, err = regexp.Compile(p.RecordCountPattern)
	if err != nil {
		return markup{}, fmt.Errorf("record count pattern: %w", err)
	}
	if m.recordCount.NumSubexp() < 1 {
		return markup{}, fmt.Errorf("record count pattern must have a capture group")
	}
	m.resultTable, err = regexp.Compile(p.ResultTablePattern)
	if err != nil {
		return markup{}, fmt.Errorf("result table pattern: %w", err)
	}
	m.details, err = regexp.Compile(p.DetailsPattern)
	if err != nil {
		return markup{}, fmt.Errorf("details pattern: %w", err)
	}
	if strings.Count(p.PagerControl, "%") != 1 || !strings.Contains(p.PagerControl, "%d") {
		return markup{}, fmt.Errorf("pager control must contain a single %%d verb, got '%s'", p.PagerControl)
	}
	m.firm, err = compilePanel("firm", p.Firm)
	if err != nil {
		return markup{}, err
	}
	m.individual, err = compilePanel("individual", p.Individual)
	if err != nil {
		return markup{}, err
	}
	return m, nil
}

// RecordCount reads the declared number of records of a listing.
func (m markup) RecordCount(response string) (int, error) {
	groups := m.recordCount.FindStringSubmatch(response)
	if len(groups) < 2 {
		return 0, ErrRecordCountNotFound
	}
	count, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRecordCountNotFound, err)
	}
	return count, nil
}

func (m markup) ResultTable(response string) (string, error) {
	table := m.resultTable.FindString(response)
	if table == "" {
		return "", fmt.Errorf("%w: result table", ErrMarkupNotFound)
	}
	return table, nil
}

func (m markup) DetailsDiv(response string) (string, bool) {
	div := m.details.FindString(response)
	return div, div != ""
}
