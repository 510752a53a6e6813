package nrs

import (
	"fmt"
	"net/url"
	"nrscrawler/pkg/htmlutil"
	"regexp"
	"strconv"
	"strings"
)

// TokenTriad is the set of server-issued tokens every postback must carry.
// The values are url-encoded. A triad is always taken whole from a single
// response, it is never partially updated.
type TokenTriad struct {
	ViewState  string
	Validation string
	Generator  string
}

// Session builds postback bodies and captures the tokens of responses.
// It holds the triad of the main listing, drill-downs carry their own
// copies as plain values.
type Session struct {
	templates Templates
	protocol  Protocol

	viewStatePattern  *regexp.Regexp
	validationPattern *regexp.Regexp
	generatorPattern  *regexp.Regexp

	current TokenTriad
}

func asyncFieldPattern(field string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)\|` + regexp.QuoteMeta(field) + `\|(.*?)\|`)
}

func NewSession(templates Templates, protocol Protocol) *Session {
	return &Session{
		templates:         templates,
		protocol:          protocol,
		viewStatePattern:  asyncFieldPattern(protocol.ViewStateField),
		validationPattern: asyncFieldPattern(protocol.ValidationField),
		generatorPattern:  asyncFieldPattern(protocol.GeneratorField),
	}
}

// Current is the triad of the main listing.
func (s *Session) Current() TokenTriad {
	return s.current
}

// Replace swaps the triad of the main listing.
func (s *Session) Replace(triad TokenTriad) {
	s.current = triad
}

func captureField(pattern *regexp.Regexp, field, response string) (string, error) {
	groups := pattern.FindStringSubmatch(response)
	if len(groups) < 2 {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, field)
	}
	return url.QueryEscape(groups[1]), nil
}

// CaptureTokens extracts the triad from an async postback response, where
// fields are encoded as |<FIELD>|<value>|.
func (s *Session) CaptureTokens(response string) (TokenTriad, error) {
	var (
		triad TokenTriad
		err   error
	)
	triad.ViewState, err = captureField(s.viewStatePattern, s.protocol.ViewStateField, response)
	if err != nil {
		return TokenTriad{}, err
	}
	triad.Validation, err = captureField(s.validationPattern, s.protocol.ValidationField, response)
	if err != nil {
		return TokenTriad{}, err
	}
	triad.Generator, err = captureField(s.generatorPattern, s.protocol.GeneratorField, response)
	if err != nil {
		return TokenTriad{}, err
	}
	return triad, nil
}

// SeedTokens extracts the triad from the hidden inputs of a full html
// document, which is what the initial GET of the form returns.
func (s *Session) SeedTokens(document string) (TokenTriad, error) {
	doc, err := htmlutil.NewDocument(document)
	if err != nil {
		return TokenTriad{}, err
	}

	read := func(field string) (string, error) {
		input := doc.Find("#" + field)
		value, ok := input.Attr("value")
		if !ok {
			return "", fmt.Errorf("%w: hidden input %s", ErrTokenNotFound, field)
		}
		return url.QueryEscape(value), nil
	}

	var triad TokenTriad
	triad.ViewState, err = read(s.protocol.ViewStateField)
	if err != nil {
		return TokenTriad{}, err
	}
	triad.Validation, err = read(s.protocol.ValidationField)
	if err != nil {
		return TokenTriad{}, err
	}
	triad.Generator, err = read(s.protocol.GeneratorField)
	if err != nil {
		return TokenTriad{}, err
	}
	return triad, nil
}

func fillTokens(body string, triad TokenTriad, extra ...string) string {
	pairs := append(
		extra,
		placeholderViewState, triad.ViewState,
		placeholderValidation, triad.Validation,
		placeholderGenerator, triad.Generator,
	)
	return strings.NewReplacer(pairs...).Replace(body)
}

// PageBody builds the body of a listing page request. The template is
// chosen by the page number that is actually sent: 1 uses the seed
// template, everything else the continue template.
func (s *Session) PageBody(pageNumber int, triad TokenTriad) string {
	template := s.templates.Continue
	if pageNumber == 1 {
		template = s.templates.Seed
	}
	return fillTokens(template, triad, placeholderPageNumber, strconv.Itoa(pageNumber))
}

// ControlBody builds the body of a postback activating controlId, which
// must already be url-encoded.
func (s *Session) ControlBody(controlId string, triad TokenTriad) string {
	return fillTokens(s.templates.Control, triad, placeholderControlId, controlId)
}

// PagerControl is the encoded control id of page n of a nested listing.
func (s *Session) PagerControl(n int) string {
	return url.QueryEscape(fmt.Sprintf(s.protocol.PagerControl, n))
}

const (
	postbackPrefix = "javascript:__doPostBack('"
	postbackSuffix = "','')"
)

// ControlId extracts the url-encoded control id from a postback anchor href
// like javascript:__doPostBack('<id>','').
func ControlId(href string) string {
	id := strings.TrimSpace(href)
	id = strings.TrimPrefix(id, postbackPrefix)
	id = strings.TrimSuffix(id, postbackSuffix)
	return url.QueryEscape(id)
}
