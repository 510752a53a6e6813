package nrs

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeSite replays the async postback protocol of the registration search.
// Every response carries a triad derived from its id so tests can check
// which response the tokens of a request came from.
type fakeSite struct {
	mutex sync.Mutex

	requests     []fakeRequest
	pageRequests int

	// pages maps the page that is served to its summary rows
	pages map[int]string
	// count is the declared record count, countFor overrides it when set
	count    int
	countFor func(nthPageRequest int) int
	// pageFor maps a requested page number to the page that is served
	pageFor func(requested, nthPageRequest int) int
	// controls maps "<target>" or "<target>@<view state>" to a response
	controls map[string]fakeControl
	// failures is the number of requests that fail before the site answers
	failures int
}

type fakeControl struct {
	id   string
	body string
}

type fakeRequest struct {
	Method string
	Form   url.Values
}

func (r fakeRequest) target() string {
	return r.Form.Get("__EVENTTARGET")
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:    map[int]string{},
		controls: map[string]fakeControl{},
	}
}

func (s *fakeSite) control(key, id, body string) {
	s.controls[key] = fakeControl{id: id, body: body}
}

func viewStateOf(id string) string {
	return "vs/" + id + "+="
}

func validationOf(id string) string {
	return "ev/" + id
}

func generatorOf(id string) string {
	return "GEN" + strings.ToUpper(id)
}

// encodedTriad is the triad the crawler should capture from response id.
func encodedTriad(id string) TokenTriad {
	return TokenTriad{
		ViewState:  url.QueryEscape(viewStateOf(id)),
		Validation: url.QueryEscape(validationOf(id)),
		Generator:  url.QueryEscape(generatorOf(id)),
	}
}

func asyncResponse(id, markup string) string {
	return fmt.Sprintf(
		"1|#||4|%d|updatePanel|ctl00_bodyContent_upnl|%s|0|hiddenField|__EVENTTARGET||%d|hiddenField|__VIEWSTATE|%s|%d|hiddenField|__VIEWSTATEGENERATOR|%s|%d|hiddenField|__EVENTVALIDATION|%s|",
		len(markup), markup,
		len(viewStateOf(id)), viewStateOf(id),
		len(generatorOf(id)), generatorOf(id),
		len(validationOf(id)), validationOf(id),
	)
}

var initialDocument = fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
<form method="post" action="./nrsearchResult.aspx?ID=1325" id="form1">
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="%s" />
<input type="hidden" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" value="%s" />
<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="%s" />
</form>
</body>
</html>`, viewStateOf("seed"), generatorOf("seed"), validationOf("seed"))

func (s *fakeSite) respond(method string, form url.Values) (int, string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.requests = append(s.requests, fakeRequest{Method: method, Form: form})
	if s.failures > 0 {
		s.failures--
		return http.StatusServiceUnavailable, "server too busy"
	}

	if method == http.MethodGet {
		return http.StatusOK, initialDocument
	}

	target := form.Get("__EVENTTARGET")
	if target == "" {
		s.pageRequests++
		requested, _ := strconv.Atoi(form.Get("page"))
		served := requested
		if s.pageFor != nil {
			served = s.pageFor(requested, s.pageRequests)
		}
		count := s.count
		if s.countFor != nil {
			count = s.countFor(s.pageRequests)
		}
		return http.StatusOK, asyncResponse(
			fmt.Sprintf("page%d", served),
			fmt.Sprintf(
				`<span id="ctl00_bodyContent_lblCount">There are %d records found</span><table class="gridview_style"><tr><th>Firm</th><th>Jurisdictions</th></tr>%s</table>`,
				count, s.pages[served],
			),
		)
	}

	c, ok := s.controls[target+"@"+form.Get("__VIEWSTATE")]
	if !ok {
		c, ok = s.controls[target]
	}
	if !ok {
		return http.StatusInternalServerError, fmt.Sprintf("unknown control %s with view state %s", target, form.Get("__VIEWSTATE"))
	}
	return http.StatusOK, asyncResponse(c.id, c.body)
}

func (s *fakeSite) Requests() []fakeRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]fakeRequest(nil), s.requests...)
}

// RequestsTo returns every postback that targeted control.
func (s *fakeSite) RequestsTo(control string) []fakeRequest {
	var out []fakeRequest
	for _, r := range s.Requests() {
		if r.target() == control {
			out = append(out, r)
		}
	}
	return out
}

// PageRequests returns every listing page request.
func (s *fakeSite) PageRequests() []fakeRequest {
	var out []fakeRequest
	for _, r := range s.Requests() {
		if r.Method == http.MethodPost && r.target() == "" {
			out = append(out, r)
		}
	}
	return out
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status, body := s.respond(r.Method, r.PostForm)
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func (s *fakeSite) Start() *httptest.Server {
	return httptest.NewServer(s)
}

// Send implements Sender without going over the network.
func (s *fakeSite) Send(ctx context.Context, req Request) (string, error) {
	form, err := url.ParseQuery(req.Body)
	if err != nil {
		return "", err
	}
	status, body := s.respond(req.Method, form)
	if status != http.StatusOK {
		return "", &TransportError{Method: req.Method, Url: req.Url, Attempts: 1, Status: status, Body: body}
	}
	return body, nil
}

type fakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, time.March, 4, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sleeps = append(c.sleeps, d)
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

var testTemplates = Templates{
	Seed:     "kind=seed&page=[PAGE_NUMBER]&__VIEWSTATE=[VIEW_STATE]&__EVENTVALIDATION=[VALIDATION]&__VIEWSTATEGENERATOR=[GENERATOR]",
	Continue: "kind=continue&page=[PAGE_NUMBER]&__VIEWSTATE=[VIEW_STATE]&__EVENTVALIDATION=[VALIDATION]&__VIEWSTATEGENERATOR=[GENERATOR]",
	Control:  "kind=control&__EVENTTARGET=[CONTROL_ID]&__EVENTARGUMENT=&__VIEWSTATE=[VIEW_STATE]&__EVENTVALIDATION=[VALIDATION]&__VIEWSTATEGENERATOR=[GENERATOR]",
}

const (
	firmLocations       = "ctl00_bodyContent_dlstFirmLocations"
	individualLocations = "ctl00_bodyContent_dlstIndLocations"

	firmHistoryControl       = "ctl00$bodyContent$lbtnShowFirmHistorical"
	individualHistoryControl = "ctl00$bodyContent$lbtnShowIndHistorical"
)

func postbackHref(control string) string {
	return "javascript:__doPostBack('" + control + "','')"
}

func fieldRow(label, value string) string {
	return fmt.Sprintf(`<tr><th><span>%s</span></th><td>%s</td></tr>`, html.EscapeString(label), value)
}

func bareFieldRow(label, value string) string {
	return fmt.Sprintf(`<tr><th>%s</th><td>%s</td></tr>`, html.EscapeString(label), value)
}

func contactRow(cells ...string) string {
	rows := ""
	for _, c := range cells {
		rows += "<tr><td>" + c + "</td></tr>"
	}
	return fmt.Sprintf(`<tr><th><span>Contact Information</span></th><td><table>%s</table></td></tr>`, rows)
}

func individualsRow(control string) string {
	return fmt.Sprintf(
		`<tr><td colspan="2"><span><a href="%s">Registered and Permitted Individuals</a></span></td></tr>`,
		postbackHref(control),
	)
}

func locationEntry(jurisdiction string, rows ...string) string {
	return fmt.Sprintf(
		`<tr><td><div class="sectiontitle"><span>%s</span></div><table>%s</table></td></tr>`,
		jurisdiction, strings.Join(rows, ""),
	)
}

func detailsDiv(list string, entries ...string) string {
	return fmt.Sprintf(
		`<div id="ctl00_bodyContent_divSearchResults"><div class="results"><table id="%s">%s</table></div></div>`,
		list, strings.Join(entries, ""),
	)
}

func historicalLink(control string) string {
	return fmt.Sprintf(`<a id="%s" href="%s">Show Historical Records</a>`, strings.ReplaceAll(control, "$", "_"), postbackHref(control))
}

func summaryRow(firm, jurisdictions, control string) string {
	return fmt.Sprintf(`<tr><td><a href="%s">%s</a></td><td>%s</td></tr>`, postbackHref(control), firm, jurisdictions)
}

func individualsListing(count int, rows ...string) string {
	return fmt.Sprintf(
		`<span>There are %d records found</span><table class="gridview_style"><tr><th>Name</th></tr>%s</table>`,
		count, strings.Join(rows, ""),
	)
}

func individualRow(name, control string) string {
	return fmt.Sprintf(`<tr><td><a href="%s">%s</a></td></tr>`, postbackHref(control), name)
}
