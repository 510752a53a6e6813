package nrs

// PanelProtocol describes a detail panel (firm or individual) of the search.
type PanelProtocol struct {
	// LocationsSelector selects one cell per jurisdiction entry inside the
	// details div.
	LocationsSelector string `json:"locations_selector"`
	// HistoricalMarker is a substring that is only present when the panel
	// has a historical records link.
	HistoricalMarker string `json:"historical_marker"`
	// HistoricalControl is the already url-encoded control id that shows
	// historical records.
	HistoricalControl string `json:"historical_control"`
	// RepairPattern matches the malformed nesting historical panels are
	// served with, every match is replaced by RepairReplacement.
	RepairPattern     string `json:"repair_pattern"`
	RepairReplacement string `json:"repair_replacement"`
}

// Protocol is every marker, selector, control id and pattern the crawler
// depends on. They are observed properties of one deployment of the search
// form, so they are kept out of the crawling logic.
type Protocol struct {
	ViewStateField  string `json:"view_state_field"`
	ValidationField string `json:"validation_field"`
	GeneratorField  string `json:"generator_field"`

	// RecordCountPattern must have a single capture group with the count.
	RecordCountPattern string `json:"record_count_pattern"`
	// ResultTablePattern extracts the summary table from a page response.
	ResultTablePattern string `json:"result_table_pattern"`
	// DetailsPattern extracts the details div from a detail response.
	DetailsPattern string `json:"details_pattern"`

	Firm       PanelProtocol `json:"firm"`
	Individual PanelProtocol `json:"individual"`

	PreviousNamesSelector string `json:"previous_names_selector"`
	PreviousNameLabel     string `json:"previous_name_label"`
	ContactBoilerplate    string `json:"contact_boilerplate"`

	IndividualsLinkText    string `json:"individuals_link_text"`
	NoRecordsMarker        string `json:"no_records_marker"`
	IndividualDetailMarker string `json:"individual_detail_marker"`
	// PagerControl is a fmt pattern taking the page number, it is
	// url-encoded after formatting.
	PagerControl string `json:"pager_control"`
}

func DefaultProtocol() Protocol {
	return Protocol{
		ViewStateField:  "__VIEWSTATE",
		ValidationField: "__EVENTVALIDATION",
		GeneratorField:  "__VIEWSTATEGENERATOR",

		RecordCountPattern: `There are (\d+) records found`,
		ResultTablePattern: `(?s)<table class="gridview_style".*?</table>`,
		DetailsPattern:     `(?s)<div id="ctl00_bodyContent_divSearchResults".*</div>`,

		Firm: PanelProtocol{
			LocationsSelector: "#ctl00_bodyContent_dlstFirmLocations > tbody > tr > td",
			HistoricalMarker:  "ctl00_bodyContent_lbtnShowFirmHistorical",
			HistoricalControl: "ctl00%24bodyContent%24lbtnShowFirmHistorical",
			RepairPattern:     `(?s)<div id="ctl[0-9]+_bodyContent_dlstFirmLocations_ctl[0-9]+_rptCategories_ctl[0-9]+_pnlRevocationDate">(.*?</div>.*?)</div>`,
			RepairReplacement: "${1}",
		},
		Individual: PanelProtocol{
			LocationsSelector: "#ctl00_bodyContent_dlstIndLocations > tbody > tr > td",
			HistoricalMarker:  "ctl00_bodyContent_lbtnShowIndHistorical",
			HistoricalControl: "ctl00%24bodyContent%24lbtnShowIndHistorical",
			RepairPattern:     `<div id="ctl[0-9]+_bodyContent_dlstIndLocations_ctl[0-9]+_dlstIndFirms_ctl[0-9]+_rptCategories_ctl[0-9]+_pnlRevocationDate">`,
			RepairReplacement: "",
		},

		PreviousNamesSelector: "#ctl00_bodyContent_pnlFirmOtherNames td",
		PreviousNameLabel:     "Previous Name:",
		ContactBoilerplate:    "View Other Addresses",

		IndividualsLinkText:    "Registered and Permitted Individuals",
		NoRecordsMarker:        "Your search returned no records, please try searching again",
		IndividualDetailMarker: "lbtnIndDetail",
		PagerControl:           "ctl00$bodyContent$lbtnPager%d",
	}
}

// Validate reports the first pattern or control id that cannot be used.
func (p Protocol) Validate() error {
	_, err := newMarkup(p)
	return err
}
