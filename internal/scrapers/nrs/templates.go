package nrs

import (
	"fmt"
	"os"
	"strings"
)

const (
	placeholderPageNumber = "[PAGE_NUMBER]"
	placeholderViewState  = "[VIEW_STATE]"
	placeholderValidation = "[VALIDATION]"
	placeholderGenerator  = "[GENERATOR]"
	placeholderControlId  = "[CONTROL_ID]"
)

// Templates are the raw form bodies captured from a browser session, with
// placeholders where the page number, control id and tokens go.
type Templates struct {
	// Seed is used for the first page of the listing.
	Seed string
	// Continue is used for every other page.
	Continue string
	// Control is used to activate a control (detail links, pager, etc.)
	Control string
}

func (t Templates) Validate() error {
	for _, required := range []struct {
		name         string
		body         string
		placeholders []string
	}{
		{"seed", t.Seed, []string{placeholderPageNumber, placeholderViewState}},
		{"continue", t.Continue, []string{placeholderPageNumber, placeholderViewState}},
		{"control", t.Control, []string{placeholderControlId, placeholderViewState}},
	} {
		for _, p := range required.placeholders {
			if !strings.Contains(required.body, p) {
				return fmt.Errorf("%s template is missing placeholder %s", required.name, p)
			}
		}
	}
	return nil
}

// LoadTemplates reads the three body templates, trailing newlines are
// dropped since editors tend to add them.
func LoadTemplates(seedPath, continuePath, controlPath string) (Templates, error) {
	read := func(path string) (string, error) {
		contents, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read template: %w", err)
		}
		return strings.TrimRight(string(contents), "\r\n"), nil
	}

	var (
		t   Templates
		err error
	)
	t.Seed, err = read(seedPath)
	if err != nil {
		return Templates{}, err
	}
	t.Continue, err = read(continuePath)
	if err != nil {
		return Templates{}, err
	}
	t.Control, err = read(controlPath)
	if err != nil {
		return Templates{}, err
	}
	return t, t.Validate()
}
