package nrs

import (
	"time"
)

// Record is one flattened output line.
type Record map[string]any

// Merge combines layers into a new record, later layers win on key
// collisions.
func Merge(layers ...Record) Record {
	out := Record{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

func setIfPresent(r Record, key, value string) {
	if value == "" {
		return
	}
	r[key] = value
}

// Flatten joins a summary row with its resolved detail. Every category of
// every entry becomes a record, an entry without categories becomes a
// single record and a firm without entries becomes a bare summary record.
func Flatten(row SummaryRow, detail FirmDetail, sampleDate time.Time, sourceUrl string) []Record {
	primary := Record{
		"firm":              row.Firm,
		"all_jurisdictions": row.Jurisdictions,
		"sample_date":       sampleDate.Format(time.RFC3339),
		"source_url":        sourceUrl,
		"historical_names":  detail.HistoricalNames,
	}

	if len(detail.Entries) == 0 {
		return []Record{primary}
	}

	var out []Record
	for _, entry := range detail.Entries {
		entryLayer := Record{
			"jurisdiction": entry.Jurisdiction,
		}
		setIfPresent(entryLayer, "terms", entry.Terms)
		setIfPresent(entryLayer, "contact", entry.Contact)
		if entry.Individuals != nil {
			entryLayer["individuals"] = entry.Individuals
		}

		if len(entry.Categories) == 0 {
			out = append(out, Merge(primary, entryLayer))
			continue
		}
		for _, category := range entry.Categories {
			categoryLayer := Record{
				"category": category.Category,
			}
			setIfPresent(categoryLayer, "from", category.From)
			setIfPresent(categoryLayer, "to", category.To)
			setIfPresent(categoryLayer, "status", category.Status)
			out = append(out, Merge(primary, entryLayer, categoryLayer))
		}
	}
	return out
}
