package docstore

import "time"

// timestampLayout enforces milliseconds and a ±HHMM zone offset. Timestamps
// without milliseconds are not parsed properly by the document store's date
// detection.
const timestampLayout = "2006-01-02T15:04:05.000-0700"

// FormatTimestamp renders a timestamp in the canonical wire form, e.g.
// "2015-09-30T12:31:21.000+0000".
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// normalizeTimestamps replaces every timestamp-typed value in the document
// with its canonical wire form.
func normalizeTimestamps(doc map[string]interface{}) {
	for field, value := range doc {
		if ts, ok := value.(time.Time); ok {
			doc[field] = FormatTimestamp(ts)
		}
	}
}
