// Package table converts concatenated structured-markup fragments into flat
// tabular text, one row per source document.
package table

import (
	"encoding/xml"
	"strings"
)

// Header is the fixed column order of the tabular output.
var Header = []string{
	"Order ID",
	"Patient Name",
	"DOB",
	"Gender",
	"Doctor Name",
	"License",
	"Clinic",
	"Medicine",
	"Dosage",
	"Frequency",
	"Duration",
	"Height",
	"Weight",
	"Blood Type",
	"BP",
}

// Sentinel tokens inserted by upstream extraction for unreadable fields.
// They are stripped out of field text, not used to blank the whole field.
const (
	sentinelMissing    = "MISSING"
	sentinelUnreadable = "UNREADABLE"
)

const orderIDPrefix = "Order ID:"

// fragment mirrors one <document> markup fragment. Fields are decoded as
// slices so that the first matching element at each structural path wins,
// regardless of how many the markup carries.
type fragment struct {
	PatientName []string `xml:"patient>name"`
	PatientDOB  []string `xml:"patient>dob"`
	Gender      []string `xml:"patient>gender"`
	DoctorName  []string `xml:"doctor>name"`
	License     []string `xml:"doctor>license"`
	Clinic      []string `xml:"doctor>clinic"`
	Medicine    []string `xml:"medicine>name"`
	Dosage      []string `xml:"medicine>dosage"`
	Frequency   []string `xml:"medicine>frequency"`
	Duration    []string `xml:"medicine>duration"`
	Height      []string `xml:"vitals>height"`
	Weight      []string `xml:"vitals>weight"`
	BloodType   []string `xml:"vitals>bloodType"`
	BP          []string `xml:"vitals>bp"`
	Notes       []string `xml:"notes"`
}

type wrappedBatch struct {
	Documents []fragment `xml:"document"`
}

// ToTable converts concatenated markup fragments into CSV-style text: header
// row first, then one row per document fragment, every field double-quoted
// with inner quotes doubled. Any parse failure yields the empty string; the
// function never returns an error. An input with zero fragments yields just
// the header row.
func ToTable(markup string) string {
	rows, ok := Rows(markup)
	if !ok {
		return ""
	}
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, csvLine(Header))
	for _, row := range rows {
		lines = append(lines, csvLine(row))
	}
	return strings.Join(lines, "\n")
}

// Rows parses the markup and returns the extracted rows without the header.
// The boolean is false on parse failure.
func Rows(markup string) ([][]string, bool) {
	// A single synthetic root tolerates multiple top-level fragments.
	wrapped := "<batch>" + markup + "</batch>"

	var batch wrappedBatch
	if err := xml.Unmarshal([]byte(wrapped), &batch); err != nil {
		return nil, false
	}

	rows := make([][]string, 0, len(batch.Documents))
	for _, doc := range batch.Documents {
		rows = append(rows, []string{
			orderID(first(doc.Notes)),
			scrub(first(doc.PatientName)),
			scrub(first(doc.PatientDOB)),
			scrub(first(doc.Gender)),
			scrub(first(doc.DoctorName)),
			scrub(first(doc.License)),
			scrub(first(doc.Clinic)),
			scrub(first(doc.Medicine)),
			scrub(first(doc.Dosage)),
			scrub(first(doc.Frequency)),
			scrub(first(doc.Duration)),
			scrub(first(doc.Height)),
			scrub(first(doc.Weight)),
			scrub(first(doc.BloodType)),
			scrub(first(doc.BP)),
		})
	}
	return rows, true
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// scrub removes sentinel tokens from the field text, then trims surrounding
// whitespace. Only the tokens are removed; the rest of the value survives.
func scrub(v string) string {
	v = strings.ReplaceAll(v, sentinelMissing, "")
	v = strings.ReplaceAll(v, sentinelUnreadable, "")
	return strings.TrimSpace(v)
}

// orderID derives the Order ID column from the notes field, stripping the
// literal "Order ID:" prefix when present.
func orderID(notes string) string {
	v := scrub(notes)
	if strings.HasPrefix(v, orderIDPrefix) {
		v = strings.TrimSpace(strings.TrimPrefix(v, orderIDPrefix))
	}
	return v
}

func csvLine(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}
