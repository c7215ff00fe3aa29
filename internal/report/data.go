package report

// Data holds the collected string value of each field of one report.
// It marshals to a JSON object keyed by canonical field names.
type Data map[Field]string

// ID returns the REPORT_ID value, or an empty string if it was not collected.
func (d Data) ID() string {
	return d[ReportID]
}

// Fields returns the set of fields present in the report.
func (d Data) Fields() FieldSet {
	s := make(FieldSet, len(d))
	for f := range d {
		s[f] = struct{}{}
	}
	return s
}
