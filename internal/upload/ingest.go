package upload

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/lead-scorer/internal/leads"
)

// RowError reports a skipped row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

func (e RowError) Unwrap() error { return e.Err }

// Result is a validated lead batch together with the rows that were skipped.
type Result struct {
	Leads    []leads.Lead `json:"-"`
	Accepted int          `json:"accepted"`
	Skipped  int          `json:"skipped"`
	Errors   []RowError   `json:"errors"`
}

// Ingest decodes every row of src into a lead. Missing columns stay empty and
// unknown columns are ignored. Malformed or undecodable rows are skipped and
// reported; the remaining leads keep their relative order.
func Ingest(src Source) Result {
	res := Result{Leads: []leads.Lead{}, Errors: []RowError{}}

	for row := range src {
		lead, err := decode(row)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, RowError{Row: row.Line, Message: err.Error(), Err: err})
			continue
		}
		res.Leads = append(res.Leads, lead)
		res.Accepted++
	}

	return res
}

func decode(row Row) (leads.Lead, error) {
	if row.Err != nil {
		return leads.Lead{}, row.Err
	}

	var lead leads.Lead
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &lead,
	})
	if err != nil {
		return leads.Lead{}, fmt.Errorf("creating decoder: %w", err)
	}

	if err := decoder.Decode(row.Fields); err != nil {
		return leads.Lead{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	lead.Name = strings.TrimSpace(lead.Name)
	lead.Role = strings.TrimSpace(lead.Role)
	lead.Company = strings.TrimSpace(lead.Company)
	lead.Industry = strings.TrimSpace(lead.Industry)
	lead.Location = strings.TrimSpace(lead.Location)
	lead.LinkedInBio = strings.TrimSpace(lead.LinkedInBio)

	return lead, nil
}
