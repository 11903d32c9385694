package upload

import (
	"errors"
	"strings"
	"testing"

	"github.com/spigell/lead-scorer/internal/leads"
)

func TestCSVSkipsMalformedRow(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		"name,role,company,industry,location,linkedin_bio",
		"Ava,CEO,Acme,fintech,NY,bio",
		"Broken,row,with,too,many,fields,here",
		"Ben,Manager,Initech,retail,LA,",
	}, "\n")

	src, err := CSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	res := Ingest(src)
	if res.Accepted != 2 || res.Skipped != 1 {
		t.Fatalf("expected 2 accepted and 1 skipped, got %+v", res)
	}
	if res.Leads[0].Name != "Ava" || res.Leads[1].Name != "Ben" {
		t.Fatalf("unexpected lead order: %+v", res.Leads)
	}
	if len(res.Errors) != 1 || res.Errors[0].Row != 2 {
		t.Fatalf("expected error for row 2, got %+v", res.Errors)
	}
	if !errors.Is(res.Errors[0], ErrMalformedRow) {
		t.Fatalf("expected ErrMalformedRow, got %v", res.Errors[0].Err)
	}
}

func TestCSVHeaderNormalisation(t *testing.T) {
	t.Parallel()

	input := "\ufeff Name ,ROLE,Company,Industry,LinkedIn Bio,extra-column\n" +
		"Jo,CTO,Acme,fintech,  long bio ,ignored\n"

	src, err := CSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	res := Ingest(src)
	if res.Accepted != 1 {
		t.Fatalf("expected one lead, got %+v", res)
	}

	want := leads.Lead{Name: "Jo", Role: "CTO", Company: "Acme", Industry: "fintech", LinkedInBio: "long bio"}
	if res.Leads[0] != want {
		t.Fatalf("expected %+v, got %+v", want, res.Leads[0])
	}
}

func TestCSVQuotedFields(t *testing.T) {
	t.Parallel()

	input := "name,role,linkedin_bio\n" +
		"\"Doe, Jane\",\"VP, Sales\",\"Line one\nline two\"\n"

	src, err := CSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	res := Ingest(src)
	if res.Accepted != 1 || res.Leads[0].Name != "Doe, Jane" || res.Leads[0].Role != "VP, Sales" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Leads[0].LinkedInBio != "Line one\nline two" {
		t.Fatalf("unexpected bio %q", res.Leads[0].LinkedInBio)
	}
}

func TestCSVWithoutHeader(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "\n\n", " , ,\n"} {
		if _, err := CSV(strings.NewReader(input)); !errors.Is(err, ErrNoHeader) {
			t.Fatalf("input %q: expected ErrNoHeader, got %v", input, err)
		}
	}
}

func TestCSVHeaderOnly(t *testing.T) {
	t.Parallel()

	src, err := CSV(strings.NewReader("name,role\n"))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	res := Ingest(src)
	if res.Accepted != 0 || res.Skipped != 0 || len(res.Leads) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestCSVStopsEarly(t *testing.T) {
	t.Parallel()

	src, err := CSV(strings.NewReader("name\na\nb\nc\n"))
	if err != nil {
		t.Fatalf("csv: %v", err)
	}

	var seen []int
	for row := range src {
		seen = append(seen, row.Line)
		if row.Line == 2 {
			break
		}
	}
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("unexpected rows %v", seen)
	}
}

func TestJSONRows(t *testing.T) {
	t.Parallel()

	raw := []any{
		map[string]any{"name": "Ava", "Role": "Founder", "industry": "fintech"},
		"not an object",
		map[string]any{"name": "Ben", "company": 42.0, "location": nil},
		map[string]any{"name": "Cy", "role": map[string]any{"nested": true}},
		map[string]any{},
	}

	res := Ingest(JSON(raw))
	if res.Accepted != 3 || res.Skipped != 2 {
		t.Fatalf("expected 3 accepted and 2 skipped, got %+v", res)
	}

	if res.Leads[0].Role != "Founder" {
		t.Fatalf("expected normalised role column, got %+v", res.Leads[0])
	}
	if res.Leads[1].Company != "42" || res.Leads[1].Location != "" {
		t.Fatalf("expected weakly typed decoding, got %+v", res.Leads[1])
	}
	if res.Leads[2] != (leads.Lead{}) {
		t.Fatalf("expected empty lead for empty object, got %+v", res.Leads[2])
	}

	if res.Errors[0].Row != 2 || !strings.Contains(res.Errors[0].Message, "a string") {
		t.Fatalf("unexpected first error %+v", res.Errors[0])
	}
	if res.Errors[1].Row != 4 {
		t.Fatalf("unexpected second error %+v", res.Errors[1])
	}
}

func TestNormalizeColumn(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"name":           "name",
		" LinkedIn Bio ": "linkedin_bio",
		"linkedin-bio":   "linkedin_bio",
		"LINKEDIN__BIO":  "linkedin_bio",
		"":               "",
	}
	for in, want := range cases {
		if got := NormalizeColumn(in); got != want {
			t.Fatalf("NormalizeColumn(%q) = %q, want %q", in, got, want)
		}
	}
}
