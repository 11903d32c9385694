package leads

import (
	"encoding/csv"
	"io"
	"strconv"
)

var exportHeader = []string{
	"rank", ColumnName, ColumnRole, ColumnCompany, ColumnIndustry, ColumnLocation,
	"intent", "rule_score", "ai_points", "final_score", "ai_degraded", "reasoning",
}

// WriteCSV writes r in its current order, one row per scored lead.
func WriteCSV(w io.Writer, r Results) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	for i, s := range r {
		row := []string{
			strconv.Itoa(i + 1),
			s.Lead.Name,
			s.Lead.Role,
			s.Lead.Company,
			s.Lead.Industry,
			s.Lead.Location,
			string(s.Intent),
			strconv.Itoa(s.RuleScore),
			strconv.Itoa(s.AIPoints),
			strconv.Itoa(s.FinalScore),
			strconv.FormatBool(s.Degraded),
			s.AIReasoning,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
