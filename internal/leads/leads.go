package leads

import (
	"fmt"
	"strings"
)

// Column names of the lead upload schema in their canonical order.
const (
	ColumnName        = "name"
	ColumnRole        = "role"
	ColumnCompany     = "company"
	ColumnIndustry    = "industry"
	ColumnLocation    = "location"
	ColumnLinkedInBio = "linkedin_bio"
)

// Columns lists the six expected lead columns.
var Columns = []string{
	ColumnName,
	ColumnRole,
	ColumnCompany,
	ColumnIndustry,
	ColumnLocation,
	ColumnLinkedInBio,
}

// Offer is the value proposition leads are scored against.
type Offer struct {
	Name          string   `json:"name" yaml:"name" validate:"required"`
	ValueProps    []string `json:"value_props" yaml:"value_props" validate:"required,min=1,dive,required"`
	IdealUseCases []string `json:"ideal_use_cases" yaml:"ideal_use_cases" validate:"required,min=1,dive,required"`
}

// Normalize trims the offer name and every list entry in place.
func (o *Offer) Normalize() {
	o.Name = strings.TrimSpace(o.Name)
	o.ValueProps = trimAll(o.ValueProps)
	o.IdealUseCases = trimAll(o.IdealUseCases)
}

// Clone returns a deep copy so stored offers never share slices with callers.
func (o Offer) Clone() Offer {
	return Offer{
		Name:          o.Name,
		ValueProps:    append([]string(nil), o.ValueProps...),
		IdealUseCases: append([]string(nil), o.IdealUseCases...),
	}
}

// Lead is a single prospect record. Any field may be empty.
type Lead struct {
	Name        string `json:"name" mapstructure:"name"`
	Role        string `json:"role" mapstructure:"role"`
	Company     string `json:"company" mapstructure:"company"`
	Industry    string `json:"industry" mapstructure:"industry"`
	Location    string `json:"location" mapstructure:"location"`
	LinkedInBio string `json:"linkedin_bio" mapstructure:"linkedin_bio"`
}

// Complete reports whether all six fields carry a value.
func (l Lead) Complete() bool {
	for _, v := range l.Values() {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// Values returns the lead fields in Columns order.
func (l Lead) Values() []string {
	return []string{l.Name, l.Role, l.Company, l.Industry, l.Location, l.LinkedInBio}
}

// Label is a short human readable identifier used in logs.
func (l Lead) Label() string {
	switch {
	case l.Name != "" && l.Company != "":
		return fmt.Sprintf("%s (%s)", l.Name, l.Company)
	case l.Name != "":
		return l.Name
	case l.Company != "":
		return l.Company
	default:
		return "unnamed lead"
	}
}

func trimAll(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
