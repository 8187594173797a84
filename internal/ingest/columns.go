package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/orgmatch/internal/model"
)

// columnAliases maps accepted header spellings to canonical column names.
var columnAliases = map[string]string{
	"id":                   "id",
	"record_id":            "id",
	"name":                 "name",
	"business_name":        "name",
	"legal_name":           "legal_name",
	"business_number":      "business_number",
	"bn":                   "business_number",
	"phone":                "phone",
	"telephone":            "phone",
	"email":                "email",
	"website":              "website",
	"url":                  "website",
	"description":          "description",
	"street":               "street",
	"address":              "street",
	"city":                 "city",
	"province":             "province",
	"postal_code":          "postal_code",
	"postal":               "postal_code",
	"on_reserve":           "on_reserve",
	"remote":               "remote",
	"industries":           "industries",
	"industry":             "industries",
	"naics_codes":          "naics_codes",
	"naics":                "naics_codes",
	"revenue_estimate":     "revenue_estimate",
	"revenue":              "revenue_estimate",
	"employee_count":       "employee_count",
	"employees":            "employee_count",
	"government_contracts": "government_contracts",
	"verified":             "verified",
	"source":               "source",
	"source_reliability":   "source_reliability",
	"business_type":        "business_type",
	"type":                 "business_type",
	"discovered_at":        "discovered_at",
	"enriched_at":          "enriched_at",
}

// header maps canonical column names to their index in a row.
type header map[string]int

func parseHeader(row []string) header {
	h := make(header, len(row))
	for i, col := range row {
		key := strings.ToLower(strings.TrimSpace(col))
		key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
		if name, ok := columnAliases[key]; ok {
			if _, dup := h[name]; !dup {
				h[name] = i
			}
		}
	}
	return h
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// rowToRecord builds a record from a tabular row. Empty cells leave fields
// unset.
func rowToRecord(h header, row []string) (*model.BusinessRecord, error) {
	r := &model.BusinessRecord{
		ID:             h.get(row, "id"),
		Name:           h.get(row, "name"),
		LegalName:      h.get(row, "legal_name"),
		BusinessNumber: h.get(row, "business_number"),
		Phone:          h.get(row, "phone"),
		Email:          h.get(row, "email"),
		Website:        h.get(row, "website"),
		Description:    h.get(row, "description"),
		Industries:     splitList(h.get(row, "industries")),
		NAICSCodes:     splitList(h.get(row, "naics_codes")),
		Type:           model.BusinessType(h.get(row, "business_type")),
		Source:         model.Source{Name: h.get(row, "source")},
	}

	var err error
	if r.Verified, err = parseBool(h.get(row, "verified")); err != nil {
		return nil, eris.Wrap(err, "verified")
	}

	addr := model.Address{
		Street:     h.get(row, "street"),
		City:       h.get(row, "city"),
		Province:   h.get(row, "province"),
		PostalCode: h.get(row, "postal_code"),
	}
	if addr.OnReserve, err = parseBool(h.get(row, "on_reserve")); err != nil {
		return nil, eris.Wrap(err, "on_reserve")
	}
	if addr.Remote, err = parseBool(h.get(row, "remote")); err != nil {
		return nil, eris.Wrap(err, "remote")
	}
	if addr != (model.Address{}) {
		r.Address = &addr
	}

	var fin model.Financial
	if v := h.get(row, "revenue_estimate"); v != "" {
		f, err := strconv.ParseFloat(strings.NewReplacer(",", "", "$", "").Replace(v), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "revenue_estimate %q", v)
		}
		fin.RevenueEstimate = &f
	}
	if v := h.get(row, "employee_count"); v != "" {
		n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
		if err != nil {
			return nil, eris.Wrapf(err, "employee_count %q", v)
		}
		fin.EmployeeCount = &n
	}
	if fin.GovernmentContracts, err = parseBool(h.get(row, "government_contracts")); err != nil {
		return nil, eris.Wrap(err, "government_contracts")
	}
	if fin.RevenueEstimate != nil || fin.EmployeeCount != nil || fin.GovernmentContracts {
		r.Financial = &fin
	}

	if v := h.get(row, "source_reliability"); v != "" {
		if r.Source.Reliability, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, eris.Wrapf(err, "source_reliability %q", v)
		}
	}
	if v := h.get(row, "discovered_at"); v != "" {
		if r.DiscoveredAt, err = parseTime(v); err != nil {
			return nil, eris.Wrap(err, "discovered_at")
		}
	}
	if v := h.get(row, "enriched_at"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return nil, eris.Wrap(err, "enriched_at")
		}
		r.EnrichedAt = &t
	}
	return r, nil
}

// splitList splits a multi-valued cell on ";" or "|".
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ';' || r == '|' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	}
	return false, eris.Errorf("invalid boolean %q", v)
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(v string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("invalid time %q", v)
}
