package model

import "time"

// BusinessType classifies a record's ownership or partnership relationship
// with Indigenous communities.
type BusinessType string

const (
	BusinessTypeIndigenousOwned       BusinessType = "indigenous_owned"
	BusinessTypeIndigenousPartnership BusinessType = "indigenous_partnership"
	BusinessTypeIndigenousAffiliated  BusinessType = "indigenous_affiliated"
	BusinessTypePotentialPartner      BusinessType = "potential_partner"
	BusinessTypeStandard              BusinessType = "standard"
)

// BusinessRecord is a discovered or enriched organization. ID is immutable;
// once MergedInto is set the record is a tombstone and is never emitted as a
// standalone record again.
type BusinessRecord struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	LegalName      string              `json:"legal_name,omitempty"`
	BusinessNumber string              `json:"business_number,omitempty"`
	Phone          string              `json:"phone,omitempty"`
	Email          string              `json:"email,omitempty"`
	Website        string              `json:"website,omitempty"`
	Description    string              `json:"description,omitempty"`
	Address        *Address            `json:"address,omitempty"`
	Industries     []string            `json:"industries,omitempty"`
	NAICSCodes     []string            `json:"naics_codes,omitempty"`
	Financial      *Financial          `json:"financial,omitempty"`
	Verified       bool                `json:"verified,omitempty"`
	Verification   *Verification       `json:"verification,omitempty"`
	Certifications []Certification     `json:"certifications,omitempty"`
	Contacts       []Contact           `json:"contacts,omitempty"`
	Source         Source              `json:"source"`
	Type           BusinessType        `json:"business_type,omitempty"`
	Indigenous     *IndigenousProfile  `json:"indigenous,omitempty"`
	Procurement    *ProcurementProfile `json:"procurement,omitempty"`
	DiscoveredAt   time.Time           `json:"discovered_at"`
	EnrichedAt     *time.Time          `json:"enriched_at,omitempty"`
	MergedInto     string              `json:"merged_into,omitempty"`
	Merge          *MergeProvenance    `json:"merge,omitempty"`
}

// Address is a structured postal address.
type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	OnReserve  bool   `json:"on_reserve,omitempty"`
	Remote     bool   `json:"remote,omitempty"`
}

// Financial is a point-in-time financial snapshot.
type Financial struct {
	RevenueEstimate     *float64 `json:"revenue_estimate,omitempty"`
	EmployeeCount       *int     `json:"employee_count,omitempty"`
	GovernmentContracts bool     `json:"government_contracts,omitempty"`
}

// Verification carries the outcome of an external verification check.
type Verification struct {
	Confidence     float64    `json:"confidence"`
	TaxDebtChecked bool       `json:"tax_debt_checked,omitempty"`
	Method         string     `json:"method,omitempty"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
}

// Certification is a business certification (e.g. CCAB, ISO 9001).
type Certification struct {
	Name      string     `json:"name"`
	Issuer    string     `json:"issuer,omitempty"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Contact is a person associated with the organization.
type Contact struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Source describes where a record came from and how much it is trusted.
type Source struct {
	Name        string  `json:"name"`
	Reliability float64 `json:"reliability"`
}

// IndigenousProfile holds ownership and community-relationship facts.
type IndigenousProfile struct {
	OwnershipPct       float64 `json:"ownership_pct,omitempty"`
	EmployeePct        float64 `json:"employee_pct,omitempty"`
	CommunityAgreement bool    `json:"community_agreement,omitempty"`
	BandCouncilSupport bool    `json:"band_council_support,omitempty"`
	Certified          bool    `json:"certified,omitempty"`
}

// ProcurementProfile holds procurement-readiness facts.
type ProcurementProfile struct {
	ReadinessScore  *float64 `json:"readiness_score,omitempty"`
	Insurance       bool     `json:"insurance,omitempty"`
	Bonding         bool     `json:"bonding,omitempty"`
	HealthSafety    bool     `json:"health_safety,omitempty"`
	PastPerformance *float64 `json:"past_performance,omitempty"`
	Capabilities    []string `json:"capabilities,omitempty"`
}

// MergeProvenance is attached to a canonical record produced by a merge.
type MergeProvenance struct {
	SourceIDs []string      `json:"source_ids"`
	MergedAt  time.Time     `json:"merged_at"`
	Strategy  MergeStrategy `json:"strategy"`
}

// IsTombstone reports whether the record has been merged into another.
func (r *BusinessRecord) IsTombstone() bool {
	return r.MergedInto != ""
}

// LastTouched returns the enrichment time if set, otherwise discovery time.
func (r *BusinessRecord) LastTouched() time.Time {
	if r.EnrichedAt != nil && !r.EnrichedAt.IsZero() {
		return *r.EnrichedAt
	}
	return r.DiscoveredAt
}

// Clone returns a deep copy of the record.
func (r *BusinessRecord) Clone() *BusinessRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Address = clonePtr(r.Address)
	c.Industries = cloneStrings(r.Industries)
	c.NAICSCodes = cloneStrings(r.NAICSCodes)
	if r.Financial != nil {
		f := *r.Financial
		f.RevenueEstimate = clonePtr(f.RevenueEstimate)
		f.EmployeeCount = clonePtr(f.EmployeeCount)
		c.Financial = &f
	}
	if r.Verification != nil {
		v := *r.Verification
		v.VerifiedAt = clonePtr(v.VerifiedAt)
		c.Verification = &v
	}
	if r.Certifications != nil {
		c.Certifications = make([]Certification, len(r.Certifications))
		for i, cert := range r.Certifications {
			cert.ExpiresAt = clonePtr(cert.ExpiresAt)
			c.Certifications[i] = cert
		}
	}
	if r.Contacts != nil {
		c.Contacts = append([]Contact(nil), r.Contacts...)
	}
	c.Indigenous = clonePtr(r.Indigenous)
	if r.Procurement != nil {
		p := *r.Procurement
		p.ReadinessScore = clonePtr(p.ReadinessScore)
		p.PastPerformance = clonePtr(p.PastPerformance)
		p.Capabilities = cloneStrings(p.Capabilities)
		c.Procurement = &p
	}
	c.EnrichedAt = clonePtr(r.EnrichedAt)
	if r.Merge != nil {
		m := *r.Merge
		m.SourceIDs = cloneStrings(r.Merge.SourceIDs)
		m.Strategy.Rules = append([]FieldMergeRule(nil), r.Merge.Strategy.Rules...)
		c.Merge = &m
	}
	return &c
}

// clonePtr copies the value behind p into a new pointer.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
