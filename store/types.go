package store

import (
	"fmt"
	"strings"
)

// DocType classifies a document tree by its legal source.
type DocType string

const (
	DocStatute DocType = "statute"
	DocCase    DocType = "case"
	DocRule    DocType = "rule"
)

// Valid reports whether t is a known document type.
func (t DocType) Valid() bool {
	switch t {
	case DocStatute, DocCase, DocRule:
		return true
	}
	return false
}

// InterpretationType describes how a case construes a statutory provision.
type InterpretationType string

const (
	InterpNarrow    InterpretationType = "NARROW"
	InterpBroad     InterpretationType = "BROAD"
	InterpClarify   InterpretationType = "CLARIFY"
	InterpPurposive InterpretationType = "PURPOSIVE"
	InterpLiteral   InterpretationType = "LITERAL"
	InterpApply     InterpretationType = "APPLY"
)

// Valid reports whether t is a known interpretation type.
func (t InterpretationType) Valid() bool {
	switch t {
	case InterpNarrow, InterpBroad, InterpClarify, InterpPurposive, InterpLiteral, InterpApply:
		return true
	}
	return false
}

// Authority grades the precedential weight of an interpretation.
type Authority string

const (
	AuthorityBinding    Authority = "BINDING"
	AuthorityPersuasive Authority = "PERSUASIVE"
	AuthorityObiter     Authority = "OBITER"
	AuthorityDissent    Authority = "DISSENT"
)

// Valid reports whether a is a known authority level.
func (a Authority) Valid() bool {
	switch a {
	case AuthorityBinding, AuthorityPersuasive, AuthorityObiter, AuthorityDissent:
		return true
	}
	return false
}

// DefaultBoost returns the conventional boost factor for an authority level.
// Binding appellate holdings carry close to the maximum; dissents barely
// rise above neutral.
func (a Authority) DefaultBoost() float64 {
	switch a {
	case AuthorityBinding:
		return 2.8
	case AuthorityPersuasive:
		return 2.0
	case AuthorityObiter:
		return 1.5
	case AuthorityDissent:
		return 1.2
	}
	return 1.0
}

// ExtractionMethod records how an interpretation link was produced.
type ExtractionMethod string

const (
	ExtractRuleBased   ExtractionMethod = "RULE_BASED"
	ExtractLLMAssisted ExtractionMethod = "LLM_ASSISTED"
	ExtractManual      ExtractionMethod = "MANUAL"
)

// Valid reports whether m is a known extraction method.
func (m ExtractionMethod) Valid() bool {
	switch m {
	case ExtractRuleBased, ExtractLLMAssisted, ExtractManual:
		return true
	}
	return false
}

// Document is one node in a hierarchical legal corpus. Roots are whole
// acts, judgments, or rule compilations (level 0); children are sections,
// paragraphs, orders, and sub-provisions down to level 3. Nodes reference
// parents by ID only.
type Document struct {
	ID       string  `json:"id"`
	DocType  DocType `json:"doc_type"`
	ParentID string  `json:"parent_id,omitempty"`
	Level    int     `json:"level"`
	Title    string  `json:"title"`

	Citation     string `json:"citation,omitempty"`
	Court        string `json:"court,omitempty"`
	Year         int    `json:"year,omitempty"`
	Parties      string `json:"parties,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`

	Hash string `json:"hash"`

	// Statute fields
	SectionNumber string `json:"section_number,omitempty"`
	SectionTitle  string `json:"section_title,omitempty"`
	ActName       string `json:"act_name,omitempty"`
	Subsection    string `json:"subsection,omitempty"`

	// Case fields
	ParaNo         int    `json:"para_no,omitempty"`
	CauseOfAction  string `json:"cause_of_action,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	RemedyAwarded  string `json:"remedy_awarded,omitempty"`
	FactsSummary   string `json:"facts_summary,omitempty"`

	FullText string `json:"full_text"`
	Metadata string `json:"metadata,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Validate checks the structural rules a document must satisfy before
// it can be stored.
func (d *Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("document id is empty")
	}
	if !d.DocType.Valid() {
		return fmt.Errorf("document %s: unknown doc_type %q", d.ID, d.DocType)
	}
	if d.Level < 0 || d.Level > 3 {
		return fmt.Errorf("document %s: level %d outside 0..3", d.ID, d.Level)
	}
	if d.Level == 0 && d.ParentID != "" {
		return fmt.Errorf("document %s: root node must not have a parent", d.ID)
	}
	if d.Level > 0 && d.ParentID == "" {
		return fmt.Errorf("document %s: level %d node missing parent", d.ID, d.Level)
	}
	if d.FullText == "" {
		return fmt.Errorf("document %s: full_text is empty", d.ID)
	}
	if d.DocType == DocStatute && d.Level == 1 && d.SectionNumber == "" {
		return fmt.Errorf("document %s: statute section missing section_number", d.ID)
	}
	if d.DocType == DocCase && d.Level == 1 && d.ParaNo <= 0 {
		return fmt.Errorf("document %s: case paragraph missing para_no", d.ID)
	}
	return nil
}

// IndexUnit is the flat projection of a document that retrieval indexes
// operate on.
type IndexUnit struct {
	UnitID   string  `json:"unit_id"`
	DocType  DocType `json:"doc_type"`
	Title    string  `json:"title"`
	Text     string  `json:"text"`
	Citation string  `json:"citation,omitempty"`
	Court    string  `json:"court,omitempty"`
	Year     int     `json:"year,omitempty"`
	ParaNo   int     `json:"para_no,omitempty"`
}

// IndexUnit projects the document into its retrieval form.
func (d *Document) IndexUnit() IndexUnit {
	return IndexUnit{
		UnitID:   d.ID,
		DocType:  d.DocType,
		Title:    d.Title,
		Text:     d.FullText,
		Citation: d.Citation,
		Court:    d.Court,
		Year:     d.Year,
		ParaNo:   d.ParaNo,
	}
}

// InterpretationLink records that a case paragraph construes a statutory
// provision. Display fields are denormalized from both documents so the
// retriever and validator never need a join at query time.
type InterpretationLink struct {
	ID        string `json:"id"`
	StatuteID string `json:"statute_id"`
	CaseID    string `json:"case_id"`

	StatuteName    string `json:"statute_name,omitempty"`
	StatuteSection string `json:"statute_section,omitempty"`
	StatuteText    string `json:"statute_text,omitempty"`

	CaseName     string `json:"case_name,omitempty"`
	CaseCitation string `json:"case_citation,omitempty"`
	CaseParaNo   int    `json:"case_para_no,omitempty"`
	CaseText     string `json:"case_text,omitempty"`
	Court        string `json:"court,omitempty"`
	Year         int    `json:"year,omitempty"`

	InterpretationType InterpretationType `json:"interpretation_type"`
	Authority          Authority          `json:"authority"`
	Holding            string             `json:"holding"`

	FactPatternTags []string `json:"fact_pattern_tags,omitempty"`
	CauseOfAction   string   `json:"cause_of_action,omitempty"`
	SubIssues       []string `json:"sub_issues,omitempty"`

	ApplicabilityScore float64 `json:"applicability_score"`
	BoostFactor        float64 `json:"boost_factor"`

	Verified   bool   `json:"verified"`
	VerifiedBy string `json:"verified_by,omitempty"`
	VerifiedAt string `json:"verified_at,omitempty"`

	ExtractionMethod     ExtractionMethod `json:"extraction_method"`
	ExtractionConfidence float64          `json:"extraction_confidence"`
	Notes                string           `json:"notes,omitempty"`

	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Validate checks the value ranges a link must satisfy before storage.
func (l *InterpretationLink) Validate() error {
	if l.StatuteID == "" || l.CaseID == "" {
		return fmt.Errorf("link must reference both a statute and a case")
	}
	if !l.InterpretationType.Valid() {
		return fmt.Errorf("link %s->%s: unknown interpretation_type %q", l.StatuteID, l.CaseID, l.InterpretationType)
	}
	if !l.Authority.Valid() {
		return fmt.Errorf("link %s->%s: unknown authority %q", l.StatuteID, l.CaseID, l.Authority)
	}
	if !l.ExtractionMethod.Valid() {
		return fmt.Errorf("link %s->%s: unknown extraction_method %q", l.StatuteID, l.CaseID, l.ExtractionMethod)
	}
	if l.Holding == "" {
		return fmt.Errorf("link %s->%s: holding is empty", l.StatuteID, l.CaseID)
	}
	if l.BoostFactor < 1.0 || l.BoostFactor > 3.0 {
		return fmt.Errorf("link %s->%s: boost_factor %.2f outside 1.0..3.0", l.StatuteID, l.CaseID, l.BoostFactor)
	}
	if l.ApplicabilityScore < 0 || l.ApplicabilityScore > 1 {
		return fmt.Errorf("link %s->%s: applicability_score %.2f outside 0..1", l.StatuteID, l.CaseID, l.ApplicabilityScore)
	}
	if l.ExtractionConfidence < 0 || l.ExtractionConfidence > 1 {
		return fmt.Errorf("link %s->%s: extraction_confidence %.2f outside 0..1", l.StatuteID, l.CaseID, l.ExtractionConfidence)
	}
	return nil
}

// NormalizeSection canonicalizes a section reference for comparison:
// "Section 2(1)", "s 2(1)" and "s.2(1)" all collapse to "2(1)".
func NormalizeSection(section string) string {
	s := strings.ToLower(strings.TrimSpace(section))
	s = strings.TrimPrefix(s, "section")
	s = strings.TrimPrefix(s, "sec.")
	s = strings.TrimPrefix(s, "sec")
	s = strings.TrimPrefix(s, "s.")
	s = strings.TrimPrefix(s, "s ")
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "s")
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}

// SectionBase strips any subsection suffix: "2(1)(a)" becomes "2".
func SectionBase(section string) string {
	s := NormalizeSection(section)
	if i := strings.IndexAny(s, "(-"); i > 0 {
		return s[:i]
	}
	return s
}
