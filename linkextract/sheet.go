package linkextract

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ameetan/go-lexlink/store"
)

// SheetLoader reads curated interpretation links from a spreadsheet.
// Each data row becomes a MANUAL link with extraction confidence 1.0;
// rows that fail link validation are skipped with a warning rather
// than sinking the whole load.
//
// The first row of a sheet is its header. Column order is free; the
// loader matches headers by name (statute_id, case_id, statute_name,
// statute_section, case_name, case_citation, case_para_no, case_text,
// court, year, interpretation_type, authority, holding,
// fact_pattern_tags, cause_of_action, sub_issues, applicability_score,
// boost_factor, verified, verified_by, verified_at, notes). Sheets
// without both statute_id and case_id columns are ignored.
type SheetLoader struct{}

func NewSheetLoader() *SheetLoader { return &SheetLoader{} }

// Load reads every link-bearing sheet in the workbook.
func (sl *SheetLoader) Load(path string) ([]store.InterpretationLink, []string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	var (
		links    []store.InterpretationLink
		warnings []string
	)
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		cols := headerIndex(rows[0])
		if _, ok := cols["statute_id"]; !ok {
			continue
		}
		if _, ok := cols["case_id"]; !ok {
			continue
		}

		for i, row := range rows[1:] {
			l, err := rowLink(cols, row)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s row %d: %v", sheet, i+2, err))
				continue
			}
			if l == nil {
				continue
			}
			links = append(links, *l)
		}
	}

	slog.Debug("loaded link sheet", "path", path, "links", len(links), "skipped", len(warnings))
	return links, warnings, nil
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name != "" {
			cols[name] = i
		}
	}
	return cols
}

// rowLink builds one link from a data row. It returns (nil, nil) for
// blank rows so trailing spreadsheet padding is not an error.
func rowLink(cols map[string]int, row []string) (*store.InterpretationLink, error) {
	get := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	if get("statute_id") == "" && get("case_id") == "" {
		return nil, nil
	}

	l := store.InterpretationLink{
		StatuteID:            get("statute_id"),
		CaseID:               get("case_id"),
		StatuteName:          get("statute_name"),
		StatuteSection:       get("statute_section"),
		StatuteText:          get("statute_text"),
		CaseName:             get("case_name"),
		CaseCitation:         get("case_citation"),
		CaseText:             get("case_text"),
		Court:                get("court"),
		InterpretationType:   store.InterpretationType(strings.ToUpper(get("interpretation_type"))),
		Authority:            store.Authority(strings.ToUpper(get("authority"))),
		Holding:              get("holding"),
		FactPatternTags:      splitList(get("fact_pattern_tags")),
		CauseOfAction:        get("cause_of_action"),
		SubIssues:            splitList(get("sub_issues")),
		VerifiedBy:           get("verified_by"),
		VerifiedAt:           get("verified_at"),
		Notes:                get("notes"),
		ExtractionMethod:     store.ExtractManual,
		ExtractionConfidence: 1.0,
	}

	var err error
	if s := get("case_para_no"); s != "" {
		if l.CaseParaNo, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("case_para_no: %w", err)
		}
	}
	if s := get("year"); s != "" {
		if l.Year, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("year: %w", err)
		}
	}
	if s := get("applicability_score"); s != "" {
		if l.ApplicabilityScore, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("applicability_score: %w", err)
		}
	} else {
		l.ApplicabilityScore = 0.5
	}
	if s := get("boost_factor"); s != "" {
		if l.BoostFactor, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("boost_factor: %w", err)
		}
	} else {
		l.BoostFactor = l.Authority.DefaultBoost()
	}
	l.Verified = parseSheetBool(get("verified"))

	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' })
	var out []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseSheetBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1":
		return true
	}
	return false
}
