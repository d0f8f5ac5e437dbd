package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const linkColumns = `id, statute_id, case_id, statute_name, statute_section, statute_text,
	case_name, case_citation, case_para_no, case_text, court, year,
	interpretation_type, authority, holding, fact_pattern_tags, cause_of_action,
	sub_issues, applicability_score, boost_factor, verified, verified_by, verified_at,
	extraction_method, extraction_confidence, notes, created_at, updated_at`

// UpsertLink inserts an interpretation link, or updates the existing
// (statute, case) pair when the new extraction is more confident.
// Returns the ID of the canonical row.
func (s *Store) UpsertLink(ctx context.Context, l InterpretationLink) (string, error) {
	if err := l.Validate(); err != nil {
		return "", err
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	tags, err := marshalStrings(l.FactPatternTags)
	if err != nil {
		return "", fmt.Errorf("encoding fact_pattern_tags: %w", err)
	}
	subIssues, err := marshalStrings(l.SubIssues)
	if err != nil {
		return "", fmt.Errorf("encoding sub_issues: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interpretation_links (id, statute_id, case_id, statute_name,
			statute_section, statute_text, case_name, case_citation, case_para_no,
			case_text, court, year, interpretation_type, authority, holding,
			fact_pattern_tags, cause_of_action, sub_issues, applicability_score,
			boost_factor, verified, verified_by, verified_at, extraction_method,
			extraction_confidence, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(statute_id, case_id) DO UPDATE SET
			statute_name = excluded.statute_name,
			statute_section = excluded.statute_section,
			statute_text = excluded.statute_text,
			case_name = excluded.case_name,
			case_citation = excluded.case_citation,
			case_para_no = excluded.case_para_no,
			case_text = excluded.case_text,
			court = excluded.court,
			year = excluded.year,
			interpretation_type = excluded.interpretation_type,
			authority = excluded.authority,
			holding = excluded.holding,
			fact_pattern_tags = excluded.fact_pattern_tags,
			cause_of_action = excluded.cause_of_action,
			sub_issues = excluded.sub_issues,
			applicability_score = excluded.applicability_score,
			boost_factor = excluded.boost_factor,
			extraction_method = excluded.extraction_method,
			extraction_confidence = excluded.extraction_confidence,
			notes = excluded.notes,
			updated_at = CURRENT_TIMESTAMP
		WHERE excluded.extraction_confidence > interpretation_links.extraction_confidence
	`, l.ID, l.StatuteID, l.CaseID, nullString(l.StatuteName),
		nullString(l.StatuteSection), nullString(l.StatuteText),
		nullString(l.CaseName), nullString(l.CaseCitation), nullInt(l.CaseParaNo),
		nullString(l.CaseText), nullString(l.Court), nullInt(l.Year),
		string(l.InterpretationType), string(l.Authority), l.Holding,
		tags, nullString(l.CauseOfAction), subIssues, l.ApplicabilityScore,
		l.BoostFactor, boolToInt(l.Verified), nullString(l.VerifiedBy),
		nullString(l.VerifiedAt), string(l.ExtractionMethod),
		l.ExtractionConfidence, nullString(l.Notes))
	if err != nil {
		return "", err
	}

	// The conditional upsert may have kept the existing row; report its ID.
	var id string
	err = s.db.QueryRowContext(ctx,
		"SELECT id FROM interpretation_links WHERE statute_id = ? AND case_id = ?",
		l.StatuteID, l.CaseID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Link retrieves a link by ID.
func (s *Store) Link(ctx context.Context, id string) (*InterpretationLink, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+linkColumns+" FROM interpretation_links WHERE id = ?", id)
	return scanLink(row)
}

// LinksForStatutes returns links touching any of the given statute IDs,
// strongest boost first. This ordering drives the retriever's boost map:
// when one case interprets several of the anchors, the first (highest)
// boost wins.
func (s *Store) LinksForStatutes(ctx context.Context, statuteIDs []string, verifiedOnly bool) ([]InterpretationLink, error) {
	if len(statuteIDs) == 0 {
		return nil, nil
	}

	query := "SELECT " + linkColumns + ` FROM interpretation_links
		WHERE statute_id IN (?` + repeatPlaceholders(len(statuteIDs)-1) + ")"
	args := make([]interface{}, 0, len(statuteIDs))
	for _, id := range statuteIDs {
		args = append(args, id)
	}
	if verifiedOnly {
		query += " AND verified = 1"
	}
	query += " ORDER BY boost_factor DESC, applicability_score DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

// LinksForCase returns all links sourced from one judgment.
func (s *Store) LinksForCase(ctx context.Context, caseID string) ([]InterpretationLink, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+linkColumns+` FROM interpretation_links
		 WHERE case_id = ? ORDER BY boost_factor DESC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

// Links returns every stored link, strongest first.
func (s *Store) Links(ctx context.Context, verifiedOnly bool) ([]InterpretationLink, error) {
	query := "SELECT " + linkColumns + " FROM interpretation_links"
	if verifiedOnly {
		query += " WHERE verified = 1"
	}
	query += " ORDER BY boost_factor DESC, applicability_score DESC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

// FindLink looks up a link by the fields a cited claim exposes: the case
// citation, the statute name, and the section reference. Returns nil
// (no error) when nothing matches; absence is an ordinary outcome for
// claim checking, not a failure.
func (s *Store) FindLink(ctx context.Context, caseCitation, statuteName, section string) (*InterpretationLink, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+linkColumns+` FROM interpretation_links
		 WHERE case_citation = ? COLLATE NOCASE
		 ORDER BY boost_factor DESC, applicability_score DESC`,
		strings.TrimSpace(caseCitation))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates, err := scanLinks(rows)
	if err != nil {
		return nil, err
	}

	wantName := strings.ToLower(strings.TrimSpace(statuteName))
	wantSection := NormalizeSection(section)
	for i := range candidates {
		l := &candidates[i]
		if wantName != "" {
			gotName := strings.ToLower(l.StatuteName)
			if !strings.Contains(gotName, wantName) && !strings.Contains(wantName, gotName) {
				continue
			}
		}
		if wantSection != "" && l.StatuteSection != "" {
			gotSection := NormalizeSection(l.StatuteSection)
			if gotSection != wantSection && SectionBase(gotSection) != SectionBase(wantSection) {
				continue
			}
		}
		return l, nil
	}
	return nil, nil
}

// LinksByFactPattern returns links whose fact pattern tags include all
// of the given tags.
func (s *Store) LinksByFactPattern(ctx context.Context, tags []string) ([]InterpretationLink, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	var conditions []string
	var args []interface{}
	for _, t := range tags {
		conditions = append(conditions,
			"EXISTS (SELECT 1 FROM json_each(fact_pattern_tags) WHERE json_each.value = ?)")
		args = append(args, t)
	}

	query := "SELECT " + linkColumns + ` FROM interpretation_links
		WHERE fact_pattern_tags IS NOT NULL AND ` + strings.Join(conditions, " AND ") + `
		ORDER BY boost_factor DESC, applicability_score DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLinks(rows)
}

// VerifyLink marks a link as human-verified.
func (s *Store) VerifyLink(ctx context.Context, id, by string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE interpretation_links
		SET verified = 1, verified_by = ?, verified_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, by, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LinkCount returns total and verified link counts.
func (s *Store) LinkCount(ctx context.Context) (total, verified int, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(verified), 0) FROM interpretation_links").
		Scan(&total, &verified)
	return total, verified, err
}

// DeleteLink removes a link by ID.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM interpretation_links WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- scanning helpers ---

func scanLink(row rowScanner) (*InterpretationLink, error) {
	l := &InterpretationLink{}
	var statuteName, statuteSection, statuteText sql.NullString
	var caseName, caseCitation, caseText, court sql.NullString
	var causeOfAction, verifiedBy, verifiedAt, notes sql.NullString
	var tags, subIssues sql.NullString
	var caseParaNo, year sql.NullInt64
	var interpType, authority, method string
	var verified int

	err := row.Scan(&l.ID, &l.StatuteID, &l.CaseID, &statuteName, &statuteSection,
		&statuteText, &caseName, &caseCitation, &caseParaNo, &caseText, &court,
		&year, &interpType, &authority, &l.Holding, &tags, &causeOfAction,
		&subIssues, &l.ApplicabilityScore, &l.BoostFactor, &verified,
		&verifiedBy, &verifiedAt, &method, &l.ExtractionConfidence, &notes,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	l.StatuteName = statuteName.String
	l.StatuteSection = statuteSection.String
	l.StatuteText = statuteText.String
	l.CaseName = caseName.String
	l.CaseCitation = caseCitation.String
	l.CaseParaNo = int(caseParaNo.Int64)
	l.CaseText = caseText.String
	l.Court = court.String
	l.Year = int(year.Int64)
	l.InterpretationType = InterpretationType(interpType)
	l.Authority = Authority(authority)
	l.CauseOfAction = causeOfAction.String
	l.Verified = verified != 0
	l.VerifiedBy = verifiedBy.String
	l.VerifiedAt = verifiedAt.String
	l.ExtractionMethod = ExtractionMethod(method)
	l.Notes = notes.String

	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &l.FactPatternTags); err != nil {
			return nil, fmt.Errorf("decoding fact_pattern_tags for %s: %w", l.ID, err)
		}
	}
	if subIssues.Valid && subIssues.String != "" {
		if err := json.Unmarshal([]byte(subIssues.String), &l.SubIssues); err != nil {
			return nil, fmt.Errorf("decoding sub_issues for %s: %w", l.ID, err)
		}
	}
	return l, nil
}

func scanLinks(rows *sql.Rows) ([]InterpretationLink, error) {
	var links []InterpretationLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func marshalStrings(ss []string) (interface{}, error) {
	if len(ss) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ss)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
