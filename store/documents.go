package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SkippedDoc records a node that could not be stored and why. Batches
// keep going past bad nodes so one malformed paragraph does not abort
// an entire judgment.
type SkippedDoc struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// PutReport summarises a batch insert.
type PutReport struct {
	Inserted int          `json:"inserted"`
	Skipped  []SkippedDoc `json:"skipped,omitempty"`
}

const documentColumns = `id, doc_type, parent_id, level, title, citation, court, year,
	parties, jurisdiction, hash, section_number, section_title, act_name, subsection,
	para_no, cause_of_action, outcome, remedy_awarded, facts_summary, full_text,
	metadata, created_at, updated_at`

// PutDocuments inserts a batch of documents ordered parent-before-child.
// Nodes that fail validation, reference a missing parent, or duplicate an
// existing hash (unless allowDuplicates) are skipped with a reason; the
// rest of the batch proceeds.
func (s *Store) PutDocuments(ctx context.Context, docs []Document, allowDuplicates bool) (*PutReport, error) {
	report := &PutReport{}

	// Levels of nodes accepted so far in this batch, so children can be
	// checked against parents that are not yet committed.
	batchLevels := make(map[string]int, len(docs))
	batchHashes := make(map[string]bool, len(docs))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO documents (id, doc_type, parent_id, level, title, citation, court,
				year, parties, jurisdiction, hash, section_number, section_title, act_name,
				subsection, para_no, cause_of_action, outcome, remedy_awarded, facts_summary,
				full_text, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, d := range docs {
			if err := d.Validate(); err != nil {
				report.Skipped = append(report.Skipped, SkippedDoc{ID: d.ID, Reason: err.Error()})
				continue
			}

			var exists int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM documents WHERE id = ?", d.ID).Scan(&exists); err != nil {
				return err
			}
			if exists > 0 {
				report.Skipped = append(report.Skipped, SkippedDoc{ID: d.ID, Reason: "id already exists"})
				continue
			}

			if !allowDuplicates {
				dup := batchHashes[d.Hash]
				if !dup {
					if err := tx.QueryRowContext(ctx,
						"SELECT COUNT(*) FROM documents WHERE hash = ?", d.Hash).Scan(&exists); err != nil {
						return err
					}
					dup = exists > 0
				}
				if dup {
					report.Skipped = append(report.Skipped, SkippedDoc{ID: d.ID, Reason: "duplicate content hash"})
					continue
				}
			}

			if d.ParentID != "" {
				parentLevel, ok := batchLevels[d.ParentID]
				if !ok {
					err := tx.QueryRowContext(ctx,
						"SELECT level FROM documents WHERE id = ?", d.ParentID).Scan(&parentLevel)
					if err == sql.ErrNoRows {
						report.Skipped = append(report.Skipped, SkippedDoc{ID: d.ID, Reason: "parent not found: " + d.ParentID})
						continue
					}
					if err != nil {
						return err
					}
				}
				if d.Level != parentLevel+1 {
					report.Skipped = append(report.Skipped, SkippedDoc{
						ID:     d.ID,
						Reason: fmt.Sprintf("level %d does not follow parent level %d", d.Level, parentLevel),
					})
					continue
				}
			}

			_, err = stmt.ExecContext(ctx,
				d.ID, string(d.DocType), nullString(d.ParentID), d.Level, d.Title,
				nullString(d.Citation), nullString(d.Court), nullInt(d.Year),
				nullString(d.Parties), orDefault(d.Jurisdiction, "SG"), d.Hash,
				nullString(d.SectionNumber), nullString(d.SectionTitle), nullString(d.ActName),
				nullString(d.Subsection), nullInt(d.ParaNo), nullString(d.CauseOfAction),
				nullString(d.Outcome), nullString(d.RemedyAwarded), nullString(d.FactsSummary),
				d.FullText, nullString(d.Metadata))
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", d.ID, err)
			}

			batchLevels[d.ID] = d.Level
			batchHashes[d.Hash] = true
			report.Inserted++
		}
		return nil
	})

	return report, err
}

// Document retrieves a document by ID.
func (s *Store) Document(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// DocumentByHash retrieves a document by its content hash.
func (s *Store) DocumentByHash(ctx context.Context, hash string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE hash = ? LIMIT 1", hash)
	return scanDocument(row)
}

// Children returns the direct children of a node ordered by section
// number and paragraph number.
func (s *Store) Children(ctx context.Context, parentID string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+` FROM documents
		 WHERE parent_id = ? ORDER BY para_no, section_number, id`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// Roots returns all level-0 documents.
func (s *Store) Roots(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE level = 0 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// DocumentsByType returns all documents of the given type.
func (s *Store) DocumentsByType(ctx context.Context, t DocType) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE doc_type = ? ORDER BY id", string(t))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// CaseParagraphs returns every level-1 case paragraph, optionally scoped
// to a single judgment. Paragraphs are what link extraction scans.
func (s *Store) CaseParagraphs(ctx context.Context, caseID string) ([]Document, error) {
	query := "SELECT " + documentColumns + ` FROM documents
		WHERE doc_type = 'case' AND level = 1`
	args := []interface{}{}
	if caseID != "" {
		query += " AND parent_id = ?"
		args = append(args, caseID)
	}
	query += " ORDER BY parent_id, para_no"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// IndexUnits projects every document into its retrieval form, ordered
// by ID for stable index builds.
func (s *Store) IndexUnits(ctx context.Context) ([]IndexUnit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_type, title, full_text, citation, court, year, para_no
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []IndexUnit
	for rows.Next() {
		var u IndexUnit
		var docType string
		var citation, court sql.NullString
		var year, paraNo sql.NullInt64
		if err := rows.Scan(&u.UnitID, &docType, &u.Title, &u.Text,
			&citation, &court, &year, &paraNo); err != nil {
			return nil, err
		}
		u.DocType = DocType(docType)
		u.Citation = citation.String
		u.Court = court.String
		u.Year = int(year.Int64)
		u.ParaNo = int(paraNo.Int64)
		units = append(units, u)
	}
	return units, rows.Err()
}

// UnitsByIDs hydrates the retrieval form of the named documents. Unknown
// IDs are simply absent from the result, so callers can detect stale
// index entries without an error path.
func (s *Store) UnitsByIDs(ctx context.Context, ids []string) (map[string]IndexUnit, error) {
	if len(ids) == 0 {
		return map[string]IndexUnit{}, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, doc_type, title, full_text, citation, court, year, para_no
		FROM documents WHERE id IN (?`+repeatPlaceholders(len(ids)-1)+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	units := make(map[string]IndexUnit, len(ids))
	for rows.Next() {
		var u IndexUnit
		var docType string
		var citation, court sql.NullString
		var year, paraNo sql.NullInt64
		if err := rows.Scan(&u.UnitID, &docType, &u.Title, &u.Text,
			&citation, &court, &year, &paraNo); err != nil {
			return nil, err
		}
		u.DocType = DocType(docType)
		u.Citation = citation.String
		u.Court = court.String
		u.Year = int(year.Int64)
		u.ParaNo = int(paraNo.Int64)
		units[u.UnitID] = u
	}
	return units, rows.Err()
}

// DeleteDocument removes a document; children and links cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
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

// CountByType returns document counts keyed by type.
func (s *Store) CountByType(ctx context.Context) (map[DocType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc_type, COUNT(*) FROM documents GROUP BY doc_type")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[DocType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[DocType(t)] = n
	}
	return counts, rows.Err()
}

// DocumentCount returns the total number of stored documents.
func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	d := &Document{}
	var docType string
	var parentID, citation, court, parties, jurisdiction sql.NullString
	var sectionNumber, sectionTitle, actName, subsection sql.NullString
	var causeOfAction, outcome, remedyAwarded, factsSummary, metadata sql.NullString
	var year, paraNo sql.NullInt64

	err := row.Scan(&d.ID, &docType, &parentID, &d.Level, &d.Title,
		&citation, &court, &year, &parties, &jurisdiction, &d.Hash,
		&sectionNumber, &sectionTitle, &actName, &subsection, &paraNo,
		&causeOfAction, &outcome, &remedyAwarded, &factsSummary,
		&d.FullText, &metadata, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.DocType = DocType(docType)
	d.ParentID = parentID.String
	d.Citation = citation.String
	d.Court = court.String
	d.Year = int(year.Int64)
	d.Parties = parties.String
	d.Jurisdiction = jurisdiction.String
	d.SectionNumber = sectionNumber.String
	d.SectionTitle = sectionTitle.String
	d.ActName = actName.String
	d.Subsection = subsection.String
	d.ParaNo = int(paraNo.Int64)
	d.CauseOfAction = causeOfAction.String
	d.Outcome = outcome.String
	d.RemedyAwarded = remedyAwarded.String
	d.FactsSummary = factsSummary.String
	d.Metadata = metadata.String
	return d, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
