package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ameetan/go-lexlink/store"
)

const statuteText = `MISREPRESENTATION ACT
2020 REVISED EDITION

ARRANGEMENT OF SECTIONS
1. Removal of certain bars
2. Damages for misrepresentation

[1 February 1968]

1.  Removal of certain bars to rescission for innocent misrepresentation
Where a person has entered into a contract after a misrepresentation has
been made to him, he shall be entitled to rescind the contract.

2.—(1) Where a person has entered into a contract after a
misrepresentation has been made to him by another party thereto and as a
result thereof he has suffered loss, that party shall be so liable.
(2) Damages may be awarded against a person under this subsection
whether or not he is so liable.

3.  Avoidance of provision excluding liability for misrepresentation
If a contract contains a term which would exclude or restrict liability
for misrepresentation, that term shall be of no effect.
`

const caseText = `Tan Chin Seng v Raffles Town Club Pte Ltd
[2002] SGCA 50
Court of Appeal

1   The appellants are members of the Raffles Town Club and brought
this action for misrepresentation.

2   Section 2(1) of the Misrepresentation Act requires the representor
to show reasonable grounds for belief in the truth of his statement.

3   We therefore allow the appeal on this ground.
`

const rulesText = `RULES OF COURT 2021

CONTENTS
Order 9 Case conferences ............ 34

34
ORDER 9
CASE CONFERENCES

Striking out claims (O. 9, r. 16)
16.—(1) The Court may order any claim or defence to be struck out if it
is plainly or obviously unsustainable.
(2) An order under this Rule may be made on terms.

Further directions (O. 9, r. 17)
17.— The Court may at any case conference make such further directions
as it thinks fit.
`

// checkTree verifies every batch invariant: root first, parents before
// children, and level stepping by one.
func checkTree(t *testing.T, b *Batch) {
	t.Helper()
	if len(b.Documents) == 0 {
		t.Fatal("empty batch")
	}
	if b.Root == nil || b.Root.ID != b.Documents[0].ID {
		t.Fatalf("root pointer: got %+v", b.Root)
	}
	if b.Documents[0].Level != 0 {
		t.Fatalf("first document level: got %d, want 0", b.Documents[0].Level)
	}

	levels := map[string]int{}
	for _, d := range b.Documents {
		if err := d.Validate(); err != nil {
			t.Errorf("invalid node %s: %v", d.ID, err)
		}
		if d.ParentID != "" {
			parentLevel, ok := levels[d.ParentID]
			if !ok {
				t.Errorf("node %s precedes its parent %s", d.ID, d.ParentID)
				continue
			}
			if d.Level != parentLevel+1 {
				t.Errorf("node %s: level %d under parent level %d", d.ID, d.Level, parentLevel)
			}
		}
		levels[d.ID] = d.Level
	}
}

func docByID(b *Batch, id string) *store.Document {
	for i := range b.Documents {
		if b.Documents[i].ID == id {
			return &b.Documents[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Statutes
// ---------------------------------------------------------------------------

func TestIngestStatute(t *testing.T) {
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/misrepresentation_act.txt",
		RawText:      statuteText,
		DeclaredType: store.DocStatute,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	checkTree(t, batch)

	if batch.Root.ID != "misrepresentation_act" {
		t.Errorf("root id: got %q", batch.Root.ID)
	}
	if batch.Root.Title != "MISREPRESENTATION ACT" {
		t.Errorf("root title: got %q", batch.Root.Title)
	}
	if batch.Root.ActName != "MISREPRESENTATION ACT" {
		t.Errorf("act name: got %q", batch.Root.ActName)
	}

	// The TOC entries "1. Removal..." sit before the enactment marker
	// and must not become sections.
	s1 := docByID(batch, "misrepresentation_act_s1")
	if s1 == nil {
		t.Fatal("missing section 1")
	}
	if s1.SectionNumber != "1" || s1.Level != 1 {
		t.Errorf("section 1 shape: %+v", s1)
	}
	if !strings.HasPrefix(s1.Title, "Removal of certain bars") {
		t.Errorf("section 1 title: got %q", s1.Title)
	}
	if strings.Contains(s1.FullText, "ARRANGEMENT") {
		t.Error("section 1 swallowed the table of contents")
	}

	s2 := docByID(batch, "misrepresentation_act_s2")
	if s2 == nil {
		t.Fatal("missing section 2")
	}
	if !strings.Contains(s2.FullText, "suffered loss") {
		t.Errorf("section 2 text: got %q", s2.FullText)
	}
	if strings.Contains(s2.FullText, "Avoidance") {
		t.Error("section 2 ran into section 3")
	}

	// Subsections of the Singapore "2.—(1)" lead form.
	sub1 := docByID(batch, "misrepresentation_act_s2_1")
	if sub1 == nil {
		t.Fatal("missing subsection 2(1)")
	}
	if sub1.Level != 2 || sub1.Subsection != "1" || sub1.SectionNumber != "2" {
		t.Errorf("subsection shape: %+v", sub1)
	}
	sub2 := docByID(batch, "misrepresentation_act_s2_2")
	if sub2 == nil {
		t.Fatal("missing subsection 2(2)")
	}
	if !strings.Contains(sub2.FullText, "Damages may be awarded") {
		t.Errorf("subsection 2 text: got %q", sub2.FullText)
	}

	if docByID(batch, "misrepresentation_act_s3") == nil {
		t.Error("missing section 3")
	}
}

func TestIngestStatuteLabelledSections(t *testing.T) {
	text := `[1 April 1994]

Section 1
Short title
This law may be cited as stated in the Schedule.

Section 2
Interpretation
In this law, unless otherwise provided, words have their ordinary
meaning.
`
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/example_act.txt",
		RawText:      text,
		DeclaredType: store.DocStatute,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	checkTree(t, batch)

	// No "ACT" line in the body, so the name comes from the filename.
	if batch.Root.ID != "example_act" {
		t.Errorf("root id: got %q", batch.Root.ID)
	}
	if batch.Root.Title != "Example Act" {
		t.Errorf("root title: got %q", batch.Root.Title)
	}

	s1 := docByID(batch, "example_act_s1")
	if s1 == nil {
		t.Fatal("labelled section 1 not recognized")
	}
	if !strings.HasPrefix(s1.Title, "Short title") {
		t.Errorf("section title: got %q", s1.Title)
	}
	if docByID(batch, "example_act_s2") == nil {
		t.Error("labelled section 2 not recognized")
	}
}

func TestIngestStatuteDuplicateSectionSkipped(t *testing.T) {
	text := `[1 February 1968]

1.  First section
Text one.

1.  First section again
Text two.

2.  Second section
Text three.
`
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/dup_act.txt",
		RawText:      text,
		DeclaredType: store.DocStatute,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if len(batch.Skipped) == 0 {
		t.Fatal("expected a skip for the duplicated section id")
	}
	found := false
	for _, sk := range batch.Skipped {
		if sk.ID == "dup_act_s1" && strings.Contains(sk.Reason, "duplicate") {
			found = true
		}
	}
	if !found {
		t.Errorf("skips: got %+v", batch.Skipped)
	}
}

func TestIngestRootTruncation(t *testing.T) {
	g := New(Options{MaxRootTextChars: 40})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/misrepresentation_act.txt",
		RawText:      statuteText,
		DeclaredType: store.DocStatute,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if n := len([]rune(batch.Root.FullText)); n > 40 {
		t.Errorf("root text length: got %d, want <= 40", n)
	}

	// The hash still covers the whole source, so re-ingest dedups.
	sum := sha256.Sum256([]byte(statuteText))
	if batch.Root.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("root hash does not cover full text")
	}
}

// ---------------------------------------------------------------------------
// Cases
// ---------------------------------------------------------------------------

func TestIngestCase(t *testing.T) {
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/Tan Chin Seng v Raffles Town Club Pte Ltd [2002] SGCA 50.pdf",
		RawText:      caseText,
		DeclaredType: store.DocCase,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	checkTree(t, batch)

	if batch.Root.ID != "2002_sgca_50" {
		t.Errorf("case id: got %q", batch.Root.ID)
	}
	if batch.Root.Citation != "[2002] SGCA 50" {
		t.Errorf("citation: got %q", batch.Root.Citation)
	}
	if batch.Root.Court != "SGCA" || batch.Root.Year != 2002 {
		t.Errorf("court/year: got %q/%d", batch.Root.Court, batch.Root.Year)
	}
	if !strings.Contains(batch.Root.Parties, "Tan Chin Seng") {
		t.Errorf("parties: got %q", batch.Root.Parties)
	}

	if len(batch.Documents) != 4 {
		t.Fatalf("documents: got %d, want root + 3 paragraphs", len(batch.Documents))
	}

	p2 := docByID(batch, "2002_sgca_50_para_2")
	if p2 == nil {
		t.Fatal("missing paragraph 2")
	}
	if p2.ParaNo != 2 || p2.Level != 1 {
		t.Errorf("paragraph shape: %+v", p2)
	}
	if !strings.HasPrefix(p2.Title, "¶2: Section 2(1)") {
		t.Errorf("paragraph title: got %q", p2.Title)
	}
	if !strings.Contains(p2.FullText, "reasonable grounds") {
		t.Errorf("paragraph text: got %q", p2.FullText)
	}
	if strings.Contains(p2.FullText, "allow the appeal") {
		t.Error("paragraph 2 ran into paragraph 3")
	}
	if p2.Citation != "[2002] SGCA 50" || p2.Court != "SGCA" {
		t.Errorf("paragraph metadata: %+v", p2)
	}
}

func TestIngestCaseBracketedParagraphs(t *testing.T) {
	text := `Lim v Singapore Press Holdings
[2015] SGCA 33

[1] This appeal concerns the defence of justification in defamation.

[2] The statutory defence requires both truth and public benefit.

[3] We dismiss the appeal.
`
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/lim_v_sph.txt",
		RawText:      text,
		DeclaredType: store.DocCase,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	checkTree(t, batch)

	// Citation comes from the opening lines, not the filename.
	if batch.Root.ID != "2015_sgca_33" {
		t.Errorf("case id: got %q", batch.Root.ID)
	}

	// The "[2015]" in the citation line must not become a paragraph:
	// only the monotone run 1..3 counts.
	if docByID(batch, "2015_sgca_33_para_2015") != nil {
		t.Error("citation year leaked in as a paragraph")
	}
	for _, want := range []string{"2015_sgca_33_para_1", "2015_sgca_33_para_2", "2015_sgca_33_para_3"} {
		if docByID(batch, want) == nil {
			t.Errorf("missing %s", want)
		}
	}
}

// ---------------------------------------------------------------------------
// Rules
// ---------------------------------------------------------------------------

func TestIngestRules(t *testing.T) {
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/rules_of_court_2021.pdf",
		RawText:      rulesText,
		DeclaredType: store.DocRule,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	checkTree(t, batch)

	if batch.Root.ID != "rules_of_court_2021" {
		t.Errorf("root id: got %q", batch.Root.ID)
	}
	if strings.Contains(batch.Root.FullText, "CONTENTS") {
		t.Error("root text should start after the table of contents")
	}

	order := docByID(batch, "roc_2021_o_9")
	if order == nil {
		t.Fatal("missing order 9")
	}
	if order.Level != 1 || order.SectionNumber != "9" {
		t.Errorf("order shape: %+v", order)
	}
	if order.Title != "Order 9: CASE CONFERENCES" {
		t.Errorf("order title: got %q", order.Title)
	}
	if !strings.Contains(order.FullText, "Rule 16: Striking out claims") {
		t.Errorf("order text: got %q", order.FullText)
	}

	rule := docByID(batch, "roc_2021_o_9_r_16")
	if rule == nil {
		t.Fatal("missing rule 16")
	}
	if rule.Level != 2 || rule.SectionTitle != "Striking out claims" {
		t.Errorf("rule shape: %+v", rule)
	}
	if !strings.HasPrefix(rule.FullText, "16.—(1)") {
		t.Errorf("rule text lead: got %q", rule.FullText)
	}
	if strings.Contains(rule.FullText, "Further directions") {
		t.Error("rule 16 ran into rule 17")
	}

	// Sub-rules at level 3.
	sub := docByID(batch, "roc_2021_o_9_r_16_2")
	if sub == nil {
		t.Fatal("missing sub-rule 16(2)")
	}
	if sub.Level != 3 || sub.Subsection != "2" {
		t.Errorf("sub-rule shape: %+v", sub)
	}
	if !strings.Contains(sub.FullText, "on terms") {
		t.Errorf("sub-rule text: got %q", sub.FullText)
	}

	// Rule 17 has no "(N)" markers, so no sub-rules.
	if docByID(batch, "roc_2021_o_9_r_17") == nil {
		t.Error("missing rule 17")
	}
}

func TestIngestRulesMismatchedLeadIgnored(t *testing.T) {
	text := `34
ORDER 2
SERVICE

Mode of service (O. 2, r. 3)
99.— This heading restates the wrong rule number and must be ignored.

Personal service (O. 2, r. 4)
4.— Personal service is effected by leaving the document with the person.
`
	// Token line "34" begins the text; prepend a newline context.
	g := New(Options{})
	batch, err := g.Ingest(SourceDocument{
		Path:         "testdata/roc.txt",
		RawText:      "\n" + text,
		DeclaredType: store.DocRule,
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if docByID(batch, "roc_2021_o_2_r_3") != nil {
		t.Error("mismatched restated number should not produce a rule")
	}
	if docByID(batch, "roc_2021_o_2_r_4") == nil {
		t.Error("missing rule 4")
	}
}

// ---------------------------------------------------------------------------
// Dispatch and determinism
// ---------------------------------------------------------------------------

func TestIngestErrors(t *testing.T) {
	g := New(Options{})

	_, err := g.Ingest(SourceDocument{Path: "x.txt", RawText: "   \n  ", DeclaredType: store.DocStatute})
	if !errors.Is(err, ErrEmptySource) {
		t.Errorf("empty source: got %v", err)
	}

	_, err = g.Ingest(SourceDocument{Path: "x.txt", RawText: "text", DeclaredType: "treaty"})
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown type: got %v", err)
	}
}

func TestIngestDeterministic(t *testing.T) {
	g := New(Options{})
	src := SourceDocument{
		Path:         "testdata/misrepresentation_act.txt",
		RawText:      statuteText,
		DeclaredType: store.DocStatute,
	}

	first, err := g.Ingest(src)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := g.Ingest(src)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if len(first.Documents) != len(second.Documents) {
		t.Fatalf("document counts differ: %d vs %d", len(first.Documents), len(second.Documents))
	}
	for i := range first.Documents {
		a, b := first.Documents[i], second.Documents[i]
		if a.ID != b.ID || a.Hash != b.Hash {
			t.Errorf("node %d differs: %s/%s vs %s/%s", i, a.ID, a.Hash, b.ID, b.Hash)
		}
	}
}
