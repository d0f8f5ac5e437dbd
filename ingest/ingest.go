// Package ingest segments raw legal source text into hierarchical
// document batches ready for storage. Each source produces one root
// (the act, judgment, or rules book) plus its sections, paragraphs,
// orders, and sub-provisions, ordered parent-before-child so a batch
// insert never references a missing parent.
//
// Segmentation is type-specific: statutes split on section headers,
// judgments on numbered paragraphs, the rules book on orders and
// rules. Header detection tries an ordered list of patterns and keeps
// the one whose match numbering looks most like a real document, so a
// stray page number or a date does not derail the walk.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ameetan/go-lexlink/store"
)

var (
	// ErrEmptySource means the raw text was empty or whitespace.
	ErrEmptySource = errors.New("ingest: empty source text")

	// ErrUnknownType means the declared document type is not one the
	// segmenters understand.
	ErrUnknownType = errors.New("ingest: unknown document type")
)

// DefaultMaxRootTextChars caps how much of a source's raw text is kept
// on the root node. Hashes always cover the full text, so re-ingest
// dedups correctly even when storage truncates.
const DefaultMaxRootTextChars = 20000

// SourceDocument is one raw source handed to the ingester. The loader
// in package source produces these from files; tests build them
// directly.
type SourceDocument struct {
	Path         string        `json:"path"`
	RawText      string        `json:"raw_text"`
	DeclaredType store.DocType `json:"declared_type"`
	Format       string        `json:"format,omitempty"` // pdf, txt
}

// SkippedNode records a segmented node that failed validation and why.
type SkippedNode struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Batch is the output of one ingestion: the full document tree in
// parent-before-child order (root first) plus the nodes that were
// dropped. Root points at Documents[0].
type Batch struct {
	Root      *store.Document  `json:"root"`
	Documents []store.Document `json:"documents"`
	Skipped   []SkippedNode    `json:"skipped,omitempty"`
}

// add validates and appends one node, recording a skip reason on
// failure. Returns whether the node was accepted, so callers can avoid
// orphaning its children.
func (b *Batch) add(seen map[string]bool, d store.Document) bool {
	if seen[d.ID] {
		b.Skipped = append(b.Skipped, SkippedNode{ID: d.ID, Reason: "duplicate id in batch"})
		return false
	}
	if err := d.Validate(); err != nil {
		b.Skipped = append(b.Skipped, SkippedNode{ID: d.ID, Reason: err.Error()})
		return false
	}
	seen[d.ID] = true
	b.Documents = append(b.Documents, d)
	return true
}

// Options tune segmentation.
type Options struct {
	// MaxRootTextChars caps the root node's stored full_text.
	// Zero means DefaultMaxRootTextChars.
	MaxRootTextChars int

	// RulesTOCToken is the standalone page-number line that ends the
	// rules book's table of contents. Zero value means "34", where the
	// Rules of Court 2021 body begins.
	RulesTOCToken string
}

func (o Options) withDefaults() Options {
	if o.MaxRootTextChars <= 0 {
		o.MaxRootTextChars = DefaultMaxRootTextChars
	}
	if o.RulesTOCToken == "" {
		o.RulesTOCToken = "34"
	}
	return o
}

// Ingester segments sources into document batches.
type Ingester struct {
	opts Options
}

// New returns an ingester with the given options.
func New(opts Options) *Ingester {
	return &Ingester{opts: opts.withDefaults()}
}

// Ingest segments one source into its document tree. The declared type
// selects the segmenter; sources with no recognizable structure still
// yield their root so the corpus keeps the full text.
func (g *Ingester) Ingest(src SourceDocument) (*Batch, error) {
	if strings.TrimSpace(src.RawText) == "" {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, src.Path)
	}

	switch src.DeclaredType {
	case store.DocStatute:
		return g.segmentStatute(src), nil
	case store.DocCase:
		return g.segmentCase(src), nil
	case store.DocRule:
		return g.segmentRules(src), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, src.DeclaredType)
	}
}

// --- shared helpers ---

// headerMatch is one detected structural header: where it starts, where
// its body content begins, and the number it carries.
type headerMatch struct {
	start        int
	contentStart int
	num          string
}

// leadingInt parses the numeric prefix of a header number, so "3A"
// sequences as 3.
func leadingInt(s string) int {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n, _ := strconv.Atoi(s[:i])
	return n
}

// sequentialFraction measures how statute-like a match numbering is:
// the fraction of adjacent pairs that step by exactly one.
func sequentialFraction(matches []headerMatch) float64 {
	if len(matches) < 2 {
		return 0
	}
	steps := 0
	for i := 1; i < len(matches); i++ {
		if leadingInt(matches[i].num) == leadingInt(matches[i-1].num)+1 {
			steps++
		}
	}
	return float64(steps) / float64(len(matches)-1)
}

// longestMonotoneRun finds the longest contiguous strictly-increasing
// run of header numbers. Judgments number paragraphs upward, so the
// run isolates real paragraphs from stray page numbers and citation
// years that happen to match a header pattern.
func longestMonotoneRun(matches []headerMatch) (start, length int) {
	if len(matches) == 0 {
		return 0, 0
	}
	bestStart, best := 0, 1
	runStart, run := 0, 1
	for i := 1; i < len(matches); i++ {
		if leadingInt(matches[i].num) > leadingInt(matches[i-1].num) {
			run++
		} else {
			runStart, run = i, 1
		}
		if run > best {
			bestStart, best = runStart, run
		}
	}
	return bestStart, best
}

// findHeaders runs a header pattern whose first group is the number.
// contentStart is the end of the whole match unless bodyGroup names a
// later group, in which case content begins at that group.
func findHeaders(re *regexp.Regexp, text string, bodyGroup int) []headerMatch {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	matches := make([]headerMatch, 0, len(locs))
	for _, loc := range locs {
		m := headerMatch{
			start:        loc[0],
			contentStart: loc[1],
			num:          text[loc[2]:loc[3]],
		}
		if bodyGroup > 0 && loc[2*bodyGroup] >= 0 {
			m.contentStart = loc[2*bodyGroup]
		}
		matches = append(matches, m)
	}
	return matches
}

// span returns the trimmed text from this header to the next, or to
// the end of the body for the last one.
func span(text string, matches []headerMatch, i int) string {
	end := len(text)
	if i+1 < len(matches) {
		end = matches[i+1].start
	}
	return strings.TrimSpace(text[matches[i].start:end])
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// baseName strips the directory and extension from a source path.
func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// slugID turns a display name into a stable lowercase identifier:
// "Misrepresentation Act 1967" becomes "misrepresentation_act_1967".
func slugID(name string) string {
	s := strings.ToLower(name)
	s = nonWordRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), "_")
	return s
}

// firstN returns the first n runes of s.
func firstN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// firstLine returns the first line of s, or its first 100 runes when
// there is no line break.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i > 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(firstN(s, 100))
}
