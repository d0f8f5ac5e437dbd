package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ameetan/go-lexlink/store"
)

// Rule headings carry a margin note ending in "(O. N, r. M)", then the
// body restates the rule number in the lead form "M.—(1)". The strict
// variant requires the "(1)"; scanned editions sometimes lose it, so a
// relaxed variant stops at the dash. RE2 has no backreferences, so the
// restated number is captured and checked in code.
var (
	ruleHeadStrict  = regexp.MustCompile(`([^\n]+)\s*\(O\.\s*(\d+),\s*r\.\s*(\d+)\)\s*\n+\s*(\d+)\.—\([0-9]+\)`)
	ruleHeadRelaxed = regexp.MustCompile(`([^\n]+)\s*\(O\.\s*(\d+),\s*r\.\s*(\d+)\)\s*\n+\s*(\d+)\.—`)

	orderTitlePattern = regexp.MustCompile(`(?m)^ORDER\s+(\d+)\s*\n([A-Z][^\n]+)`)
	ruleLabelLeadRe   = regexp.MustCompile(`^\d+\.\s*`)

	// Numbered sub-rule markers, including the "5.—(1)" lead.
	subRulePattern = regexp.MustCompile(`(?m)^\s*(?:\d+\.—)?\((\d+)\)\s`)
)

// strictMinRules is the match count below which the strict heading
// variant is assumed to have missed most of the book.
const strictMinRules = 500

const (
	rulesRootID    = "rules_of_court_2021"
	rulesRootTitle = "Rules of Court 2021"
	orderIDPrefix  = "roc_2021_o_"
)

type ruleHead struct {
	label    string
	orderNum string
	ruleNum  string
	start    int
	// contentStart is where the restated "M.—" begins, so the rule
	// body keeps its own lead.
	contentStart int
}

func (g *Ingester) segmentRules(src SourceDocument) *Batch {
	text := skipRulesTOC(src.RawText, g.opts.RulesTOCToken)

	batch := &Batch{}
	seen := make(map[string]bool)
	batch.add(seen, store.Document{
		ID:       rulesRootID,
		DocType:  store.DocRule,
		Level:    0,
		Title:    rulesRootTitle,
		FullText: firstN(text, g.opts.MaxRootTextChars),
		Hash:     hashText(text),
	})

	heads := ruleHeads(ruleHeadStrict, text)
	if len(heads) < strictMinRules {
		heads = ruleHeads(ruleHeadRelaxed, text)
	}

	orderTitles := orderTitleMap(text)

	// Group rule bodies under their orders, preserving book order.
	type ruleEntry struct {
		num, label, content string
	}
	byOrder := make(map[string][]ruleEntry)
	for i, h := range heads {
		end := len(text)
		if i+1 < len(heads) {
			end = heads[i+1].start
		}
		byOrder[h.orderNum] = append(byOrder[h.orderNum], ruleEntry{
			num:     h.ruleNum,
			label:   h.label,
			content: strings.TrimSpace(text[h.contentStart:end]),
		})
	}

	orderNums := make([]int, 0, len(byOrder))
	for num := range byOrder {
		if n, err := strconv.Atoi(num); err == nil {
			orderNums = append(orderNums, n)
		}
	}
	sort.Ints(orderNums)

	for _, n := range orderNums {
		orderNum := strconv.Itoa(n)
		orderTitle := orderTitles[orderNum]
		if orderTitle == "" {
			orderTitle = "Order " + orderNum
		}
		orderID := orderIDPrefix + orderNum

		var sb strings.Builder
		fmt.Fprintf(&sb, "ORDER %s\n%s\n\n", orderNum, orderTitle)
		for _, r := range byOrder[orderNum] {
			fmt.Fprintf(&sb, "Rule %s: %s\n", r.num, r.label)
		}
		orderText := sb.String()

		ok := batch.add(seen, store.Document{
			ID:            orderID,
			DocType:       store.DocRule,
			ParentID:      rulesRootID,
			Level:         1,
			Title:         fmt.Sprintf("Order %s: %s", orderNum, orderTitle),
			SectionNumber: orderNum,
			SectionTitle:  orderTitle,
			FullText:      orderText,
			Hash:          hashText(orderText),
		})
		if !ok {
			continue
		}

		for _, r := range byOrder[orderNum] {
			ruleID := orderID + "_r_" + r.num
			ok := batch.add(seen, store.Document{
				ID:            ruleID,
				DocType:       store.DocRule,
				ParentID:      orderID,
				Level:         2,
				Title:         fmt.Sprintf("Rule %s: %s", r.num, r.label),
				SectionNumber: r.num,
				SectionTitle:  r.label,
				ActName:       "Order " + orderNum,
				FullText:      r.content,
				Hash:          hashText(r.content),
			})
			if !ok {
				continue
			}

			subMatches := findHeaders(subRulePattern, r.content, 0)
			for k, sm := range subMatches {
				subText := span(r.content, subMatches, k)
				subBody := r.content[sm.contentStart:sectionEnd(r.content, subMatches, k)]
				batch.add(seen, store.Document{
					ID:            ruleID + "_" + sm.num,
					DocType:       store.DocRule,
					ParentID:      ruleID,
					Level:         3,
					Title:         firstN(strings.TrimSpace(subBody), 100),
					SectionNumber: r.num,
					Subsection:    sm.num,
					ActName:       "Order " + orderNum,
					FullText:      subText,
					Hash:          hashText(subText),
				})
			}
		}
	}

	if len(batch.Documents) > 0 {
		batch.Root = &batch.Documents[0]
	}
	return batch
}

// ruleHeads collects rule headings, keeping only those whose restated
// body number matches the margin note's rule number.
func ruleHeads(re *regexp.Regexp, text string) []ruleHead {
	locs := re.FindAllStringSubmatchIndex(text, -1)
	heads := make([]ruleHead, 0, len(locs))
	for _, loc := range locs {
		ruleNum := text[loc[6]:loc[7]]
		restated := text[loc[8]:loc[9]]
		if restated != ruleNum {
			continue
		}
		label := strings.TrimSpace(text[loc[2]:loc[3]])
		label = strings.TrimSpace(ruleLabelLeadRe.ReplaceAllString(label, ""))
		heads = append(heads, ruleHead{
			label:        label,
			orderNum:     text[loc[4]:loc[5]],
			ruleNum:      ruleNum,
			start:        loc[0],
			contentStart: loc[8],
		})
	}
	return heads
}

func orderTitleMap(text string) map[string]string {
	titles := make(map[string]string)
	for _, m := range orderTitlePattern.FindAllStringSubmatch(text, -1) {
		titles[m[1]] = strings.TrimSpace(m[2])
	}
	return titles
}

// skipRulesTOC drops the table of contents by finding the standalone
// page-number line where the body begins.
func skipRulesTOC(text, token string) string {
	re := regexp.MustCompile(`\n` + regexp.QuoteMeta(token) + `\n`)
	if loc := re.FindStringIndex(text); loc != nil {
		return text[loc[1]:]
	}
	return text
}
