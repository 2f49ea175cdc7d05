/**
 * Body Locator
 *
 * Finds the first line whose leading token resolves to a known test code,
 * fixing the header/body partition for the rest of the pipeline. Body
 * lines that stop resolving (footers, page noise) are pruned, and every
 * retained leading token is rewritten to its canonical code so downstream
 * code matching is exact.
 */

package extract

import (
	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

// BodyLocation is the fixed header/body partition of a document.
// StartIndex never moves once set.
type BodyLocation struct {
	StartIndex int
	Header     []Line // lines strictly above StartIndex
	Body       []Line // resolving lines from StartIndex on, leading tokens canonicalized
	Dropped    int    // body-region lines pruned as noise
}

// LocateBody fixes the body start and prunes non-resolving body lines.
// Returns ok=false when no line resolves to any known code ("no table").
func LocateBody(lines []Line, codes *lexicon.CodeLexicon) (BodyLocation, bool) {
	start := -1
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		if codes.ResolveLoose(line[0].Text) != "" {
			start = i
			break
		}
	}
	if start < 0 {
		return BodyLocation{StartIndex: -1}, false
	}

	loc := BodyLocation{
		StartIndex: start,
		Header:     lines[:start],
	}

	for _, line := range lines[start:] {
		if len(line) == 0 {
			loc.Dropped++
			continue
		}
		code := codes.ResolveLoose(line[0].Text)
		if code == "" {
			loc.Dropped++
			continue
		}

		canonical := make(Line, len(line))
		copy(canonical, line)
		canonical[0].Text = code
		canonical[0].Origin = originBodyCanonical
		loc.Body = append(loc.Body, canonical)
	}

	return loc, true
}
