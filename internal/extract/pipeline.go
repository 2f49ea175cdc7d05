/**
 * Extraction pipeline orchestrator
 *
 * Runs the full OCR-to-structured-table sequence for one document:
 *
 *   Step 1: token assembly (lines, value/unit split, flags, status words)
 *   Step 2: body location (code-resolving partition, canonical codes)
 *   Step 3: header resolution (ocr -> inferred -> llm)
 *   Step 4: metadata extraction (pre-body region)
 *   Step 5: table fill (geometric bands, role cells, UNKNOWN placeholders)
 *   Step 6: row length normalization
 *   Step 7: reference split
 *   Step 8: unit/value normalization
 *   Step 9: final filter and assembly
 *
 * The pipeline is a synchronous sequence of pure transformations; the
 * only suspension point crossing a process boundary is the header LLM
 * fallback inside step 3. Structural failures (no tokens, no table, no
 * header) return a result with empty tests and QA flags, never an error.
 */

package extract

import (
	"context"
	"log"

	"github.com/vetpipe/labreport-worker/internal/lexicon"
)

// Settings tunes the pipeline. Zero values fall back to production
// defaults.
type Settings struct {
	Assembler           AssemblerSettings
	Header              HeaderResolverSettings
	ConfidenceThreshold float64
	PadShortRows        bool
}

// DefaultSettings mirror the production defaults.
func DefaultSettings() Settings {
	return Settings{
		Assembler:           DefaultAssemblerSettings(),
		Header:              DefaultHeaderResolverSettings(),
		ConfidenceThreshold: 0.94,
	}
}

// DocumentExtractorInterface lets the queue consumers depend on the
// pipeline without binding to its construction.
type DocumentExtractorInterface interface {
	Extract(ctx context.Context, jobID string, tokens []Token) *ExtractionResult
}

// Extractor is the pipeline entry point. Safe for concurrent use across
// documents: it holds only immutable configuration and lexicons.
type Extractor struct {
	settings  Settings
	assembler *Assembler
	codes     *lexicon.CodeLexicon
	units     *lexicon.UnitLexicon
	header    *HeaderResolver
}

// NewExtractor builds an extractor. llm may be nil, which disables the
// header tier-3 fallback.
func NewExtractor(settings Settings, llm HeaderLLM) *Extractor {
	if settings.ConfidenceThreshold <= 0 {
		settings.ConfidenceThreshold = 0.94
	}
	codes := lexicon.GetCodeLexicon()
	units := lexicon.GetUnitLexicon()
	return &Extractor{
		settings:  settings,
		assembler: NewAssembler(settings.Assembler),
		codes:     codes,
		units:     units,
		header:    NewHeaderResolver(settings.Header, codes, units, llm),
	}
}

// Extract runs the pipeline on one document's tokens.
func (e *Extractor) Extract(ctx context.Context, jobID string, tokens []Token) *ExtractionResult {
	result := &ExtractionResult{Tests: []TestRecord{}}
	result.QA.TokensIn = len(tokens)

	// Step 1: Token assembly
	log.Printf("[Job %s] Step 1: Assembling %d OCR tokens into lines", jobID, len(tokens))
	lines := e.assembler.ExtractLines(tokens)
	result.QA.LinesAssembled = len(lines)
	if len(lines) == 0 {
		log.Printf("[Job %s] No tokens survived assembly, returning empty result", jobID)
		result.QA.EmptyOCR = true
		result.QA.BodyStartIndex = -1
		return result
	}

	// Step 2: Body location
	log.Printf("[Job %s] Step 2: Locating table body across %d lines", jobID, len(lines))
	loc, ok := LocateBody(lines, e.codes)
	result.QA.BodyStartIndex = loc.StartIndex
	result.QA.BodyLinesDropped = loc.Dropped
	if !ok || len(loc.Body) == 0 {
		log.Printf("[Job %s] No table found (no line resolved to a test code)", jobID)
		result.QA.NoTableFound = true
		result.Metadata = ExtractMetadata(lines)
		return result
	}

	// Step 4 runs before header resolution cost is paid: metadata only
	// needs the fixed partition.
	log.Printf("[Job %s] Step 4: Extracting metadata from %d pre-body lines", jobID, len(loc.Header))
	result.Metadata = ExtractMetadata(loc.Header)

	// Step 3: Header resolution
	log.Printf("[Job %s] Step 3: Resolving header roles (body starts at line %d)", jobID, loc.StartIndex)
	spec, ok := e.header.Resolve(ctx, jobID, loc)
	if !ok {
		log.Printf("[Job %s] Header unresolved after all tiers, returning empty tests", jobID)
		result.QA.HeaderUnresolved = true
		return result
	}
	result.QA.HeaderSource = spec.Source
	log.Printf("[Job %s] Header resolved: source=%s, columns=%d", jobID, spec.Source, spec.ColumnCount())

	// Step 5: Table fill
	log.Printf("[Job %s] Step 5: Filling %d body rows", jobID, len(loc.Body))
	rows, ok := FillRows(loc.Body, spec, e.units)
	if !ok {
		log.Printf("[Job %s] No geometric samples for column bands, returning empty tests", jobID)
		result.QA.HeaderUnresolved = true
		return result
	}

	// Step 6: Row length normalization
	k := spec.ColumnCount()
	result.QA.RowsTruncated = NormalizeRowLengths(rows, k, e.settings.PadShortRows)

	// Step 7: Reference split
	SplitReferences(rows)

	// Step 8: Unit/value normalization
	covered := NormalizeUnitsAndValues(rows, e.units)
	if len(rows) > 0 {
		result.QA.UnitCoverage = float64(covered) / float64(len(rows))
	}

	// Step 9: Final filter and assembly
	result.Tests = FinalFilter(rows, e.settings.ConfidenceThreshold, &result.QA)
	log.Printf("[Job %s] Step 9: Accepted %d tests (unknown=%d, low_conf=%d, dedup=%d)",
		jobID, len(result.Tests), result.QA.RemovedUnknown, result.QA.RemovedLowConf, result.QA.DedupRemoved)

	return result
}
