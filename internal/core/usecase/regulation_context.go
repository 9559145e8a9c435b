package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kirillkom/urbanism-zoning/internal/core/domain"
	"github.com/kirillkom/urbanism-zoning/internal/core/ports"
)

const (
	regulationContextCandidates = 30
	regulationContextMaxChunks  = 40
	regulationFallbackRunes     = 20000
	zoneSnippetRadius           = 2000
	keywordWindowRadius         = 500
	keywordWindowMax            = 8
	keywordWindowMinGap         = 200
	keywordOccurrencesPerTerm   = 2
	contextChunkSeparator       = "\n\n---\n\n"
)

var regulationQueryTerms = []string{
	"POT", "CUT",
	"procent de ocupare a terenului",
	"coeficient de utilizare a terenului",
	"suprafata minima a parcelei",
	"distanta fata de limitele proprietatii",
	"retrageri",
	"deschidere la strada",
	"front stradal",
	"regim de inaltime",
}

type keywordGroup struct {
	field string
	terms []string
}

// Terms are lowercase without diacritics; text is folded the same way before matching.
var regulationFieldKeywords = []keywordGroup{
	{field: "pot", terms: []string{"pot", "procent de ocupare", "procentul de ocupare", "ocupare a terenului"}},
	{field: "cut", terms: []string{"cut", "coeficient de utilizare", "coeficientul de utilizare", "utilizare a terenului"}},
	{field: "suprafata_minima", terms: []string{"suprafata minima", "suprafata parcelei", "parcela minima", "parcela construibila"}},
	{field: "distanta_limite", terms: []string{"distanta fata de", "distanta minima", "retragere", "retrageri", "limitele laterale", "limita posterioara"}},
	{field: "deschidere_strada", terms: []string{"deschidere", "front stradal", "frontul la strada"}},
}

var regulationWindowKeywords = []string{
	"pot", "cut",
	"procent de ocupare",
	"coeficient de utilizare",
	"suprafata minima",
	"distanta fata de",
	"retragere",
	"deschidere",
	"front stradal",
	"regim de inaltime",
}

var measureUnits = []string{"%", "m²", "mp", "m2", "ml", "m", "ha", "metri", "metru"}

var diacriticFolds = map[rune]rune{
	'ă': 'a', 'â': 'a', 'î': 'i', 'ș': 's', 'ş': 's', 'ț': 't', 'ţ': 't',
}

// RegulationQuery is the retrieval query used for regulation field extraction.
func RegulationQuery(zoneCode, buildingType string) string {
	parts := []string{"zona", zoneCode}
	if bt := strings.TrimSpace(buildingType); bt != "" {
		parts = append(parts, bt)
	}
	parts = append(parts, regulationQueryTerms...)
	return strings.Join(parts, " ")
}

// RegulationContextBuilder assembles a bounded regulation context for one zone.
// Retrieval is optional and retrieval failures fall back to the raw document.
type RegulationContextBuilder struct {
	rag        ports.RegulationRetriever
	candidates int
}

func NewRegulationContextBuilder(rag ports.RegulationRetriever) *RegulationContextBuilder {
	return &RegulationContextBuilder{rag: rag, candidates: regulationContextCandidates}
}

func (b *RegulationContextBuilder) Build(ctx context.Context, zoneCode, buildingType, document string) string {
	var retrieved []domain.RetrievedChunk
	if b.rag != nil {
		chunks, err := b.rag.RetrieveContext(ctx, domain.RetrieveContextInput{
			ZoneCode: zoneCode,
			Query:    RegulationQuery(zoneCode, buildingType),
			Limit:    b.candidates,
		})
		if err != nil {
			slog.Warn("regulation_context_retrieval_failed", "zone_code", zoneCode, "error", err)
		} else {
			retrieved = chunks
		}
	}

	return BuildRegulationContext(RegulationContextInput{
		ZoneCode:  zoneCode,
		Document:  document,
		Retrieved: retrieved,
	})
}

type RegulationContextInput struct {
	ZoneCode  string
	Document  string
	Retrieved []domain.RetrievedChunk
}

// BuildRegulationContext is deterministic in its input. Sections, in order:
// merged retrieved chunks (or the document head when there are none), the
// zone code neighbourhood, and keyword windows.
func BuildRegulationContext(in RegulationContextInput) string {
	doc := []rune(in.Document)
	folded := foldRunes(in.Document)

	var sections []string
	if merged := mergeRetrievedChunks(in.Retrieved); len(merged) > 0 {
		texts := make([]string, 0, len(merged))
		for _, c := range merged {
			texts = append(texts, c.Chunk)
		}
		sections = append(sections, "FRAGMENTE RELEVANTE DIN REGULAMENT:\n"+strings.Join(texts, contextChunkSeparator))
	} else if head := runeWindow(doc, 0, regulationFallbackRunes); head != "" {
		sections = append(sections, "TEXT REGULAMENT:\n"+head)
	}

	if snippet := zoneCodeSnippet(doc, folded, in.ZoneCode); snippet != "" {
		sections = append(sections, fmt.Sprintf("FRAGMENT PENTRU ZONA %s:\n%s", in.ZoneCode, snippet))
	}

	for _, window := range keywordWindows(doc, folded) {
		sections = append(sections, "FRAGMENT CUVINTE CHEIE:\n"+window)
	}

	return strings.Join(sections, "\n\n")
}

// mergeRetrievedChunks ranks field-focused chunks first, then chunks carrying a
// measurement, then the rest, keeping retrieval order inside each class.
func mergeRetrievedChunks(chunks []domain.RetrievedChunk) []domain.RetrievedChunk {
	var focused, numeric, rest []domain.RetrievedChunk
	for _, c := range chunks {
		text := foldRunes(c.Chunk)
		switch {
		case matchesFieldKeywords(text):
			focused = append(focused, c)
		case hasMeasurement(text):
			numeric = append(numeric, c)
		default:
			rest = append(rest, c)
		}
	}

	seen := make(map[[2]int]struct{}, len(chunks))
	out := make([]domain.RetrievedChunk, 0, min(len(chunks), regulationContextMaxChunks))
	for _, class := range [][]domain.RetrievedChunk{focused, numeric, rest} {
		for _, c := range class {
			key := [2]int{c.Start, c.End}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
			if len(out) == regulationContextMaxChunks {
				return out
			}
		}
	}
	return out
}

func matchesFieldKeywords(text []rune) bool {
	for _, group := range regulationFieldKeywords {
		for _, term := range group.terms {
			if indexTerm(text, []rune(term), 0) >= 0 {
				return true
			}
		}
	}
	return false
}

func hasMeasurement(text []rune) bool {
	hasDigit := false
	for _, r := range text {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}
	if !hasDigit {
		return false
	}
	for _, unit := range measureUnits {
		if indexTerm(text, []rune(unit), 0) >= 0 {
			return true
		}
	}
	return false
}

func zoneCodeSnippet(doc, folded []rune, zoneCode string) string {
	code := foldRunes(strings.TrimSpace(zoneCode))
	if len(code) == 0 {
		return ""
	}
	idx := indexRunes(folded, code, 0)
	if idx < 0 {
		return ""
	}
	return runeWindow(doc, idx-zoneSnippetRadius, idx+zoneSnippetRadius)
}

// keywordWindows takes the first occurrences of each keyword and skips anchors
// closer than keywordWindowMinGap to one already taken.
func keywordWindows(doc, folded []rune) []string {
	var anchors []int
	for _, keyword := range regulationWindowKeywords {
		term := []rune(keyword)
		from := 0
		for n := 0; n < keywordOccurrencesPerTerm && len(anchors) < keywordWindowMax; n++ {
			idx := indexTerm(folded, term, from)
			if idx < 0 {
				break
			}
			from = idx + len(term)
			if nearAnchor(anchors, idx) {
				continue
			}
			anchors = append(anchors, idx)
		}
		if len(anchors) >= keywordWindowMax {
			break
		}
	}

	windows := make([]string, 0, len(anchors))
	for _, idx := range anchors {
		windows = append(windows, runeWindow(doc, idx-keywordWindowRadius, idx+keywordWindowRadius))
	}
	return windows
}

func nearAnchor(anchors []int, idx int) bool {
	for _, a := range anchors {
		d := idx - a
		if d < 0 {
			d = -d
		}
		if d < keywordWindowMinGap {
			return true
		}
	}
	return false
}

// foldRunes lowercases and strips Romanian diacritics rune by rune, so offsets
// in the result line up with offsets in the original text.
func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		r = unicode.ToLower(r)
		if f, ok := diacriticFolds[r]; ok {
			r = f
		}
		runes[i] = r
	}
	return runes
}

// indexTerm finds term in text from a rune offset. Short alphabetic terms must
// not touch other letters, so "pot" does not match inside "potrivit".
func indexTerm(text, term []rune, from int) int {
	wholeWord := len(term) > 0 && len(term) < 4 && unicode.IsLetter(term[0])
	for i := max(from, 0); i+len(term) <= len(text); i++ {
		i = indexRunes(text, term, i)
		if i < 0 {
			return -1
		}
		if !wholeWord || isLetterBoundary(text, i, i+len(term)) {
			return i
		}
	}
	return -1
}

func indexRunes(text, term []rune, from int) int {
	if len(term) == 0 {
		return -1
	}
	for i := max(from, 0); i+len(term) <= len(text); i++ {
		if text[i] != term[0] {
			continue
		}
		match := true
		for j := 1; j < len(term); j++ {
			if text[i+j] != term[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func isLetterBoundary(text []rune, start, end int) bool {
	if start > 0 && unicode.IsLetter(text[start-1]) {
		return false
	}
	if end < len(text) && unicode.IsLetter(text[end]) {
		return false
	}
	return true
}

func runeWindow(text []rune, start, end int) string {
	start = max(start, 0)
	end = min(end, len(text))
	if start >= end {
		return ""
	}
	return string(text[start:end])
}
