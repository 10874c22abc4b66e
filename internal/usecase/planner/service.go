// Package planner turns a raw query into the ordered list of retrieval variants.
package planner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prestadores/internal/domain"
	"github.com/kailas-cloud/prestadores/internal/domain/query"
)

// Prefixes of the per-term variants, after the bare term.
const (
	specialtyPrefix = "especialidad "
	providersPrefix = "prestadores "
)

var specialtyPattern = regexp.MustCompile(`"medical_specialty":\s*"([^"]+)"`)

var controlChars = strings.NewReplacer("\n", "", "\r", "", "\t", "")

// Plan is the resolved query and the variants to retrieve, in order.
type Plan struct {
	Query    query.Query
	Variants []string
	// Question is the caller's query rendered as text for the prompt.
	Question string
	// Outcome is meaningful for string input only.
	Outcome query.Outcome
}

// Planner resolves raw queries. It never fails.
type Planner struct {
	logger *zap.Logger
}

// New creates a query planner.
func New(logger *zap.Logger) *Planner {
	return &Planner{logger: logger}
}

// Plan resolves raw, which may be a string, a decoded JSON object or nil.
func (p *Planner) Plan(raw any) Plan {
	var (
		value   any
		found   bool
		outcome = query.PlainText
	)

	switch v := raw.(type) {
	case string:
		var err error
		value, found, outcome, err = parseString(v)
		if err != nil {
			p.logger.Warn("Could not parse structured query, using it as free text",
				zap.String("query", v),
				zap.Error(err),
			)
			return Plan{
				Query:    query.FreeText{Text: v},
				Variants: []string{v},
				Question: v,
				Outcome:  query.PlainText,
			}
		}
	case map[string]any:
		value, found = v[query.SpecialtyField]
	}

	var terms []string
	if found {
		terms = Normalize(value)
	}

	text := query.Render(raw)
	if len(terms) == 0 {
		return Plan{
			Query:    query.FreeText{Text: text},
			Variants: []string{text},
			Question: text,
			Outcome:  outcome,
		}
	}

	return Plan{
		Query:    query.Structured{Specialties: terms},
		Variants: Variants(terms),
		Question: text,
		Outcome:  outcome,
	}
}

// parseString runs the two parser stages over a cleaned copy of s.
func parseString(s string) (value any, found bool, outcome query.Outcome, err error) {
	cleaned := controlChars.Replace(strings.TrimSpace(s))

	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		var obj map[string]any
		if jerr := json.Unmarshal([]byte(cleaned), &obj); jerr != nil {
			return nil, false, query.PlainText, &domain.QueryParseError{Input: s, Err: jerr}
		}
		value, found = obj[query.SpecialtyField]
		return value, found, query.Parsed, nil
	}

	if m := specialtyPattern.FindStringSubmatch(cleaned); m != nil {
		return m[1], true, query.Fallback, nil
	}
	return nil, false, query.PlainText, nil
}

// Normalize turns a specialty value into trimmed upper-case terms.
// Strings are split on commas; list elements are stringified; null has no terms.
func Normalize(value any) []string {
	var raw []string
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(v, ",")
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			raw = append(raw, stringify(item))
		}
	case []string:
		raw = v
	default:
		raw = []string{stringify(v)}
	}

	terms := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := strings.ToUpper(strings.TrimSpace(r)); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

// Variants expands every term into the bare term and its two prefixed forms.
func Variants(terms []string) []string {
	out := make([]string, 0, len(terms)*3)
	for _, t := range terms {
		out = append(out, t, specialtyPrefix+t, providersPrefix+t)
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64, bool, json.Number:
		return fmt.Sprint(x)
	default:
		return query.Render(x)
	}
}
