package planner

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/prestadores/internal/domain/query"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		variants []string
		outcome  query.Outcome
		terms    []string
	}{
		{
			name:     "json string with two specialties",
			raw:      `{"medical_specialty": "cardiologia, dermatologia"}`,
			variants: []string{"CARDIOLOGIA", "especialidad CARDIOLOGIA", "prestadores CARDIOLOGIA", "DERMATOLOGIA", "especialidad DERMATOLOGIA", "prestadores DERMATOLOGIA"},
			outcome:  query.Parsed,
			terms:    []string{"CARDIOLOGIA", "DERMATOLOGIA"},
		},
		{
			name:     "json string with embedded newlines",
			raw:      "{\n\t\"medical_specialty\": [\"pediatria\"]\r\n}",
			variants: []string{"PEDIATRIA", "especialidad PEDIATRIA", "prestadores PEDIATRIA"},
			outcome:  query.Parsed,
			terms:    []string{"PEDIATRIA"},
		},
		{
			name:     "regex fallback",
			raw:      `el paciente dice "medical_specialty": "neurologia" y algo`,
			variants: []string{"NEUROLOGIA", "especialidad NEUROLOGIA", "prestadores NEUROLOGIA"},
			outcome:  query.Fallback,
			terms:    []string{"NEUROLOGIA"},
		},
		{
			name:     "plain text",
			raw:      "  dolor de pecho ",
			variants: []string{"  dolor de pecho "},
			outcome:  query.PlainText,
		},
		{
			name:     "json without specialty keeps raw string",
			raw:      `{"symptom": "tos"}`,
			variants: []string{`{"symptom": "tos"}`},
			outcome:  query.Parsed,
		},
		{
			name:     "malformed json recovered as free text",
			raw:      "{not json}",
			variants: []string{"{not json}"},
			outcome:  query.PlainText,
		},
		{
			name:     "map with list",
			raw:      map[string]any{"medical_specialty": []any{" Cardiología ", "", 7.0}},
			variants: []string{"CARDIOLOGÍA", "especialidad CARDIOLOGÍA", "prestadores CARDIOLOGÍA", "7", "especialidad 7", "prestadores 7"},
			outcome:  query.PlainText,
			terms:    []string{"CARDIOLOGÍA", "7"},
		},
		{
			name:     "map with null specialty",
			raw:      map[string]any{"medical_specialty": nil},
			variants: []string{`{"medical_specialty":null}`},
			outcome:  query.PlainText,
		},
		{
			name:     "empty map",
			raw:      map[string]any{},
			variants: []string{"{}"},
			outcome:  query.PlainText,
		},
		{
			name:     "nil",
			raw:      nil,
			variants: []string{""},
			outcome:  query.PlainText,
		},
		{
			name:     "only commas",
			raw:      `{"medical_specialty": " , ,"}`,
			variants: []string{`{"medical_specialty": " , ,"}`},
			outcome:  query.Parsed,
		},
	}

	p := New(zap.NewNop())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			plan := p.Plan(tc.raw)

			if !reflect.DeepEqual(plan.Variants, tc.variants) {
				t.Errorf("variants = %q, want %q", plan.Variants, tc.variants)
			}
			if plan.Outcome != tc.outcome {
				t.Errorf("outcome = %s, want %s", plan.Outcome, tc.outcome)
			}

			switch q := plan.Query.(type) {
			case query.Structured:
				if !reflect.DeepEqual(q.Specialties, tc.terms) {
					t.Errorf("terms = %q, want %q", q.Specialties, tc.terms)
				}
			case query.FreeText:
				if tc.terms != nil {
					t.Errorf("expected structured query with %q, got free text %q", tc.terms, q.Text)
				}
			default:
				t.Fatalf("unexpected query type %T", plan.Query)
			}
		})
	}
}

func TestPlan_ParseFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	plan := New(zap.New(core)).Plan("not json {{")

	if len(plan.Variants) != 1 || plan.Variants[0] != "not json {{" {
		t.Errorf("unexpected variants %q", plan.Variants)
	}
	if logs.Len() != 0 {
		t.Errorf("text without braces at both ends must not be parsed, got %d logs", logs.Len())
	}

	plan = New(zap.New(core)).Plan("{{")
	if plan.Variants[0] != "{{" {
		t.Errorf("unexpected variants %q", plan.Variants)
	}
	if logs.FilterMessage("Could not parse structured query, using it as free text").Len() != 0 {
		t.Error("{{ does not end with } and must not reach the JSON stage")
	}

	New(zap.New(core)).Plan("{bad}")
	if logs.FilterMessage("Could not parse structured query, using it as free text").Len() != 1 {
		t.Error("expected one parse warning")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"nil", nil, nil},
		{"string", "cardiologia", []string{"CARDIOLOGIA"}},
		{"comma string", "a, b ,c", []string{"A", "B", "C"}},
		{"string slice", []string{" x ", ""}, []string{"X"}},
		{"number", 12.0, []string{"12"}},
		{"bool", true, []string{"TRUE"}},
		{"nested list element", []any{map[string]any{"k": "v"}}, []string{`{"K":"V"}`}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.value)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Normalize(%v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestPlan_QuestionIsRenderedQuery(t *testing.T) {
	p := New(zap.NewNop())

	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"string", `{"medical_specialty": "cardiologia"}`, `{"medical_specialty": "cardiologia"}`},
		{"unparsable string", "{bad}", "{bad}"},
		{"object", map[string]any{"medical_specialty": []any{"Dermatología"}}, `{"medical_specialty":["Dermatología"]}`},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Plan(tc.raw).Question; got != tc.want {
				t.Errorf("Question = %q, want %q", got, tc.want)
			}
		})
	}
}
