package synthesizer

import (
	"strings"
	"text/template"
)

// NoResults is returned verbatim when there is nothing to answer from.
const NoResults = "No se encontraron resultados para esta búsqueda."

const contextSeparator = "\n\n"

const searchPrompt = `Eres un sistema de búsqueda de prestadores de salud.

CONTEXTO DE PRESTADORES DISPONIBLES:
{{.Context}}

CONSULTA JSON: {{.Question}}

INSTRUCCIONES:
1. Extrae la especialidad médica del campo "medical_specialty" en el JSON de entrada
2. Si hay múltiples especialidades, busca prestadores de TODAS ellas
3. Busca en el CONTEXTO todos los prestadores que coincidan con la(s) especialidad(es)
4. Muestra TODOS los prestadores encontrados
5. Si no encuentras prestadores, responde: "{{.NoResults}}"

FORMATO DE RESPUESTA:

Para cada prestador encontrado, usa el siguiente formato con bullet points:

• **Nombre:** [NOMBRE]  

• **Especialidad:** [ESPECIALIDAD]  

• **Teléfono:** [TELÉFONO]  

• **Dirección:** [DIRECCIÓN]  

• **Email:** [EMAIL]  

• **Localidad:** [LOCALIDAD]  


IMPORTANTE:
- Para múltiples prestadores, separa cada uno con una línea en blanco.

RESPUESTA:`

var promptTemplate = template.Must(template.New("search").Parse(searchPrompt))

type promptData struct {
	Context   string
	Question  string
	NoResults string
}

// BuildPrompt fills the search prompt with the candidate contents and the question.
func BuildPrompt(question string, contents []string) (string, error) {
	var sb strings.Builder
	err := promptTemplate.Execute(&sb, promptData{
		Context:   strings.Join(contents, contextSeparator),
		Question:  question,
		NoResults: NoResults,
	})
	if err != nil {
		return "", err //nolint:wrapcheck // template errors are wrapped by the caller
	}
	return sb.String(), nil
}
