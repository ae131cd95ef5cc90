package templateutils

import (
	"fmt"
	"strings"
	"text/template"

	sprig "github.com/Masterminds/sprig/v3"
)

// Parse parses a template that may use [Funcs] and the hermetic sprig functions. Missing keys are an error
// instead of rendering `<no value>`.
func Parse(name, text string) (*template.Template, error) {
	t, err := template.New(name).
		Funcs(Funcs).
		Funcs(sprig.HermeticTxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("could not parse template %s: %w", name, err)
	}
	return t, nil
}

// Render parses and executes the template in one step.
func Render(name, text string, data any) (string, error) {
	t, err := Parse(name, text)
	if err != nil {
		return "", err
	}
	return Execute(t, data)
}

func Execute(t *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("could not render template %s: %w", t.Name(), err)
	}
	return sb.String(), nil
}
