package config

import (
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/pkg/errors"

	"github.com/rc1405/fiddler-sub000"
)

// varPattern matches the Handlebars-style {{NAME}} interpolation syntax
// spec.md's configuration document uses. No repo in the retrieval pack
// imports a Handlebars/Mustache templating library (see SPEC_FULL.md §2),
// so expansion is done on the standard library: each {{NAME}} reference is
// rewritten to the dot-field form text/template already understands
// ({{.NAME}}), then executed against the process environment with
// Option("missingkey=error") so an undefined variable is a hard failure,
// exactly as spec.md requires.
var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// ExpandEnv renders raw as a strict template against the process
// environment. Any {{NAME}} reference to a variable that is not set fails
// with ErrConfigFailedValidation.
func ExpandEnv(raw string) (string, error) {
	rewritten := varPattern.ReplaceAllString(raw, "{{.$1}}")

	tmpl, err := template.New("config").Option("missingkey=error").Parse(rewritten)
	if err != nil {
		return "", errors.Wrapf(fiddler.ErrConfigFailedValidation, "template parse: %v", err)
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, env); err != nil {
		return "", errors.Wrapf(fiddler.ErrConfigFailedValidation, "undefined template variable: %v", err)
	}
	return out.String(), nil
}
