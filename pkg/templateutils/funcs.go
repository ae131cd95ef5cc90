package templateutils

import (
	"bytes"
	"encoding/json"
	"path"
	"strings"
	"text/template"
)

// Funcs are added on top of the hermetic sprig functions. Paths use forward slashes since they end up in
// object keys and ARNs rather than on the local filesystem.
var Funcs = template.FuncMap{
	"joinString": strings.Join,

	"json": func(v any) (string, error) {
		buf := new(bytes.Buffer)
		enc := json.NewEncoder(buf)
		if err := enc.Encode(v); err != nil {
			return "", err
		}
		return strings.TrimSpace(buf.String()), nil
	},

	"fileBase": path.Base,

	"fileTrimExt": func(p string) string {
		return strings.TrimSuffix(p, path.Ext(p))
	},

	"replaceAll": strings.ReplaceAll,
}
