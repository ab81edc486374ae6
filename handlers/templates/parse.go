package templates

import (
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed *.html
var FS embed.FS

// ParseTemplates parses HTML templates from the embedded filesystem.
func ParseTemplates(files ...string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int {
			return a + b
		},
		"subtract": func(a, b int) int {
			return a - b
		},
		"date": func(t time.Time) string {
			return t.Format("02.01.2006")
		},
		"rating": func(f float64) string {
			return fmt.Sprintf("%.1f", f)
		},
	}

	return template.New("").Funcs(funcMap).ParseFS(FS, files...)
}
