// Package templates holds the HTML of the dashboard pages.
package templates

import (
	"embed"
	"html/template"
)

//go:embed *.html
var files embed.FS

// Parse loads every page. Templates are looked up by file name, e.g.
// "list.html".
func Parse() (*template.Template, error) {
	return template.New("").ParseFS(files, "*.html")
}

// MustParse panics when the embedded templates do not parse.
func MustParse() *template.Template {
	return template.Must(Parse())
}
