// Package web provides the embedded HTML report templates.
package web

import (
	"embed"
	"io/fs"
)

//go:embed all:templates
var embedded embed.FS

// TemplatesFS holds the report templates, rooted at the templates directory.
var TemplatesFS = mustSub(embedded, "templates")

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
