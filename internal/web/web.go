// Package web embeds the projector display page and its assets.
//
// The page is intentionally dumb: it polls /nowplaying and /auth/status and
// renders whatever JSON comes back. All token handling stays server-side.
package web

import (
	"embed"
	"html/template"
	"io"
	"net/http"
)

//go:embed templates static
var siteFS embed.FS

var indexTmpl = template.Must(template.ParseFS(siteFS, "templates/index.html"))

// RenderIndex writes the projector page to w.
func RenderIndex(w io.Writer) error {
	if rw, ok := w.(http.ResponseWriter); ok {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	}
	return indexTmpl.Execute(w, nil)
}

// Static returns a handler serving the embedded /static/ assets.
func Static() http.Handler {
	return http.FileServer(http.FS(siteFS))
}
