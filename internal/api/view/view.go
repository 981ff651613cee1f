package view

import (
	"embed"
	"html/template"
	"net/http"
	"strings"
	"timetrack/internal/domain/model"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templatesFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templatesFS, "templates/index.html"))

// Page is what the index template renders. User is nil for anonymous
// visitors.
type Page struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// WantsJSON reports whether the client asked for a JSON answer instead of
// the HTML page.
func WantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func RenderIndex(w http.ResponseWriter, status int, page Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTmpl.Execute(w, page); err != nil {
		log.Error().Err(err).Msg("failed to render index page")
	}
}
