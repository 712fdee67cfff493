package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

var mailTemplate = template.Must(template.ParseFS(templatesFS, "templates/mail.html"))

// MailBodyData feeds the /mail/send HTML body template.
type MailBodyData struct {
	Name     string
	ContentA string
	ContentB string
}

// RenderMailBody renders the outbound mail HTML body.
func RenderMailBody(data MailBodyData) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render mail body: %w", err)
	}
	return buf.String(), nil
}
