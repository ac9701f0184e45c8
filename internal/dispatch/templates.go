package dispatch

import (
	"bytes"
	"text/template"
)

// Templates maps a template ID to its content. Push bodies are single lines;
// the *_email variants are the longer transactional forms.
var Templates = map[string]string{
	"message_push": `{{.SenderName}}: {{.Preview}}`,
	"call_push":    `Incoming call from {{.CallerName}}`,
	"call_missed_email": `
		Hello,

		You missed a call from {{.CallerName}}.

		Open EduConnect to call back or send a message.
	`,
	"assignment_created_push": `New assignment: {{.Title}}`,
	"assignment_graded_push":  `Your assignment "{{.Title}}" was graded: {{.Grade}}`,
	"assignment_graded_email": `
		Hello,

		Your assignment "{{.Title}}" has been graded.

		Grade: {{.Grade}}

		Log in to EduConnect to see your tutor's feedback.
	`,
	"session_reminder_push": `Upcoming session with {{.TutorName}} at {{.StartsAt}}`,
}

// RenderTemplate renders a template by ID with the given data. An unknown ID
// falls back to the ID itself so a routing misconfiguration still produces a
// readable notification.
func RenderTemplate(templateID string, data any) (string, error) {
	content, ok := Templates[templateID]
	if !ok {
		return "Notification: " + templateID, nil
	}

	tmpl, err := template.New(templateID).Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
