package reminder

import (
	"bytes"
	"fmt"
	"text/template"
)

// templateData is the complete set of fields a reminder message may
// reference. Rendering uses strict missing-key semantics, so a template typo
// fails loudly instead of sending "Hi <no value>".
type templateData struct {
	PatientName string
	ClinicName  string
	Date        string
	Time        string
}

var messageTemplates = map[Kind]map[string]string{
	Kind24Hour: {
		"en": "Hi {{.PatientName}}! A reminder from {{.ClinicName}}: your appointment is tomorrow, {{.Date}}, at {{.Time}}. Reply CANCEL if you can no longer make it.",
		"es": "¡Hola {{.PatientName}}! Recordatorio de {{.ClinicName}}: su cita es mañana, {{.Date}}, a las {{.Time}}. Responda CANCELAR si no puede asistir.",
	},
	KindSameDay: {
		"en": "Hi {{.PatientName}}! See you today at {{.Time}} at {{.ClinicName}}. Reply CANCEL if you can no longer make it.",
		"es": "¡Hola {{.PatientName}}! Le esperamos hoy a las {{.Time}} en {{.ClinicName}}. Responda CANCELAR si no puede asistir.",
	},
}

// pickLanguage returns the first preference with a template for the kind,
// falling back to English.
func pickLanguage(kind Kind, prefs ...string) string {
	variants := messageTemplates[kind]
	for _, p := range prefs {
		if p == "" {
			continue
		}
		if _, ok := variants[p]; ok {
			return p
		}
	}
	return "en"
}

// RenderMessage builds the reminder text for one candidate. The language is
// the patient's preference when supported, then the clinic default, then
// English.
func RenderMessage(kind Kind, c *Candidate) (string, error) {
	lang := pickLanguage(kind, c.Language, c.DefaultLanguage)
	text, ok := messageTemplates[kind][lang]
	if !ok {
		return "", fmt.Errorf("reminder: no template for kind %s language %s", kind, lang)
	}

	name := c.PatientName
	if name == "" {
		name = "there"
	}
	data := templateData{
		PatientName: name,
		ClinicName:  c.ClinicName,
		Date:        c.SlotDate.Format("Monday, January 2"),
		Time:        c.StartTime,
	}

	t, err := template.New(string(kind) + "_" + lang).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("reminder: parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("reminder: render template: %w", err)
	}
	return buf.String(), nil
}
