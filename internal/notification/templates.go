// File: internal/notification/templates.go
package notification

import "strings"

// Template names used by the publication engine.
const (
	TemplateListingApproved   = "listing_approved"
	TemplateListingPublished  = "listing_published"
	TemplateListingUnpublished = "listing_unpublished"
	TemplateAdsExpiryWarning  = "ads_expiry_warning"
	TemplateAdsExpired        = "ads_expired"
)

type messageTemplate struct {
	Subject string
	Body    string
}

// templates maps template name to language to content. Placeholders use the
// {{name}} form and are substituted from the caller's variables.
var templates = map[string]map[string]messageTemplate{
	TemplateListingApproved: {
		"en": {
			Subject: "Your listing has been approved",
			Body:    "Good news! Your listing \"{{listing_title}}\" passed review and is approved.",
		},
	},
	TemplateListingPublished: {
		"en": {
			Subject: "Your listing is now online",
			Body:    "Your listing \"{{listing_title}}\" is approved and now publicly visible until {{expires_at}}.",
		},
	},
	TemplateListingUnpublished: {
		"en": {
			Subject: "Your listing was taken offline",
			Body:    "Your listing \"{{listing_title}}\" is no longer publicly visible.",
		},
	},
	TemplateAdsExpiryWarning: {
		"en": {
			Subject: "Your ads expire in 7 days",
			Body:    "The following listings will stop being publicly visible on {{expires_at}}: {{listing_titles}}.",
		},
	},
	TemplateAdsExpired: {
		"en": {
			Subject: "Your ads have expired",
			Body:    "The following listings are no longer publicly visible: {{listing_titles}}.",
		},
	},
}

const defaultLanguage = "en"

// render resolves a template for the language, falling back to English, and
// substitutes {{placeholders}} from vars.
func render(templateName, language string, vars map[string]string) (subject, body string, ok bool) {
	byLang, found := templates[templateName]
	if !found {
		return "", "", false
	}
	tmpl, found := byLang[language]
	if !found {
		tmpl, found = byLang[defaultLanguage]
		if !found {
			return "", "", false
		}
	}

	subject = tmpl.Subject
	body = tmpl.Body
	for key, val := range vars {
		placeholder := "{{" + key + "}}"
		subject = strings.ReplaceAll(subject, placeholder, val)
		body = strings.ReplaceAll(body, placeholder, val)
	}
	return subject, body, true
}
