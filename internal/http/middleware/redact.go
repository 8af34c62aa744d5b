package middleware

import (
	"net/http"
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

var (
	uuidRE  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`)
	emailRE = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phoneRE = regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`)
	// company search terms are free text typed by staff
	searchParamRE = regexp.MustCompile(`(?i)(^|&)(query|q)=[^&]*`)
)

// Redactor scrubs contact details and identifiers out of values that end up
// in access logs. Company records hold emails and phone numbers, and those
// tend to leak into search queries.
type Redactor struct {
	mask map[string]struct{}
}

// NewRedactor masks Authorization, Cookie and Set-Cookie plus any extra
// header names given.
func NewRedactor(maskHeaders ...string) *Redactor {
	r := &Redactor{mask: map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}}
	for _, h := range maskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			r.mask[h] = struct{}{}
		}
	}
	return r
}

// Scrub replaces UUIDs, emails and phone numbers in s. UUIDs go first so the
// phone pattern never eats their digit groups.
func (r *Redactor) Scrub(s string) string {
	if s == "" {
		return s
	}
	s = uuidRE.ReplaceAllString(s, "[REDACTED:id]")
	s = emailRE.ReplaceAllString(s, "[REDACTED:email]")
	return phoneRE.ReplaceAllString(s, "[REDACTED:phone]")
}

// Query scrubs a raw query string and blanks search terms entirely.
func (r *Redactor) Query(raw string) string {
	raw = searchParamRE.ReplaceAllString(raw, "${1}${2}="+redacted)
	return r.Scrub(raw)
}

// Headers flattens h into a loggable map with masked and scrubbed values.
func (r *Redactor) Headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vv := range h {
		if _, ok := r.mask[strings.ToLower(k)]; ok {
			out[k] = redacted
			continue
		}
		out[k] = r.Scrub(strings.Join(vv, ", "))
	}
	return out
}
