// Package template performs literal {{key}} substitution into stored
// subject/body content. Rendering is a pure function: identical inputs yield
// identical output, and keys absent from the variables map are left as the
// verbatim token so missing data stays detectable downstream.
package template

import "regexp"

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

type Content struct {
	Subject string
	Body    string
}

func Render(s string, vars map[string]string) string {
	if s == "" || len(vars) == 0 {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholder.FindStringSubmatch(match)[1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}

func RenderContent(subject, body string, vars map[string]string) Content {
	return Content{
		Subject: Render(subject, vars),
		Body:    Render(body, vars),
	}
}
