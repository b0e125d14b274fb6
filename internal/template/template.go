// Package template renders campaign message bodies against per-contact
// variables.
package template

import "strings"

// Render substitutes {var} placeholders with values from vars. Placeholders
// with no matching variable are left verbatim; rendering never fails, so a
// stray variable in a template cannot sink a launch.
func Render(body string, vars map[string]string) string {
	out := body
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
