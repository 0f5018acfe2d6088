package transfer

import (
	"html"
	"html/template"
	"net/http"
	"regexp"
	"strings"
)

var errorPage = template.Must(template.New("error").Parse(`<!DOCTYPE HTML>
<html lang="en">
    <head>
        <meta charset="utf-8">
        <title>Error response</title>
    </head>
    <body>
        <h1>Error response</h1>
        <p>Error code: {{.Code}}</p>
        <p>Message: {{.Message}}.</p>
        <p>Error code explanation: {{.Code}} - {{.Explanation}}.</p>
    </body>
</html>
`))

var explanationRE = regexp.MustCompile(`<p>Error code explanation:(.+)</p>`)

// writeError renders the HTML error page for code.
func writeError(w http.ResponseWriter, code int, explanation string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Connection", "close")
	w.WriteHeader(code)
	errorPage.Execute(w, struct {
		Code        int
		Message     string
		Explanation string
	}{code, http.StatusText(code), explanation})
}

// extractExplanation returns the explanation line of an error page, or the
// trimmed body when it carries none.
func extractExplanation(body []byte) string {
	m := explanationRE.FindSubmatch(body)
	if m == nil {
		s := strings.TrimSpace(string(body))
		if len(s) > 200 {
			s = s[:200]
		}
		return s
	}
	return html.UnescapeString(strings.TrimSpace(string(m[1])))
}
