package embed

import "html/template"

type page struct {
	Title   string
	Version string
	Body    template.HTML
}

func unavailablePage() page {
	return page{
		Title: "Policy not available",
		Body:  template.HTML("<p>This policy is not available.</p>"),
	}
}

var pageTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  body { margin: 0; padding: 16px; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; line-height: 1.6; color: #1f2933; }
  h1, h2, h3 { line-height: 1.25; }
  table { border-collapse: collapse; }
  td, th { border: 1px solid #d2d6dc; padding: 4px 8px; }
  .policybolt-version { color: #6b7280; font-size: 0.85em; }
</style>
</head>
<body>
<main id="policybolt-policy">
{{.Body}}
{{if .Version}}<p class="policybolt-version">Version {{.Version}}</p>{{end}}
</main>
<script>
(function () {
  function height() {
    return document.documentElement.scrollHeight;
  }
  function post() {
    window.parent.postMessage({ type: "policybolt:resize", height: height() }, "*");
  }
  window.addEventListener("load", post);
  window.addEventListener("resize", post);
  window.addEventListener("message", function (e) {
    if (e.data && e.data.type === "policybolt:request-height") {
      post();
    }
  });
})();
</script>
</body>
</html>
`))
