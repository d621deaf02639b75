package router

import (
	"html/template"
	"net/http"
)

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html>
<head><title>Function Gateway</title></head>
<body>
<h1>Function Gateway</h1>
<p>Version {{.Version}}</p>
<p>Functions are invoked at <code>/[userguid]/[functionname]/</code>. Deployed functions are listed at <a href="/_directory">/_directory</a>.</p>
<p>{{.Functions}} function(s) deployed.</p>
</body>
</html>
`))

func (router *Router) landing(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	landingPage.Execute(w, struct {
		Version   string
		Functions int
	}{router.version, len(router.registry.Definitions())})
}
