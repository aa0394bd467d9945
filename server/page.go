package server

import (
	"bytes"
	"html/template"
	"net/http"

	"clientlookup/brand"
	"clientlookup/lookup"
)

type pageView struct {
	Step      string
	InputID   string
	ClientID  string
	ExampleID string
	Details   *brand.Details
	Error     string
	ErrorKind string
}

func newPageView(state lookup.State, exampleID string) pageView {
	view := pageView{Step: lookup.StateName(state), ExampleID: exampleID}
	switch s := state.(type) {
	case lookup.Ready:
		view.InputID = s.InputID
	case lookup.Loading:
		view.ClientID = s.ClientID
	case lookup.Loaded:
		details := s.Details
		view.Details = &details
	case lookup.Failed:
		view.Error = s.Message()
		view.ErrorKind = string(s.Kind())
	}
	return view
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{if eq .Step "loading"}}<meta http-equiv="refresh" content="1">{{end}}
<title>google-client-id-lookup</title>
<style>
body { font-family: Arial, sans-serif; margin: 4rem auto; max-width: 42rem; padding: 0 1rem; color: #1d1d1f; }
h1 { font-size: 1.8rem; margin-bottom: 1rem; }
.card { border: 1px solid #d0d0d5; border-radius: 8px; padding: 1.5rem; margin-bottom: 1.5rem; }
.card--error { border-color: #f5b5b5; background: #fbeaea; }
.row { display: flex; gap: 0.5rem; }
.row input[type=text] { flex: 1; padding: 0.5rem; border: 1px solid #c0c0c5; border-radius: 6px; }
button { padding: 0.5rem 1rem; font-size: 1rem; cursor: pointer; border-radius: 6px; border: 0; background: #1976d2; color: #fff; }
button.link { background: none; color: inherit; padding: 0; text-decoration: underline; font-size: inherit; }
form.inline { display: inline; }
.spinner { display: inline-block; width: 1.5rem; height: 1.5rem; border: 4px solid transparent; border-top-color: #1976d2; border-right-color: #1976d2; border-radius: 50%; animation: spin 1s linear infinite; vertical-align: middle; margin-right: 1rem; }
@keyframes spin { to { transform: rotate(360deg); } }
.app { display: flex; gap: 1rem; align-items: center; margin-bottom: 1.5rem; }
.app img { width: 5rem; height: 5rem; border: 1px solid #d0d0d5; border-radius: 8px; }
.muted { color: #555; }
a { color: #1976d2; }
</style>
</head>
<body>
<h1>google-client-id-lookup</h1>
<p>This tool can find the app details behind a given Google Client ID (such as 12345.apps.googleusercontent.com).</p>
{{if eq .Step "ready"}}
<div class="card">
  <form method="post" action="/lookup" class="row">
    <input type="text" name="client_id" placeholder="Enter Client ID" value="{{.InputID}}" aria-label="Client ID" />
    <button type="submit">Lookup</button>
  </form>
  <p>Just curious? <form method="post" action="/example" class="inline"><button type="submit" class="link">Use an example</button></form>.</p>
</div>
{{else if eq .Step "loading"}}
<div class="card">
  <span class="spinner"></span><span class="muted">Finding app details...</span>
  <p class="muted"><small>{{.ClientID}}</small></p>
  <form method="post" action="/reset"><button type="submit" class="link">Cancel</button></form>
</div>
{{else if eq .Step "failed"}}
<div class="card card--error">
  <strong>Error occurred</strong>
  <p>{{.Error}}</p>
  <p><form method="post" action="/reset" class="inline"><button type="submit" class="link">Try again</button></form>.</p>
</div>
{{else if eq .Step "loaded"}}
{{with .Details}}
<div class="card">
  <div class="app">
    {{if .LogoSrc}}<img src="{{.LogoSrc}}" alt="App Logo" />{{end}}
    <div>
      <h2>{{.Name}}</h2>
      <p class="muted"><a href="mailto:{{.Email}}">{{.Email}}</a></p>
      <p><a href="{{.Website}}" target="_blank" rel="noopener noreferrer">{{.Website}}</a></p>
    </div>
  </div>
  <h3>Terms of Service</h3>
  <ul>
  {{range .TermsURLs}}<li><a href="{{.}}" target="_blank" rel="noopener noreferrer">{{.}}</a></li>
  {{end}}
  </ul>
  <h3>Privacy Policy</h3>
  <ul>
  {{range .PrivacyURLs}}<li><a href="{{.}}" target="_blank" rel="noopener noreferrer">{{.}}</a></li>
  {{end}}
  </ul>
</div>
{{end}}
<p>Want to lookup another app? <form method="post" action="/reset" class="inline"><button type="submit" class="link">Start over</button></form>.</p>
{{end}}
<p class="muted">This tool is open-source, and the code is available on <a href="https://github.com/domdomegg/google-client-id-lookup">GitHub</a>.</p>
</body>
</html>
`))

func renderPage(w http.ResponseWriter, view pageView) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err := buf.WriteTo(w)
	return err
}
