// Package dashboard serves a minimal read-only HTML page rendering the
// current metrics snapshot, supplementing spec.md's control surface
// (see SPEC_FULL.md section 11). Grounded on the teacher pack's use of
// html/template for operator-facing pages, kept deliberately small:
// this is a debugging aid, not a client of record.
package dashboard

import (
	"html/template"
	"net/http"

	"pubsub-broker/internal/registry"
	"pubsub-broker/internal/snapshot"
)

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<title>broker dashboard</title>
<meta http-equiv="refresh" content="5">
<style>
body { font-family: monospace; margin: 2rem; }
table { border-collapse: collapse; margin-top: 1rem; }
td, th { border: 1px solid #ccc; padding: 0.3rem 0.6rem; text-align: right; }
th { text-align: center; }
td:first-child, th:first-child { text-align: left; }
</style>
</head>
<body>
<h1>broker dashboard</h1>
<p>uptime: {{printf "%.0f" .UptimeSeconds}}s &middot;
   active topics: {{.Global.ActiveTopics}} &middot;
   active subscribers: {{.Global.ActiveSubscribers}}</p>
<table>
<tr><th>topic</th><th>queue</th><th>published</th><th>delivered</th><th>dropped</th><th>subscribers</th><th>p95 ms</th><th>p99 ms</th></tr>
{{range $name, $m := .Topics}}
<tr>
<td>{{$name}}</td>
<td>{{$m.QueueDepth}}/{{$m.QueueMaxSize}}</td>
<td>{{$m.MessagesPublished}}</td>
<td>{{$m.MessagesDelivered}}</td>
<td>{{$m.MessagesDropped}}</td>
<td>{{$m.SubscriberCount}}</td>
<td>{{printf "%.2f" $m.LatencyMs.P95}}</td>
<td>{{printf "%.2f" $m.LatencyMs.P99}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

// Handler returns an http.Handler serving the dashboard page, calling
// uptimeSeconds at request time.
func Handler(reg *registry.Registry, uptimeSeconds func() float64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := snapshot.BuildMetrics(reg, uptimeSeconds())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pageTemplate.Execute(w, data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
