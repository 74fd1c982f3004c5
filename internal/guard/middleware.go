// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EduSphere Contributors

package guard

import (
	"net/http"
)

const waitingPage = `<!doctype html>
<html><head><meta charset="utf-8"><meta http-equiv="refresh" content="1"><title>Loading</title></head>
<body><p>Loading…</p></body></html>
`

// Middleware guards the paths in table. Unprotected paths pass through.
// While the state is unsettled it answers 503 with a waiting page and
// Retry-After; redirects use 303 See Other.
func Middleware(src Source, table *Table) func(http.Handler) http.Handler {
	if table == nil {
		table = DefaultTable()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			roles, protected := table.Match(r.URL.Path)
			if !protected {
				next.ServeHTTP(w, r)
				return
			}

			d := Check(src, r.URL.RequestURI(), roles...)
			RecordDecision(d.Outcome)
			switch d.Outcome {
			case Allow:
				next.ServeHTTP(w, r)
			case Redirect:
				http.Redirect(w, r, d.Location, http.StatusSeeOther)
			default:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(waitingPage))
			}
		})
	}
}
