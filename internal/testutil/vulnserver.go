// Package testutil provides test utilities including a mock vulnerable web
// application for exercising the probe sweeps end to end.
//
// SECURITY NOTE: This package is for testing only. The mock server
// simulates SQL error leaks, reflected XSS, command output, a filtered
// admin area and a weak MFA check. Only /contact.php reflects input
// unescaped; every other user-derived value is escaped via html/template.
package testutil

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AcceptedMFAToken is the one-time token the mock MFA endpoint accepts.
const AcceptedMFAToken = "000000"

// sleepSecondsPattern extracts the seconds argument from SLEEP(n).
var sleepSecondsPattern = regexp.MustCompile(`(?i)SLEEP\((\d+)\)`)

var tmpl = template.Must(template.New("").Parse(`
{{define "sql-error"}}<html><body><h1>Error</h1><p>You have an error in your SQL syntax; check the manual that corresponds to your MySQL server version for the right syntax to use near '{{.}}'</p></body></html>{{end}}
{{define "search"}}<html><head><title>Search</title></head><body><h1>Search</h1><p>No results.</p></body></html>{{end}}
{{define "ping"}}<html><body><h1>Ping</h1><p>Host {{.}} is up.</p></body></html>{{end}}
{{define "ping-injected"}}<html><body><pre>uid=33(www-data) gid=33(www-data) groups=33(www-data)</pre></body></html>{{end}}
{{define "admin"}}<html><head><title>Admin Dashboard</title></head><body><h1>Welcome to the admin dashboard</h1></body></html>{{end}}
{{define "denied"}}<html><body><h1>Access denied</h1></body></html>{{end}}
{{define "login"}}<html><head><title>  Sign
  in </title></head><body><form method="post"></form></body></html>{{end}}
`))

// ServerOptions tunes the mock server.
type ServerOptions struct {
	// SleepCap bounds the simulated delay for SLEEP(n) payloads.
	// Zero means 1s.
	SleepCap time.Duration
}

// NewVulnServer creates a mock vulnerable web application with default
// options. The returned *httptest.Server should be closed after use.
//
//	/search.php   id leaks a MySQL syntax error on a quote, stalls on SLEEP(n)
//	/contact.php  name is reflected without escaping
//	/ping.php     host runs "commands" after ; | & ` or $(
//	/admin        403 unless X-Forwarded-For is 127.0.0.1
//	/mfa          POST token=000000 succeeds
//	/login, /.env, /api, /old, /robots.txt   enumeration fixtures
func NewVulnServer() *httptest.Server {
	return NewVulnServerWith(ServerOptions{})
}

// NewVulnServerWith creates a mock server with the given options.
func NewVulnServerWith(opts ServerOptions) *httptest.Server {
	if opts.SleepCap <= 0 {
		opts.SleepCap = time.Second
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/search.php", handleSearch(opts.SleepCap))
	mux.HandleFunc("/contact.php", handleContact)
	mux.HandleFunc("/ping.php", handlePing)
	mux.HandleFunc("/admin", handleAdmin)
	mux.HandleFunc("/mfa", handleMFA)

	mux.HandleFunc("/login", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Server", "nginx/1.25.3")
		execTemplate(w, "login", nil)
	})
	mux.HandleFunc("/.env", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"unauthorized"}`)
	})
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /admin\n")
	})

	return httptest.NewServer(mux)
}

// execTemplate renders a named template with the given data.
func execTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

// param reads name from the query string or, for POST, the form body.
func param(r *http.Request, name string) string {
	if r.Method == http.MethodPost {
		_ = r.ParseForm()
		return r.PostForm.Get(name)
	}
	return r.URL.Query().Get(name)
}

func handleSearch(sleepCap time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := param(r, "id")

		if m := sleepSecondsPattern.FindStringSubmatch(id); m != nil {
			secs, _ := strconv.Atoi(m[1])
			d := time.Duration(secs) * time.Second
			if d > sleepCap {
				d = sleepCap
			}
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}

		if strings.Contains(id, "'") {
			w.WriteHeader(http.StatusInternalServerError)
			execTemplate(w, "sql-error", id)
			return
		}
		execTemplate(w, "search", nil)
	}
}

// handleContact reflects name verbatim.
func handleContact(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body><h1>Contact</h1><p>Thanks, %s!</p></body></html>", name)
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	host := param(r, "host")
	for _, sep := range []string{";", "|", "&", "`", "$("} {
		if strings.Contains(host, sep) {
			execTemplate(w, "ping-injected", nil)
			return
		}
	}
	execTemplate(w, "ping", host)
}

func handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Forwarded-For") != "127.0.0.1" {
		w.WriteHeader(http.StatusForbidden)
		execTemplate(w, "denied", nil)
		return
	}
	execTemplate(w, "admin", nil)
}

func handleMFA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if param(r, "token") != AcceptedMFAToken {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"invalid token"}`)
		return
	}
	fmt.Fprint(w, `{"status":"success"}`)
}
