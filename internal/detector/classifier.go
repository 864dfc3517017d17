package detector

import "strings"

// Verdict is the outcome of a classification rule. Marker is the signature
// that matched and is empty when Vulnerable is false.
type Verdict struct {
	Vulnerable bool
	Marker     string
}

// Rule judges a delivered response body. rawPayload is the payload before
// encoding; only the reflection rule uses it.
type Rule func(body, rawPayload string) Verdict

// sqlErrorMarkers are lowercase database error banners and engine names.
var sqlErrorMarkers = []string{
	"sql syntax", "mysql", "sqlite", "postgresql", "oracle",
	"syntax error", "database error", "warning: mysql",
	"unclosed quotation", "quoted string not properly terminated",
	"mssql", "odbc", "jdbc", "ora-", "pg_query", "sqlite3",
	"db2", "sybase", "unexpected end of sql command",
}

// xssContextMarkers are tags that make a reflection executable. They are
// matched case-sensitively against the raw body.
var xssContextMarkers = []string{"<script", "<img", "<svg", "<body", "<iframe"}

// commandOutputMarkers are lowercase fragments of typical Unix and Windows
// command output.
var commandOutputMarkers = []string{
	"root:", "bin/bash", "uid=", "gid=", "groups=",
	`c:\windows`, `c:\users`, "volume serial number",
	"directory of", "total", "drwx", "-rw-",
}

// timeBasedMarkers identify payloads that ask the database to stall.
var timeBasedMarkers = []string{"SLEEP", "BENCHMARK"}

// wafBypassIndicators appear on pages served once a protected resource has
// been reached.
var wafBypassIndicators = []string{"admin", "dashboard", "welcome", "panel", "login successful"}

// ClassifySQL reports a database error banner in body.
func ClassifySQL(body, _ string) Verdict {
	return containsAnyFold(body, sqlErrorMarkers)
}

// ClassifyXSS reports a reflected payload. Both conditions must hold: the
// raw payload appears verbatim and the body carries a dangerous tag.
func ClassifyXSS(body, rawPayload string) Verdict {
	if rawPayload == "" || !strings.Contains(body, rawPayload) {
		return Verdict{}
	}
	for _, tag := range xssContextMarkers {
		if strings.Contains(body, tag) {
			return Verdict{Vulnerable: true, Marker: tag}
		}
	}
	return Verdict{}
}

// ClassifyCommand reports command output in body.
func ClassifyCommand(body, _ string) Verdict {
	return containsAnyFold(body, commandOutputMarkers)
}

// ClassifyWAFBypass reports a page that looks like a reached admin area.
func ClassifyWAFBypass(body, _ string) Verdict {
	return containsAnyFold(body, wafBypassIndicators)
}

// ClassifyMFABypass reports an accepted MFA token.
func ClassifyMFABypass(body, _ string) Verdict {
	return containsAnyFold(body, []string{"success"})
}

// ClassifyTimeout judges a trial whose request timed out. A single timeout
// on a payload carrying a stall marker is treated as blind injection; there
// is no baseline comparison and no retry.
func ClassifyTimeout(rawPayload string) Verdict {
	upper := strings.ToUpper(rawPayload)
	for _, m := range timeBasedMarkers {
		if strings.Contains(upper, m) {
			return Verdict{Vulnerable: true, Marker: m}
		}
	}
	return Verdict{}
}

// containsAnyFold returns a positive verdict for the first marker found in
// body, ignoring case. Markers must be lowercase.
func containsAnyFold(body string, markers []string) Verdict {
	if body == "" {
		return Verdict{}
	}
	lower := strings.ToLower(body)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return Verdict{Vulnerable: true, Marker: m}
		}
	}
	return Verdict{}
}
