package detector

import (
	"regexp"
	"sort"
)

// dbmsPatterns maps DBMS names to their error message patterns. They refine
// a positive SQL verdict into a hint about the backend; they never decide
// the verdict themselves.
var dbmsPatterns = map[string][]*regexp.Regexp{
	"MySQL": {
		regexp.MustCompile(`(?i)You have an error in your SQL syntax`),
		regexp.MustCompile(`(?i)Warning:.*\bmysql_`),
		regexp.MustCompile(`(?i)MySqlException`),
		regexp.MustCompile(`(?i)valid MySQL result`),
		regexp.MustCompile(`(?i)com\.mysql\.jdbc`),
	},
	"PostgreSQL": {
		regexp.MustCompile(`(?i)ERROR:\s+syntax error at or near`),
		regexp.MustCompile(`(?i)pg_query\(\)`),
		regexp.MustCompile(`(?i)PostgreSQL.*ERROR`),
		regexp.MustCompile(`(?i)Npgsql\.`),
	},
	"MSSQL": {
		regexp.MustCompile(`(?i)Unclosed quotation mark`),
		regexp.MustCompile(`(?i)Microsoft SQL Native Client`),
		regexp.MustCompile(`(?i)\[ODBC SQL Server Driver\]`),
		regexp.MustCompile(`(?i)Msg \d+, Level \d+, State \d+`),
	},
	"Oracle": {
		regexp.MustCompile(`ORA-\d{5}`),
		regexp.MustCompile(`(?i)oracle\.jdbc`),
		regexp.MustCompile(`(?i)OracleException`),
	},
	"SQLite": {
		regexp.MustCompile(`(?i)SQLITE_ERROR`),
		regexp.MustCompile(`(?i)sqlite3\.OperationalError`),
		regexp.MustCompile(`(?i)SQLite\.Exception`),
	},
}

// IdentifyDBMS returns the names of the database engines whose error
// signatures appear in body, sorted alphabetically.
func IdentifyDBMS(body []byte) []string {
	if len(body) == 0 {
		return nil
	}

	var names []string
	for name, patterns := range dbmsPatterns {
		for _, pat := range patterns {
			if pat.Match(body) {
				names = append(names, name)
				break
			}
		}
	}
	sort.Strings(names)
	return names
}
