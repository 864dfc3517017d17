package config

import "strings"

// LookupFunc reads one environment variable; os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides c with the variables that are set. Boolean toggles are
// enabled only by the value "true" (any case); any other value disables
// them.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			*dst = strings.EqualFold(strings.TrimSpace(v), "true")
		}
	}

	str("TARGET_URL", &c.Target.URL)
	str("TARGET_SEARCH_URL", &c.Target.SearchURL)
	str("TARGET_CONTACT_URL", &c.Target.ContactURL)
	str("TARGET_ADMIN_URL", &c.Target.AdminURL)
	str("TARGET_MFA_URL", &c.Target.MFAURL)

	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &c.Telegram.ChatID)

	str("WORDLIST_PATH", &c.WordlistPath)
	str("MFA_TOKEN_FILE", &c.MFATokenFile)
	str("REPORT_PATH", &c.ReportPath)
	str("SESSION_PATH", &c.SessionPath)
	str("METRICS_ADDR", &c.MetricsAddr)
	str("HTTP_PROXY_URL", &c.Proxy)

	flag("ENABLE_ENUMERATION", &c.Features.Enumeration)
	flag("ENABLE_SQL_INJECTION", &c.Features.SQLInjection)
	flag("ENABLE_XSS", &c.Features.XSS)
	flag("ENABLE_COMMAND_INJECTION", &c.Features.CommandInjection)
	flag("ENABLE_WAF_BYPASS", &c.Features.WAFBypass)
	flag("ENABLE_MFA_BYPASS", &c.Features.MFABypass)
	flag("ENABLE_TELEGRAM", &c.Features.Telegram)
	flag("ENABLE_BRUTEFORCE", &c.Features.Bruteforce)
}
