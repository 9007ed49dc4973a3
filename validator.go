package main

// requiredSessionTokens is the minimal cookie set the downstream client needs
// to be treated as authenticated. A harvest missing any of these is useless no
// matter what the login page looked like.
var requiredSessionTokens = []string{
	"SID",
	"HSID",
	"SSID",
	"APISID",
	"SAPISID",
	"LOGIN_INFO",
}

// ValidateCookies reports whether the harvested set carries every required
// session token with a non-empty value. Extra cookies are ignored. The
// validator is authoritative over any UI-level login probe.
func ValidateCookies(cookies []RawCookie) bool {
	values := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if _, seen := values[c.Name]; !seen {
			values[c.Name] = c.Value
		}
	}

	for _, name := range requiredSessionTokens {
		if values[name] == "" {
			return false
		}
	}

	return true
}
