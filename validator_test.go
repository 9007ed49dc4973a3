package main

import "testing"

func fullTokenSet() []RawCookie {
	cookies := make([]RawCookie, 0, len(requiredSessionTokens))
	for _, name := range requiredSessionTokens {
		cookies = append(cookies, RawCookie{
			Domain: ".youtube.com",
			Path:   "/",
			Name:   name,
			Value:  "value-" + name,
		})
	}
	return cookies
}

func TestValidateCookiesCompleteSet(t *testing.T) {
	if !ValidateCookies(fullTokenSet()) {
		t.Error("Expected complete token set to validate")
	}
}

func TestValidateCookiesWithExtras(t *testing.T) {
	cookies := append(fullTokenSet(),
		RawCookie{Domain: ".youtube.com", Name: "PREF", Value: "tz=UTC"},
		RawCookie{Domain: ".google.com", Name: "NID", Value: "511"},
	)

	if !ValidateCookies(cookies) {
		t.Error("Expected set with extras to validate")
	}
}

func TestValidateCookiesEachMissingToken(t *testing.T) {
	for _, missing := range requiredSessionTokens {
		t.Run("missing "+missing, func(t *testing.T) {
			var cookies []RawCookie
			for _, c := range fullTokenSet() {
				if c.Name != missing {
					cookies = append(cookies, c)
				}
			}

			if ValidateCookies(cookies) {
				t.Errorf("Expected validation to fail without %s", missing)
			}
		})
	}
}

func TestValidateCookiesEmptyValue(t *testing.T) {
	cookies := fullTokenSet()
	cookies[0].Value = ""

	if ValidateCookies(cookies) {
		t.Errorf("Expected validation to fail with empty %s", cookies[0].Name)
	}
}

func TestValidateCookiesEmptySet(t *testing.T) {
	if ValidateCookies(nil) {
		t.Error("Expected empty set to fail validation")
	}
}
