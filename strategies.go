package main

import (
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// elementStrategy is one way of locating a page element: attribute-based,
// text-based, or structural. The driver tries an ordered list and stops at the
// first hit, which keeps provider-UI fragility out of the control flow.
type elementStrategy struct {
	name string
	find func(page *rod.Page) (*rod.Element, error)
}

// selectorStrategy matches a comma-separated CSS fallback list.
func selectorStrategy(name, selectors string) elementStrategy {
	return elementStrategy{
		name: name,
		find: func(page *rod.Page) (*rod.Element, error) {
			return page.Element(selectors)
		},
	}
}

// textStrategy matches elements by visible text, case-insensitive.
func textStrategy(name, selector, pattern string) elementStrategy {
	return elementStrategy{
		name: name,
		find: func(page *rod.Page) (*rod.Element, error) {
			return page.ElementR(selector, "/"+pattern+"/i")
		},
	}
}

// findFirst tries each strategy in order with a per-strategy timeout and
// returns the first visible match. ok is false when no strategy matched,
// which callers decide is success (optional UI) or failure (required UI).
func findFirst(page *rod.Page, timeout time.Duration, strategies []elementStrategy) (*rod.Element, string, bool) {
	for _, strat := range strategies {
		el, err := strat.find(page.Timeout(timeout))
		if err != nil || el == nil {
			continue
		}
		if visible, err := el.Visible(); err != nil || !visible {
			continue
		}
		return el, strat.name, true
	}
	return nil, "", false
}

// consentStrategies covers the regional consent interstitial. It may
// legitimately be absent outside the EU, so total absence is not a failure.
func consentStrategies(selectors SelectorConfig) []elementStrategy {
	return []elementStrategy{
		selectorStrategy("consent-attribute", selectors.ConsentAccept),
		textStrategy("consent-text", "button", "accept all|i agree|agree"),
		selectorStrategy("consent-structural", selectors.ConsentForm),
	}
}

// signInStrategies locates the sign-in entry on the service landing page. No
// match here falls back to direct navigation of the login endpoint.
func signInStrategies(selectors SelectorConfig) []elementStrategy {
	return []elementStrategy{
		selectorStrategy("signin-attribute", selectors.SignInEntry),
		textStrategy("signin-text", "a, button", "sign in"),
	}
}

// Page-content markers used to classify a stalled or rejected login. The
// provider localizes both straight and curly apostrophes, so both forms are
// listed where they occur.
var (
	detectionMarkers = []string{
		"unusual traffic",
		"automated queries",
		"our systems have detected",
		"browser or app may not be secure",
	}

	accountNotFoundMarkers = []string{
		"couldn't find your google account",
		"couldn’t find your google account",
		"enter a valid email",
	}

	verificationMarkers = []string{
		"verify it's you",
		"verify it’s you",
		"2-step verification",
		"confirm your recovery email",
		"confirm your recovery phone",
		"get a verification code",
	}

	wrongPasswordMarkers = []string{
		"wrong password",
		"your password was changed",
	}
)

// classifyIdentifierStall classifies the page after the identifier was
// submitted but no password field appeared. Exhaustive: anything unrecognized
// is a retryable unknown.
func classifyIdentifierStall(pageContent string) AttemptOutcome {
	switch {
	case containsAny(pageContent, detectionMarkers...):
		return TerminalOutcome(ReasonDetection, "bot detection banner after identifier step")
	case containsAny(pageContent, accountNotFoundMarkers...):
		return TerminalOutcome(ReasonCredentialError, "account not found")
	case containsAny(pageContent, verificationMarkers...):
		return TerminalOutcome(ReasonVerificationRequired, "identity verification prompt at identifier step")
	default:
		return RetryableOutcome(ReasonUnknown, "password field never appeared")
	}
}

// classifyPasswordResult classifies the page after the password was
// submitted. ok means no rejection marker was seen and the flow may proceed.
func classifyPasswordResult(pageContent string) (AttemptOutcome, bool) {
	switch {
	case containsAny(pageContent, wrongPasswordMarkers...):
		return TerminalOutcome(ReasonCredentialError, "password rejected"), false
	case containsAny(pageContent, verificationMarkers...):
		return TerminalOutcome(ReasonVerificationRequired, "verification challenge after password step"), false
	case containsAny(pageContent, detectionMarkers...):
		return TerminalOutcome(ReasonDetection, "bot detection banner after password step"), false
	default:
		return AttemptOutcome{}, true
	}
}

func containsAny(s string, substrs ...string) bool {
	s = strings.ToLower(s)
	for _, substr := range substrs {
		if strings.Contains(s, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

// relevantCookieDomain reports whether a harvested cookie belongs to the
// provider/service domain family the downstream client cares about.
func relevantCookieDomain(domain string) bool {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	return domain == "youtube.com" || strings.HasSuffix(domain, ".youtube.com") ||
		domain == "google.com" || strings.HasSuffix(domain, ".google.com")
}
