package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// LoginDriver walks the provider's login flow inside a real browser and
// classifies the result of each attempt. It decides only how one attempt
// ends, never whether to retry; that is the controller's job.
type LoginDriver struct {
	config   *Config
	diag     Diagnostics
	launcher *launcher.Launcher
	browser  *rod.Browser
	rand     *rand.Rand
}

func NewLoginDriver(config *Config, diag Diagnostics) *LoginDriver {
	return &LoginDriver{
		config: config,
		diag:   diag,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the browser process shared by all attempts. Each attempt
// still gets its own incognito context, so no login state leaks between
// accounts.
func (d *LoginDriver) Start() error {
	d.diag.Info("Launching browser")

	// Disable leakless mode on Windows to prevent deadlock
	// See: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	d.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(d.config.Headless)

	// Prefer system Chrome: avoids the Chromium download and looks less like
	// a stock automation build to the provider.
	if chromePath, ok := launcher.LookPath(); ok {
		d.launcher = d.launcher.Bin(chromePath)
		d.diag.Debug("Using system Chrome", "path", chromePath)
	} else {
		d.diag.Debug("System Chrome not found, falling back to managed Chromium")
	}

	url, err := d.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	d.browser = rod.New().ControlURL(url)
	if err := d.browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	d.diag.Info("Browser ready", "headless", d.config.Headless)
	return nil
}

func (d *LoginDriver) Close() {
	if d.browser != nil {
		d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
}

// AttemptLogin runs one full login attempt for one account. Every exit path
// returns a classified AttemptOutcome; on terminal or unexpected exits a
// best-effort screenshot is captured first.
func (d *LoginDriver) AttemptLogin(account Account, attempt int) AttemptOutcome {
	d.diag.Info("Starting login attempt", "account", account.Email, "attempt", attempt)

	incognito, err := d.browser.Incognito()
	if err != nil {
		return d.unexpected(nil, account, attempt, fmt.Errorf("failed to create incognito context: %w", err))
	}

	page, err := stealth.Page(incognito)
	if err != nil {
		return d.unexpected(nil, account, attempt, fmt.Errorf("failed to create stealth page: %w", err))
	}
	defer page.Close()

	if err := d.configurePage(page); err != nil {
		return d.unexpected(page, account, attempt, err)
	}

	if err := d.navigate(page, d.config.ServiceURL); err != nil {
		return d.navFailure(page, account, attempt, err)
	}
	d.pause()

	d.dismissConsent(page)
	d.pause()

	if err := d.openLoginPage(page); err != nil {
		return d.navFailure(page, account, attempt, err)
	}
	d.pause()

	if outcome, ok := d.submitIdentifier(page, account, attempt); !ok {
		return outcome
	}

	if outcome, ok := d.submitPassword(page, account, attempt); !ok {
		return outcome
	}

	// Force session materialization on the service itself; some tokens are
	// only set once the service origin is visited with the fresh identity.
	if err := d.navigate(page, d.config.ServiceURL); err != nil {
		return d.navFailure(page, account, attempt, err)
	}
	d.pause()

	d.probeLoggedIn(page, account)

	cookies, err := d.harvestCookies(page)
	if err != nil {
		return d.unexpected(page, account, attempt, err)
	}
	if len(cookies) == 0 {
		d.diag.Screenshot(page, account.Email, attempt)
		return RetryableOutcome(ReasonNoCookies, "no relevant cookies after login")
	}

	d.diag.Info("Harvested session cookies", "account", account.Email, "count", len(cookies))
	return SuccessOutcome(cookies)
}

func (d *LoginDriver) configurePage(page *rod.Page) error {
	err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             d.config.ViewportWidth,
		Height:            d.config.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	err = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      d.config.UserAgent,
		AcceptLanguage: d.config.AcceptLanguage,
	})
	if err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}

	return nil
}

func (d *LoginDriver) navigate(page *rod.Page, url string) error {
	p := page.Timeout(d.navTimeout())
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("page load failed for %s: %w", url, err)
	}
	return nil
}

// dismissConsent handles the regional consent interstitial. It is shown only
// in some regions, so no strategy matching is a normal, successful path.
func (d *LoginDriver) dismissConsent(page *rod.Page) {
	el, strat, ok := findFirst(page, 4*time.Second, consentStrategies(d.config.Selectors))
	if !ok {
		d.diag.Debug("No consent interstitial present")
		return
	}

	d.diag.Info("Dismissing consent interstitial", "strategy", strat)
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		d.diag.Warn("Consent click failed, continuing anyway", "error", err.Error())
		return
	}
	d.pause()
}

// openLoginPage clicks the sign-in entry if one is visible, otherwise falls
// back to navigating the login endpoint directly.
func (d *LoginDriver) openLoginPage(page *rod.Page) error {
	el, strat, ok := findFirst(page, 5*time.Second, signInStrategies(d.config.Selectors))
	if ok {
		d.diag.Debug("Using sign-in entry point", "strategy", strat)
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			if err := page.Timeout(d.navTimeout()).WaitLoad(); err == nil {
				return nil
			}
		}
	}

	d.diag.Debug("Navigating directly to login endpoint")
	return d.navigate(page, d.config.LoginURL)
}

// submitIdentifier types the account email and advances. ok=false carries the
// classified outcome for this attempt.
func (d *LoginDriver) submitIdentifier(page *rod.Page, account Account, attempt int) (AttemptOutcome, bool) {
	emailInput, _, ok := findFirst(page, d.selectorTimeout(), []elementStrategy{
		selectorStrategy("email-input", d.config.Selectors.EmailInput),
	})
	if !ok {
		d.diag.Screenshot(page, account.Email, attempt)
		return RetryableOutcome(ReasonUnknown, "identifier input never appeared"), false
	}

	if err := d.typeText(page, emailInput, account.Email); err != nil {
		return d.unexpected(page, account, attempt, err), false
	}
	d.pause()

	d.advance(page, d.config.Selectors.EmailNext, emailInput)

	// The password field is the signal that the identifier was accepted. If
	// it never shows up, the page state tells us why.
	if _, _, ok := findFirst(page, d.selectorTimeout(), []elementStrategy{
		selectorStrategy("password-input", d.config.Selectors.PasswordInput),
	}); !ok {
		outcome := d.classifyStall(page)
		d.diag.Warn("Password step never reached",
			"account", account.Email, "reason", string(outcome.Reason), "detail", outcome.Detail)
		d.diag.Screenshot(page, account.Email, attempt)
		return outcome, false
	}

	return AttemptOutcome{}, true
}

// classifyStall inspects the stalled identifier page, preferring concrete UI
// probes over text markers.
func (d *LoginDriver) classifyStall(page *rod.Page) AttemptOutcome {
	if _, _, found := findFirst(page, 2*time.Second, []elementStrategy{
		selectorStrategy("captcha", d.config.Selectors.CaptchaFrame),
	}); found {
		return TerminalOutcome(ReasonDetection, "captcha challenge presented")
	}

	if _, _, found := findFirst(page, 2*time.Second, []elementStrategy{
		selectorStrategy("challenge", d.config.Selectors.ChallengeInput),
	}); found {
		return TerminalOutcome(ReasonVerificationRequired, "verification challenge presented")
	}

	return classifyIdentifierStall(d.pageContent(page))
}

func (d *LoginDriver) submitPassword(page *rod.Page, account Account, attempt int) (AttemptOutcome, bool) {
	passwordInput, _, ok := findFirst(page, d.selectorTimeout(), []elementStrategy{
		selectorStrategy("password-input", d.config.Selectors.PasswordInput),
	})
	if !ok {
		outcome := d.classifyStall(page)
		d.diag.Screenshot(page, account.Email, attempt)
		return outcome, false
	}

	d.pause()
	if err := d.typeText(page, passwordInput, account.Password); err != nil {
		return d.unexpected(page, account, attempt, err), false
	}
	d.pause()

	d.advance(page, d.config.Selectors.PasswordNext, passwordInput)

	// Give the provider time to either move on or push back.
	d.sleepMs(2000, 3500)

	if _, _, found := findFirst(page, 3*time.Second, []elementStrategy{
		selectorStrategy("challenge", d.config.Selectors.ChallengeInput),
	}); found {
		d.diag.Screenshot(page, account.Email, attempt)
		return TerminalOutcome(ReasonVerificationRequired, "verification challenge after password step"), false
	}

	if outcome, ok := classifyPasswordResult(d.pageContent(page)); !ok {
		d.diag.Screenshot(page, account.Email, attempt)
		return outcome, false
	}

	return AttemptOutcome{}, true
}

// probeLoggedIn checks for an authenticated-only UI element. Absence is
// logged, not fatal: the token validator, not a UI probe, decides whether the
// harvest is usable.
func (d *LoginDriver) probeLoggedIn(page *rod.Page, account Account) {
	_, _, ok := findFirst(page, 6*time.Second, []elementStrategy{
		selectorStrategy("logged-in-probe", d.config.Selectors.LoggedInProbe),
	})
	if !ok {
		d.diag.Warn("Authenticated UI element not found, harvesting anyway", "account", account.Email)
		return
	}
	d.diag.Info("Login verified via authenticated UI element", "account", account.Email)
}

func (d *LoginDriver) harvestCookies(page *rod.Page) ([]RawCookie, error) {
	protoCookies, err := page.Cookies([]string{
		d.config.ServiceURL,
		"https://accounts.google.com",
		"https://www.google.com",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	var cookies []RawCookie
	for _, c := range protoCookies {
		if !relevantCookieDomain(c.Domain) {
			continue
		}
		cookies = append(cookies, RawCookie{
			Domain:   c.Domain,
			Path:     c.Path,
			Name:     c.Name,
			Value:    c.Value,
			Expires:  float64(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: sameSiteValue(c.SameSite),
		})
	}

	return cookies, nil
}

func sameSiteValue(s proto.NetworkCookieSameSite) string {
	switch s {
	case proto.NetworkCookieSameSiteStrict:
		return "strict"
	case proto.NetworkCookieSameSiteLax:
		return "lax"
	case proto.NetworkCookieSameSiteNone:
		return "no_restriction"
	default:
		return ""
	}
}

// typeText clicks into the field and enters text one rune at a time with
// human-scale pacing. Instant programmatic input is a detection signal.
func (d *LoginDriver) typeText(page *rod.Page, el *rod.Element, text string) error {
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to focus input: %w", err)
	}

	for _, r := range text {
		if err := page.InsertText(string(r)); err != nil {
			return fmt.Errorf("failed to type into input: %w", err)
		}
		d.sleepMs(d.config.TypeDelayMinMs, d.config.TypeDelayMaxMs)
	}

	return nil
}

// advance clicks the step's next button, falling back to Enter on the input.
func (d *LoginDriver) advance(page *rod.Page, nextSelectors string, inputEl *rod.Element) {
	if el, _, ok := findFirst(page, 3*time.Second, []elementStrategy{
		selectorStrategy("next-button", nextSelectors),
	}); ok {
		if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return
		}
	}

	if err := inputEl.Type(input.Enter); err != nil {
		d.diag.Warn("Failed to advance login step", "error", err.Error())
	}
}

func (d *LoginDriver) pageContent(page *rod.Page) string {
	body, err := page.Timeout(5 * time.Second).Element("body")
	if err != nil {
		return ""
	}
	text, err := body.Text()
	if err != nil {
		return ""
	}
	return text
}

// navFailure maps navigation errors: deadline exceeded is a retryable
// timeout, anything else a retryable unknown.
func (d *LoginDriver) navFailure(page *rod.Page, account Account, attempt int, err error) AttemptOutcome {
	d.diag.Screenshot(page, account.Email, attempt)
	if errors.Is(err, context.DeadlineExceeded) {
		return RetryableOutcome(ReasonTimeout, err.Error())
	}
	return RetryableOutcome(ReasonUnknown, err.Error())
}

func (d *LoginDriver) unexpected(page *rod.Page, account Account, attempt int, err error) AttemptOutcome {
	d.diag.Warn("Unexpected driver error", "account", account.Email, "attempt", attempt, "error", err.Error())
	d.diag.Screenshot(page, account.Email, attempt)
	if errors.Is(err, context.DeadlineExceeded) {
		return RetryableOutcome(ReasonTimeout, err.Error())
	}
	return RetryableOutcome(ReasonUnknown, err.Error())
}

// pause inserts a randomized human-scale delay between interactions. This is
// an anti-detection measure, not a performance knob.
func (d *LoginDriver) pause() {
	d.sleepMs(d.config.MinDelayMs, d.config.MaxDelayMs)
}

func (d *LoginDriver) sleepMs(min, max int) {
	if max <= min {
		time.Sleep(time.Duration(min) * time.Millisecond)
		return
	}
	ms := min + d.rand.Intn(max-min)
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func (d *LoginDriver) navTimeout() time.Duration {
	return time.Duration(d.config.PageLoadTimeout) * time.Second
}

func (d *LoginDriver) selectorTimeout() time.Duration {
	return time.Duration(d.config.SelectorTimeout) * time.Second
}
