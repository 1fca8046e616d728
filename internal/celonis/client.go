// SPDX-License-Identifier: MIT

// Package celonis implements the platform API client: CSRF-token login,
// one-time-password verification and type-schema creation.
package celonis

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ocel-tools/ocelbridge/internal/log"
	"github.com/ocel-tools/ocelbridge/internal/metrics"
)

// LoginOutcome classifies the result of a credential submission.
type LoginOutcome string

const (
	// LoginAuthenticated means the credentials were accepted outright.
	LoginAuthenticated LoginOutcome = "authenticated"
	// LoginChallenge means the platform requires a one-time password.
	LoginChallenge LoginOutcome = "challenge"
	// LoginRejected means the platform refused the credentials.
	LoginRejected LoginOutcome = "rejected"
)

const mfaLoginPath = "/user/ui/login/mfa"

// LogFunc receives client log lines for forwarding to the session. Level is
// "info" or "warning".
type LogFunc func(level, message string)

// Config holds everything needed to talk to one team workspace.
type Config struct {
	// LoginBaseURL is the identity service, e.g. "https://id.celonis.cloud".
	LoginBaseURL string
	// TeamBaseURL is the workspace, e.g. "https://academic-x.eu-2.celonis.cloud".
	TeamBaseURL string
	Username    string
	Password    string
	// Environment selects the data-pool environment for type creation.
	// Defaults to "develop".
	Environment string
	Timeout     time.Duration
	// Log optionally forwards client log lines (to the session as
	// log_message events).
	Log LogFunc
}

// Client drives the login/MFA handshake and type creation against the
// platform. It is owned by exactly one session and is not safe for
// concurrent use.
type Client struct {
	redir     *http.Client // follows redirects
	noRedir   *http.Client // surfaces 3xx to the caller
	loginBase string
	teamBase  string
	username  string
	password  string
	env       string
	logf      LogFunc
	logger    zerolog.Logger

	csrfToken   string
	xsrfHeader  string // X-Xsrf-Token value for workspace API calls
	mfaLocation string // redirect target of a pending challenge
}

var csrfInputRe = regexp.MustCompile(`name="_csrf" value="([^"]+)"`)

// New creates a client for one session. Credentials and handshake tokens
// live only inside the returned handle.
func New(cfg Config) (*Client, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("username and password must be provided")
	}
	if cfg.TeamBaseURL == "" {
		return nil, fmt.Errorf("team base URL must be provided")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	env := cfg.Environment
	if env == "" {
		env = "develop"
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &Client{
		redir: &http.Client{Jar: jar, Timeout: timeout},
		noRedir: &http.Client{
			Jar:     jar,
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		loginBase: strings.TrimRight(cfg.LoginBaseURL, "/"),
		teamBase:  strings.TrimRight(cfg.TeamBaseURL, "/"),
		username:  cfg.Username,
		password:  cfg.Password,
		env:       env,
		logf:      cfg.Log,
		logger:    log.WithComponent("celonis"),
	}, nil
}

func (c *Client) logInfo(msg string) {
	c.logger.Info().Msg(msg)
	if c.logf != nil {
		c.logf("info", msg)
	}
}

func (c *Client) logWarning(msg string) {
	c.logger.Warn().Msg(msg)
	if c.logf != nil {
		c.logf("warning", msg)
	}
}

// fetchCSRFToken primes the identity session and extracts the CSRF token,
// from the cookie when set, otherwise from the login form markup.
func (c *Client) fetchCSRFToken(ctx context.Context) error {
	if _, err := c.get(ctx, c.redir, c.loginBase); err != nil {
		return fmt.Errorf("prime identity session: %w", err)
	}

	res, err := c.get(ctx, c.redir, c.loginBase+"/user/")
	if err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}

	if tok := c.cookieValue(c.loginBase, "XSRF-TOKEN"); tok != "" {
		c.csrfToken = tok
		return nil
	}
	if m := csrfInputRe.FindStringSubmatch(res.body); m != nil {
		c.csrfToken = m[1]
		return nil
	}
	return fmt.Errorf("no CSRF token in cookies or login form")
}

// Login submits the credentials. The three outcomes mirror the platform
// contract: 200 authenticates immediately, 303 to the MFA page raises a
// challenge, anything else is a rejection with the status as reason.
func (c *Client) Login(ctx context.Context) (LoginOutcome, string, error) {
	start := time.Now()
	outcome, reason, err := c.login(ctx)
	metrics.PlatformRequest("login", start, err)
	return outcome, reason, err
}

func (c *Client) login(ctx context.Context) (LoginOutcome, string, error) {
	if err := c.fetchCSRFToken(ctx); err != nil {
		return "", "", err
	}

	form := url.Values{
		"_csrf":    {c.csrfToken},
		"username": {c.username},
		"password": {c.password},
	}
	res, err := c.postForm(ctx, c.noRedir, c.loginBase+"/user/api/login", form, map[string]string{
		"Origin":  c.loginBase,
		"Referer": c.loginBase + "/user/ui/login",
	})
	if err != nil {
		return "", "", fmt.Errorf("submit credentials: %w", err)
	}

	switch {
	case res.status == http.StatusSeeOther && strings.Contains(res.header.Get("Location"), mfaLoginPath):
		c.mfaLocation = res.header.Get("Location")
		return LoginChallenge, "", nil
	case res.status == http.StatusOK:
		if err := c.primeCloudToken(ctx); err != nil {
			return "", "", err
		}
		return LoginAuthenticated, "", nil
	default:
		return LoginRejected, fmt.Sprintf("login failed with status %d", res.status), nil
	}
}

// SubmitMFA verifies a one-time password for a pending challenge. It returns
// false when the platform refuses the code; the challenge stays pending so
// the client may retry.
func (c *Client) SubmitMFA(ctx context.Context, code string) (bool, error) {
	start := time.Now()
	ok, err := c.submitMFA(ctx, code)
	metrics.PlatformRequest("mfa", start, err)
	return ok, err
}

func (c *Client) submitMFA(ctx context.Context, code string) (bool, error) {
	if c.mfaLocation == "" {
		return false, fmt.Errorf("no pending challenge")
	}
	c.logInfo("Processing MFA authentication.")

	if tok := c.cookieValue(c.loginBase, "XSRF-TOKEN"); tok != "" {
		c.csrfToken = tok
	}

	mfaURL := c.loginBase + c.mfaLocation
	if _, err := c.get(ctx, c.redir, mfaURL); err != nil {
		return false, fmt.Errorf("fetch MFA page: %w", err)
	}

	form := url.Values{
		"_csrf":             {c.csrfToken},
		"one-time-password": {code},
	}
	res, err := c.postForm(ctx, c.redir, c.loginBase+"/user/api/login/mfa", form, map[string]string{
		"Origin":  c.loginBase,
		"Referer": mfaURL,
	})
	if err != nil {
		return false, fmt.Errorf("submit MFA code: %w", err)
	}

	if res.status != http.StatusOK {
		return false, nil
	}

	c.mfaLocation = ""
	if err := c.primeCloudToken(ctx); err != nil {
		return false, err
	}
	c.logInfo("MFA authentication successful.")
	return true, nil
}

// primeCloudToken visits the workspace so its cookies land in the jar, then
// captures the workspace XSRF token for subsequent API calls.
func (c *Client) primeCloudToken(ctx context.Context) error {
	if _, err := c.get(ctx, c.redir, c.teamBase); err != nil {
		return fmt.Errorf("prime workspace session: %w", err)
	}
	if tok := c.cookieValue(c.teamBase, "XSRF-TOKEN"); tok != "" {
		c.xsrfHeader = tok
	} else {
		c.xsrfHeader = c.csrfToken
	}
	return nil
}

// Close discards the handshake state. The underlying transports hold no
// per-session resources beyond the cookie jar, which is dropped with the
// client itself.
func (c *Client) Close() {
	c.csrfToken = ""
	c.xsrfHeader = ""
	c.mfaLocation = ""
}

type response struct {
	status int
	header http.Header
	body   string
}

func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return c.do(hc, req)
}

func (c *Client) postForm(ctx context.Context, hc *http.Client, rawURL string, form url.Values, headers map[string]string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.do(hc, req)
}

func (c *Client) do(hc *http.Client, req *http.Request) (*response, error) {
	res, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := readBody(res)
	if err != nil {
		return nil, err
	}
	return &response{status: res.StatusCode, header: res.Header, body: body}, nil
}

func (c *Client) cookieValue(base, name string) string {
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	for _, ck := range c.redir.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
