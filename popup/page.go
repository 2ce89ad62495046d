package popup

import (
	"bytes"
	"crypto/rand"
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
)

//go:embed templates/*
var templateFS embed.FS

const (
	completionTemplate = "completion.html"

	defaultDeliveryAttempts = 6
	defaultInitialDelay     = 100 * time.Millisecond
	defaultMaxDelay         = time.Second
	defaultCloseFallback    = 3 * time.Second
)

// Page renders the self-closing completion document served in the login popup.
type Page struct {
	tmpl          *template.Template
	targetOrigin  string
	retryDelays   []int64
	closeFallback time.Duration
}

type PageOption func(*pageSettings)

type pageSettings struct {
	attempts      int
	initialDelay  time.Duration
	maxDelay      time.Duration
	closeFallback time.Duration
}

// WithDeliveryAttempts bounds how many times the page tries to post its message.
func WithDeliveryAttempts(attempts int, initialDelay, maxDelay time.Duration) PageOption {
	return func(s *pageSettings) {
		s.attempts = attempts
		s.initialDelay = initialDelay
		s.maxDelay = maxDelay
	}
}

// WithCloseFallback sets how long the page waits for window.close before navigating away.
func WithCloseFallback(d time.Duration) PageOption {
	return func(s *pageSettings) {
		s.closeFallback = d
	}
}

// NewPage creates a renderer whose messages are only delivered to targetOrigin.
func NewPage(targetOrigin string, opts ...PageOption) (*Page, error) {
	if targetOrigin == "" || targetOrigin == "*" {
		return nil, errors.New("[popup.NewPage] an explicit target origin is required")
	}
	s := pageSettings{
		attempts:      defaultDeliveryAttempts,
		initialDelay:  defaultInitialDelay,
		maxDelay:      defaultMaxDelay,
		closeFallback: defaultCloseFallback,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.attempts < 1 {
		return nil, errors.New("[popup.NewPage] at least one delivery attempt is required")
	}

	tmpl, err := template.ParseFS(templateFS, "templates/"+completionTemplate)
	if err != nil {
		return nil, errors.Wrap(err, "[popup.NewPage] parse template")
	}
	return &Page{
		tmpl:          tmpl,
		targetOrigin:  targetOrigin,
		retryDelays:   RetrySchedule(s.attempts, s.initialDelay, s.maxDelay),
		closeFallback: s.closeFallback,
	}, nil
}

// RetrySchedule returns the waits, in milliseconds, between delivery attempts:
// attempts-1 exponentially growing delays capped at maxDelay, without jitter.
func RetrySchedule(attempts int, initialDelay, maxDelay time.Duration) []int64 {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	delays := make([]int64, 0, attempts)
	for i := 1; i < attempts; i++ {
		delays = append(delays, b.NextBackOff().Milliseconds())
	}
	return delays
}

type pageData struct {
	Nonce           string
	Title           string
	Heading         string
	Detail          string
	TargetOrigin    string
	Payload         Message
	RetryDelays     []int64
	CloseFallbackMs int64
}

// Render writes the completion page for an outcome. The page is always served with 200
// so the popup runs its script regardless of which step failed.
func (p *Page) Render(w http.ResponseWriter, o Outcome) error {
	nonce, err := newNonce()
	if err != nil {
		return errors.Wrap(err, "[popup.Page.Render] nonce")
	}

	data := pageData{
		Nonce:           nonce,
		TargetOrigin:    p.targetOrigin,
		Payload:         Encode(o, time.Time{}),
		RetryDelays:     p.retryDelays,
		CloseFallbackMs: p.closeFallback.Milliseconds(),
	}
	switch v := o.(type) {
	case Success:
		data.Title = "Signed in"
		data.Heading = "You're signed in"
		data.Detail = "This window will close automatically."
	case Failure:
		data.Title = "Sign-in failed"
		data.Heading = "Sign-in failed"
		data.Detail = v.Message
	}

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, completionTemplate, data); err != nil {
		return errors.Wrap(err, "[popup.Page.Render] execute")
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	h.Set("Referrer-Policy", "no-referrer")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Content-Security-Policy",
		"default-src 'none'; script-src 'nonce-"+nonce+"'; style-src 'nonce-"+nonce+"'; "+
			"base-uri 'none'; form-action 'none'; frame-ancestors "+p.targetOrigin)
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(buf.Bytes())
	return err
}

func newNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
