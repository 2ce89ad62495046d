package initiator

import (
	"context"
	"encoding/json"
	"net/url"
	"reflect"
	"sync"
	"time"

	"github.com/jrsteele09/go-login-broker/oauthmodel"
	"github.com/jrsteele09/go-login-broker/popup"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultPollInterval = time.Second
	DefaultReplayWindow = 30 * time.Second
	DefaultStorageTTL   = 10 * time.Minute

	pendingKey = "pending_login"
)

// Listener receives the result of a login attempt. Exactly one method is called per
// attempt that opened a popup, except when the attempt is cancelled or restarted.
// Calls are made while the attempt is being completed, so a Listener must not call
// BeginLogin or Cancel synchronously.
type Listener interface {
	OnAuthenticated(popup.Success)
	OnError(code popup.ErrorCode, message string)
	// OnDismissed is called when the user closes the popup. It is not an error.
	OnDismissed()
}

type Config struct {
	AuthURL        string        // Absolute URL of the /auth/google endpoint
	ExpectedOrigin string        // Origin of the completion page
	Timeout        time.Duration // How long to wait for a completion message
	PollInterval   time.Duration // How often to check whether the popup was closed
	ReplayWindow   time.Duration // Maximum age of a completion message
	StorageTTL     time.Duration // Lifetime of the stored login parameters
}

// DefaultConfig returns a Config with the default timings.
func DefaultConfig(authURL, expectedOrigin string) Config {
	return Config{
		AuthURL:        authURL,
		ExpectedOrigin: expectedOrigin,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		ReplayWindow:   DefaultReplayWindow,
		StorageTTL:     DefaultStorageTTL,
	}
}

func (c Config) validate() error {
	u, err := url.Parse(c.AuthURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("invalid auth URL %q", c.AuthURL)
	}
	if c.ExpectedOrigin == "" || c.ExpectedOrigin == "*" {
		return errors.New("an exact expected origin is required")
	}
	if c.Timeout <= 0 || c.PollInterval <= 0 || c.ReplayWindow <= 0 || c.StorageTTL <= 0 {
		return errors.Errorf("invalid timings %+v", c)
	}
	return nil
}

// attempt is one in-flight login.
type attempt struct {
	params oauthmodel.LoginParameters
	popup  Popup
	cancel context.CancelFunc
}

// Initiator starts popup logins and turns completion messages into Listener calls.
// At most one login is in flight; starting another cancels the first.
type Initiator struct {
	begin    sync.Mutex // serializes BeginLogin
	complete sync.Mutex // held while an attempt completes and while BeginLogin stores a new one
	mu       sync.Mutex
	config   Config
	window   Window
	store    Store
	listener Listener
	pending  *attempt
	nowTime  func() time.Time
	logger   zerolog.Logger
}

type Option func(*Initiator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(i *Initiator) {
		i.nowTime = nowFunc
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(i *Initiator) {
		i.logger = logger
	}
}

func New(config Config, window Window, store Store, listener Listener, opts ...Option) (*Initiator, error) {
	if err := config.validate(); err != nil {
		return nil, errors.Wrap(err, "[initiator.New]")
	}
	if window == nil || store == nil || listener == nil {
		return nil, errors.New("[initiator.New] window, store and listener are required")
	}
	i := &Initiator{
		config:   config,
		window:   window,
		store:    store,
		listener: listener,
		nowTime:  time.Now,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// BeginLogin generates fresh security parameters, stores them and opens the login popup.
// A login already in flight is cancelled first. If the popup is blocked the listener is
// told so and ErrPopupBlocked is returned; no attempt is left pending.
func (i *Initiator) BeginLogin(ctx context.Context) error {
	i.begin.Lock()
	defer i.begin.Unlock()
	i.Cancel()

	// An attempt that finished on its own may still be removing its parameters.
	i.complete.Lock()
	defer i.complete.Unlock()

	params, err := i.newParameters()
	if err != nil {
		return errors.Wrap(err, "[BeginLogin] generate parameters")
	}
	stored, err := json.Marshal(params)
	if err != nil {
		return errors.Wrap(err, "[BeginLogin] encode parameters")
	}
	i.store.Set(pendingKey, stored, i.config.StorageTTL)

	loginURL := i.config.AuthURL + "?" + params.Query().Encode()
	handle, err := i.window.Open(loginURL, PopupFeatures)
	if err != nil || handle == nil {
		i.store.Delete(pendingKey)
		i.logger.Warn().Err(err).Msg("login popup blocked")
		i.listener.OnError(popup.CodePopupBlocked, popup.UserMessage(popup.CodePopupBlocked))
		return ErrPopupBlocked
	}
	if !reflect.TypeOf(handle).Comparable() {
		handle.Close()
		i.store.Delete(pendingKey)
		return errors.Wrapf(ErrPopupNotComparable, "[BeginLogin] %T", handle)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a := &attempt{params: params, popup: handle, cancel: cancel}

	i.mu.Lock()
	i.pending = a
	i.mu.Unlock()

	i.logger.Debug().Str("session_id", params.SessionID).Msg("login popup opened")
	go i.watch(watchCtx, a)
	return nil
}

func (i *Initiator) newParameters() (oauthmodel.LoginParameters, error) {
	state, err := oauthmodel.GenerateState(i.nowTime())
	if err != nil {
		return oauthmodel.LoginParameters{}, err
	}
	verifier := oauthmodel.GenerateCodeVerifier()
	return oauthmodel.LoginParameters{
		State:               state,
		CodeChallenge:       oauthmodel.CodeChallengeS256(verifier),
		CodeChallengeMethod: oauthmodel.CodeMethodTypeS256,
		SessionID:           oauthmodel.GenerateCorrelationID(),
		CodeVerifier:        verifier,
	}, nil
}

// watch enforces the timeout and notices a popup closed by the user.
func (i *Initiator) watch(ctx context.Context, a *attempt) {
	timeout := time.NewTimer(i.config.Timeout)
	defer timeout.Stop()
	poll := time.NewTicker(i.config.PollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			// Cancelled, restarted or completed; a cancelled parent context abandons quietly.
			i.finish(a, nil)
			return
		case <-timeout.C:
			i.finish(a, func() {
				a.popup.Close()
				i.listener.OnError(popup.CodeTimeout, popup.UserMessage(popup.CodeTimeout))
			})
			return
		case <-poll.C:
			if a.popup.Closed() {
				i.finish(a, i.listener.OnDismissed)
				return
			}
		}
	}
}

// finish completes a if it is still the pending attempt and then runs notify.
// It reports whether a was completed by this call. Completion is serialized with
// BeginLogin, so new parameters are never stored while an older attempt is still
// removing its own.
func (i *Initiator) finish(a *attempt, notify func()) bool {
	i.complete.Lock()
	defer i.complete.Unlock()

	i.mu.Lock()
	if i.pending != a {
		i.mu.Unlock()
		return false
	}
	i.pending = nil
	i.mu.Unlock()

	a.cancel()
	i.store.Delete(pendingKey)
	if notify != nil {
		notify()
	}
	return true
}

// OnMessage handles a message event received by the opener window. Events from another
// origin or window, malformed payloads and stale timestamps are dropped. It reports
// whether the event completed the pending login.
func (i *Initiator) OnMessage(ev Event) bool {
	i.mu.Lock()
	a := i.pending
	i.mu.Unlock()
	if a == nil {
		return false
	}

	if ev.Origin != i.config.ExpectedOrigin {
		i.logger.Debug().Str("origin", ev.Origin).Msg("dropped message from unexpected origin")
		return false
	}
	// Source has the same dynamic type as a.popup only if it is comparable.
	if ev.Source == nil || reflect.TypeOf(ev.Source) != reflect.TypeOf(a.popup) || ev.Source != a.popup {
		i.logger.Debug().Msg("dropped message from unexpected window")
		return false
	}
	outcome, sentAt, err := popup.Decode(ev.Data)
	if err != nil {
		i.logger.Debug().Err(err).Msg("dropped malformed message")
		return false
	}
	if age := i.nowTime().Sub(sentAt); age > i.config.ReplayWindow || age < -i.config.ReplayWindow {
		i.logger.Debug().Dur("age", age).Msg("dropped stale message")
		return false
	}

	return i.finish(a, func() {
		if !a.popup.Closed() {
			a.popup.Close()
		}
		switch o := outcome.(type) {
		case popup.Success:
			i.listener.OnAuthenticated(o)
		case popup.Failure:
			i.listener.OnError(o.Code, popup.UserMessage(o.Code))
		}
	})
}

// Cancel abandons the login in flight, if any, without notifying the listener.
func (i *Initiator) Cancel() {
	i.mu.Lock()
	a := i.pending
	i.mu.Unlock()
	if a == nil {
		return
	}
	if i.finish(a, nil) && !a.popup.Closed() {
		a.popup.Close()
	}
}

// Pending returns the parameters of the login in flight. Parameters whose state was
// issued longer ago than the storage TTL are ignored even if the store still holds them.
func (i *Initiator) Pending() (oauthmodel.LoginParameters, bool) {
	raw, ok := i.store.Get(pendingKey)
	if !ok {
		return oauthmodel.LoginParameters{}, false
	}
	var params oauthmodel.LoginParameters
	if err := json.Unmarshal(raw, &params); err != nil {
		return oauthmodel.LoginParameters{}, false
	}
	issuedAt, err := oauthmodel.StateIssuedAt(params.State)
	if err != nil || i.nowTime().Sub(issuedAt) > i.config.StorageTTL {
		i.logger.Debug().Err(err).Msg("ignoring stale login parameters")
		return oauthmodel.LoginParameters{}, false
	}
	return params, true
}
