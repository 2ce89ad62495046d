package auth

import (
	"fmt"

	apperrors "github.com/jrsteele09/go-login-broker/internal/errors"
	"github.com/jrsteele09/go-login-broker/popup"
)

// Stage is a step of the per-transaction state machine.
type Stage string

const (
	StageInitiated        Stage = "INITIATED"
	StageCallbackReceived Stage = "CALLBACK_RECEIVED"
	StageValidated        Stage = "VALIDATED"
	StageTokenExchanged   Stage = "TOKEN_EXCHANGED"
	StageUserFetched      Stage = "USER_FETCHED"
	StageAllowlistChecked Stage = "ALLOWLIST_CHECKED"
	StageSessionCreated   Stage = "SESSION_CREATED"
	StageRejected         Stage = "REJECTED"
)

// Rejection ends a callback in the REJECTED state. Stage is the last stage reached
// before the failure and Code is what the completion page reports.
type Rejection struct {
	Stage Stage
	Code  popup.ErrorCode
	Err   error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("login rejected after %s (%s): %v", r.Stage, r.Code, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Failure is the outcome shown to the user; it never includes the underlying error text.
func (r *Rejection) Failure() popup.Failure {
	return popup.NewFailure(r.Code)
}

// AsRejection returns err as a *Rejection, treating anything unexpected as a generic failure.
func AsRejection(err error) *Rejection {
	var r *Rejection
	if apperrors.As(err, &r) {
		return r
	}
	return &Rejection{Stage: StageRejected, Code: popup.CodeAuthFailed, Err: err}
}
