package initiator

import "errors"

// PopupFeatures sizes the login dialog.
const PopupFeatures = "width=500,height=600,menubar=no,toolbar=no,location=yes,status=no"

var (
	ErrPopupBlocked       = errors.New("popup blocked")
	ErrPopupNotComparable = errors.New("popup handle is not comparable")
)

// Window is the browsing context that opens the login popup and receives its messages.
type Window interface {
	// Open opens url in a new window. A blocked popup returns a nil Popup or an error.
	Open(url, features string) (Popup, error)
}

// Popup is a handle to an opened login window. Message sources are matched by
// identity, so implementations must be comparable (usually a pointer type).
type Popup interface {
	Closed() bool
	Close()
}

// Event is a cross-window message received by the opener.
type Event struct {
	Origin string
	Source Popup
	Data   []byte
}
