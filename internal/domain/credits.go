package domain

// CreditBalance is the per-user try-on quota as last read from the server.
// The client never computes a new balance locally; after a job reaches a
// terminal state the balance is re-read from the authoritative store.
type CreditBalance struct {
	Granted int
	Used    int
	Known   bool
}

// BalanceUnknown is returned for anonymous sessions. Browsing the try-on
// feature is allowed while logged out, so this is not an error.
var BalanceUnknown = CreditBalance{}

// Remaining returns the credits left, never negative.
func (b CreditBalance) Remaining() int {
	if !b.Known {
		return 0
	}
	if r := b.Granted - b.Used; r > 0 {
		return r
	}
	return 0
}

// CanGenerate reports whether a generation attempt is permitted.
func (b CreditBalance) CanGenerate() bool {
	return b.Known && b.Remaining() > 0
}
