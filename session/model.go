// Package session persists the durable records that make a token pair
// valid. A session row is the sole source of truth for revocation:
// deleting the row revokes both of its tokens instantly, even though
// their signatures keep verifying until expiry.
package session

// Session is one login's durable record. The raw tokens are never stored;
// the row carries SHA-256 hashes and is indexed by them, so possession of
// a token is required to find its row and a store dump never leaks a
// usable credential.
type Session struct {
	ID        string
	AccountID string
	Role      string

	AccessHash  [32]byte
	RefreshHash [32]byte

	CreatedAt int64
	ExpiresAt int64
}
