package token

import "time"

// AccessToken is a bearer token issued by the Baidu OAuth2 endpoint.
// It is replaced wholesale on refresh and never mutated in place.
type AccessToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Usable reports whether the token may still be presented at now, keeping
// margin in reserve before the vendor-side expiry.
func (t *AccessToken) Usable(now time.Time, margin time.Duration) bool {
	if t == nil || t.Value == "" {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-margin))
}
