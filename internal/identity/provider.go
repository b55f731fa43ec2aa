// Package identity defines the external identity providers the gateway
// accepts assertions from.
package identity

// Provider identifies an external identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
)

// Issuers are fixed per provider; a token whose iss claim differs is
// rejected regardless of signature validity.
const (
	googleIssuer = "https://accounts.google.com"
	appleIssuer  = "https://appleid.apple.com"

	googleKeySetURL = "https://www.googleapis.com/oauth2/v3/certs"
	appleKeySetURL  = "https://appleid.apple.com/auth/keys"
)

// Valid reports whether p is a supported provider.
func (p Provider) Valid() bool {
	return p == ProviderGoogle || p == ProviderApple
}

func (p Provider) String() string { return string(p) }

// Issuer returns the hard-coded iss claim value for the provider.
func (p Provider) Issuer() string {
	switch p {
	case ProviderGoogle:
		return googleIssuer
	case ProviderApple:
		return appleIssuer
	default:
		return ""
	}
}

// KeySetURL returns the provider's published verification key endpoint.
func (p Provider) KeySetURL() string {
	switch p {
	case ProviderGoogle:
		return googleKeySetURL
	case ProviderApple:
		return appleKeySetURL
	default:
		return ""
	}
}
