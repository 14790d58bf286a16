package jwt

// Claims is the registered claim set carried by gateway tokens. Unix
// timestamps are in seconds; unknown payload fields are ignored on decode.
type Claims struct {
	Subject     string   `json:"sub,omitempty"`
	Issuer      string   `json:"iss,omitempty"`
	Audience    string   `json:"aud,omitempty"`
	ExpiresAt   int64    `json:"exp,omitempty"`
	IssuedAt    int64    `json:"iat,omitempty"`
	NotBefore   int64    `json:"nbf,omitempty"`
	ID          string   `json:"jti,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// HasPermission reports whether the claim set carries the given permission.
func (c Claims) HasPermission(p string) bool {
	for _, have := range c.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

type header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}
