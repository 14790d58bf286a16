// Package jwt implements the compact signed token format exchanged between
// the gateway and the downstream payment service: three unpadded Base64URL
// segments (header, payload, signature) joined by dots, signed with
// HMAC-SHA256 over the two encoded leading segments.
//
// The header is fixed to {"alg":"HS256","typ":"JWT"}. Tokens presenting any
// other algorithm are rejected before the payload is decoded, and signature
// verification uses constant-time comparison.
//
// # Usage
//
// Create a service with the process-wide signing key, then generate and
// parse tokens:
//
//	service, err := jwt.New(signingKey)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	token, err := service.Generate(jwt.Claims{
//		Subject:     "vendor-a",
//		Issuer:      "payment-eapi",
//		Audience:    "payment-sapi",
//		IssuedAt:    time.Now().Unix(),
//		ExpiresAt:   time.Now().Add(time.Hour).Unix(),
//		ID:          uuid.NewString(),
//		Permissions: []string{"payments:write"},
//	})
//
// Parsing and validating tokens:
//
//	var claims jwt.Claims
//	err := service.Parse(token, &claims)
//	if err != nil {
//		switch {
//		case errors.Is(err, jwt.ErrExpiredToken):
//			// re-authenticate
//		case errors.Is(err, jwt.ErrInvalidSignature):
//			// reject
//		}
//	}
//
// Parse verifies structure and signature before the payload is trusted.
// Decoding tolerates Base64URL padding but emission never includes it;
// tokens with surrounding whitespace or a segment count other than three
// are rejected outright. A token whose expiry equals the current second is
// already expired.
package jwt
