// Package crypto provides the credential and signing primitives used by the
// payment gateway: salted SHA-256 credential hashing, HMAC-SHA256 message
// signing, constant-time comparison, secure random string generation, and
// unpadded Base64URL segment encoding.
//
// # Credential Hashing
//
// Client secrets are never stored in plaintext. HashCredential generates a
// 16-byte random salt, digests salt-then-secret with SHA-256, and returns
// the standard Base64 encoding of salt followed by digest:
//
//	stored, err := crypto.HashCredential("s3cret-16chars!!")
//	if err != nil {
//		return err
//	}
//	// persist stored alongside the client record
//
// VerifyCredential recomputes the digest from the stored salt and compares
// in constant time. It returns false on any malformed input and never
// panics:
//
//	if !crypto.VerifyCredential(presented, stored) {
//		return ErrInvalidCredentials
//	}
//
// # Message Signing
//
// HMACSign computes an HMAC-SHA256 tag over arbitrary bytes. It backs both
// the token codec's signature segment and webhook payload signatures:
//
//	sig := crypto.HMACSign([]byte(payload), key)
//
// # Random Strings
//
// SecureRandomString produces cryptographically random strings from a
// 64-character URL-safe alphabet, suitable for generated client secrets:
//
//	secret, err := crypto.SecureRandomString(32)
//
// All failures are reported as errors carrying no plaintext material.
package crypto
