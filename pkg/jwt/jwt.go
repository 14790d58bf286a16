package jwt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/achocks0/payment-gateway/pkg/crypto"
)

const (
	signingAlgorithm = "HS256"
	tokenType        = "JWT"
	segmentCount     = 3
)

// Service generates and validates compact signed tokens under a single
// process-wide signing key. It is safe for concurrent use.
type Service struct {
	signingKey    []byte
	encodedHeader string
}

// New creates a token service with the given signing key.
func New(signingKey []byte) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}
	rawHeader, err := json.Marshal(header{Algorithm: signingAlgorithm, Type: tokenType})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return &Service{
		signingKey:    signingKey,
		encodedHeader: crypto.EncodeSegment(rawHeader),
	}, nil
}

// NewFromString creates a token service from a string signing key.
func NewFromString(signingKey string) (*Service, error) {
	return New([]byte(signingKey))
}

// Generate serializes claims to canonical JSON and returns the signed
// three-segment token. Claims may be any JSON-serializable value; Claims
// covers the registered set.
func (s *Service) Generate(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}

	signingInput := s.encodedHeader + "." + crypto.EncodeSegment(payload)
	signature := crypto.HMACSign([]byte(signingInput), s.signingKey)
	return signingInput + "." + crypto.EncodeSegment(signature), nil
}

// VerifySignature checks token structure, header algorithm, and signature
// without decoding the payload.
func (s *Service) VerifySignature(token string) error {
	_, err := s.verify(token)
	return err
}

// Parse verifies the token and unmarshals its payload into claims, then
// validates the temporal claims. The payload is never decoded before the
// signature has been checked.
func (s *Service) Parse(token string, claims any) error {
	if claims == nil {
		return ErrMissingClaims
	}
	parts, err := s.verify(token)
	if err != nil {
		return err
	}

	payload, err := crypto.DecodeSegment(parts[1])
	if err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	if err := json.Unmarshal(payload, claims); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}

	// Temporal validation reads the registered claims regardless of the
	// destination type, so custom claim structs stay validated.
	var registered Claims
	if err := json.Unmarshal(payload, &registered); err != nil {
		return errors.Join(ErrInvalidToken, err)
	}
	now := time.Now().Unix()
	if registered.ExpiresAt != 0 && registered.ExpiresAt <= now {
		return ErrExpiredToken
	}
	if registered.NotBefore != 0 && registered.NotBefore > now {
		return ErrTokenNotYetValid
	}
	return nil
}

func (s *Service) verify(token string) ([]string, error) {
	if token == "" || token != strings.TrimSpace(token) {
		return nil, ErrInvalidToken
	}

	parts := strings.Split(token, ".")
	if len(parts) != segmentCount {
		return nil, ErrInvalidToken
	}

	rawHeader, err := crypto.DecodeSegment(parts[0])
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	var hdr header
	if err := json.Unmarshal(rawHeader, &hdr); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if hdr.Algorithm != signingAlgorithm {
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedSigningMethod, hdr.Algorithm)
	}
	if hdr.Type != tokenType {
		return nil, ErrInvalidToken
	}

	signature, err := crypto.DecodeSegment(parts[2])
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	expected := crypto.HMACSign([]byte(parts[0]+"."+parts[1]), s.signingKey)
	if !crypto.ConstantTimeEquals(signature, expected) {
		return nil, ErrInvalidSignature
	}
	return parts, nil
}
