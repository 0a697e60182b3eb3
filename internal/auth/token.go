// ABOUTME: Bearer token encoding and decoding for locally minted sessions
// ABOUTME: Placeholder three-segment format by default, HS256 JWT when a secret is configured

package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrMalformedToken = errors.New("malformed token")
)

// Signing modes accepted by NewCodec.
const (
	SigningPlaceholder = "placeholder"
	SigningHS256       = "hs256"
)

// TokenCodec encodes claims into bearer tokens and back.
// Decode never reports expiry; use IsExpired on the result.
type TokenCodec interface {
	Encode(c Claims) (string, error)
	Decode(token string) (Claims, error)
}

// NewCodec returns the codec for the given signing mode.
func NewCodec(mode string, secret []byte) (TokenCodec, error) {
	switch mode {
	case "", SigningPlaceholder:
		return NewPlaceholderCodec(), nil
	case SigningHS256:
		if len(secret) == 0 {
			return nil, fmt.Errorf("hs256 signing requires a secret")
		}
		return NewHS256Codec(secret), nil
	default:
		return nil, fmt.Errorf("unknown token signing mode %q", mode)
	}
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

var placeholderHeader = tokenHeader{Alg: "none", Typ: "session"}

// PlaceholderCodec produces tokens with a non-cryptographic signature segment.
// The signature is "placeholder_<subject>_<issuedAtMillis>" and is never verified;
// these tokens are only ever validated locally.
type PlaceholderCodec struct {
	now func() time.Time
}

// NewPlaceholderCodec creates a placeholder codec using the wall clock.
func NewPlaceholderCodec() *PlaceholderCodec {
	return &PlaceholderCodec{now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now.
func (pc *PlaceholderCodec) WithClock(now func() time.Time) *PlaceholderCodec {
	return &PlaceholderCodec{now: now}
}

// Encode never fails; the error is always nil. The encoded claims always
// carry PlaceholderSignature=true and a non-nil delegated permission list,
// so Decode(Encode(c)) equals c once c is normalised the same way.
func (pc *PlaceholderCodec) Encode(c Claims) (string, error) {
	c.PlaceholderSignature = true

	// Marshalling fixed string/int structs cannot fail.
	header, _ := json.Marshal(placeholderHeader)
	payload, _ := json.Marshal(c.toWire())

	sig := "placeholder_" + c.Subject + "_" + strconv.FormatInt(pc.now().UnixMilli(), 10)

	return strings.Join([]string{
		base64.StdEncoding.EncodeToString(header),
		base64.StdEncoding.EncodeToString(payload),
		base64.StdEncoding.EncodeToString([]byte(sig)),
	}, "."), nil
}

// Decode splits and parses a placeholder token.
func (pc *PlaceholderCodec) Decode(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	headerBytes, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	var header tokenHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return Claims{}, fmt.Errorf("%w: header: %v", ErrMalformedToken, err)
	}
	if header != placeholderHeader {
		return Claims{}, fmt.Errorf("%w: unexpected header alg=%q typ=%q", ErrMalformedToken, header.Alg, header.Typ)
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}
	claims, err := parseClaims(payload)
	if err != nil {
		return Claims{}, err
	}

	if _, err := decodeSegment(parts[2]); err != nil {
		return Claims{}, fmt.Errorf("%w: signature: %v", ErrMalformedToken, err)
	}

	return claims, nil
}

// decodeSegment accepts standard padded base64 and the unpadded URL alphabet.
func decodeSegment(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty segment")
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// HS256Codec signs claims as an HMAC-SHA256 JWT.
type HS256Codec struct {
	secret []byte
}

// NewHS256Codec creates a signing codec with the given secret.
func NewHS256Codec(secret []byte) *HS256Codec {
	return &HS256Codec{secret: secret}
}

// Encode signs the claims. PlaceholderSignature is always encoded as false
// and a nil delegated permission list as empty.
func (hc *HS256Codec) Encode(c Claims) (string, error) {
	c.PlaceholderSignature = false

	data, err := json.Marshal(c.toWire())
	if err != nil {
		return "", fmt.Errorf("marshaling claims: %w", err)
	}
	var mc jwt.MapClaims
	if err := json.Unmarshal(data, &mc); err != nil {
		return "", fmt.Errorf("converting claims: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	signed, err := token.SignedString(hc.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and returns the claims. Registered claim
// validation is disabled so expired tokens still decode.
func (hc *HS256Codec) Decode(token string) (Claims, error) {
	parsed, err := jwt.Parse(token, func(_ *jwt.Token) (any, error) {
		return hc.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrMalformedToken
	}

	data, err := json.Marshal(mc)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return parseClaims(data)
}

// parseClaims decodes and validates a claims payload. Every failure wraps
// ErrMalformedToken.
func parseClaims(data []byte) (Claims, error) {
	var claims Claims
	if err := json.Unmarshal(data, &claims); err != nil {
		if errors.Is(err, ErrMalformedToken) {
			return Claims{}, err
		}
		return Claims{}, fmt.Errorf("%w: claims: %v", ErrMalformedToken, err)
	}
	return claims, nil
}
