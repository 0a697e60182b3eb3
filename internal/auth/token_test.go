// ABOUTME: Unit tests for session token encoding and decoding
// ABOUTME: Tests placeholder and HS256 round trips, malformed tokens, and the expiry boundary

package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

var mintedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleDelegated() *DelegatedPrincipal {
	return &DelegatedPrincipal{
		ID:              "dp-1",
		DisplayName:     "Ravi",
		Email:           "ravi@asha.example",
		RoleName:        "Operations",
		Permissions:     []string{PermDashboard, PermOrder},
		ParentAccountID: "acct-1",
	}
}

func TestPlaceholderCodec_RoundTrip(t *testing.T) {
	codec := NewPlaceholderCodec().WithClock(func() time.Time { return mintedAt })
	claims := NewDelegatedClaims(sampleDelegated(), "shipdesk", "dashboard", mintedAt)

	token, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	claims.PlaceholderSignature = true
	if !reflect.DeepEqual(got, claims) {
		t.Errorf("Decode() = %+v, want %+v", got, claims)
	}
	if got.ExpiresAt-got.IssuedAt != 86400 {
		t.Errorf("lifetime = %d, want 86400", got.ExpiresAt-got.IssuedAt)
	}
}

func TestPlaceholderCodec_WireFormat(t *testing.T) {
	codec := NewPlaceholderCodec().WithClock(func() time.Time { return mintedAt })
	token, _ := codec.Encode(NewDelegatedClaims(sampleDelegated(), "", "", mintedAt))

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("got %d segments, want 3", len(parts))
	}

	header, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("header not base64: %v", err)
	}
	if string(header) != `{"alg":"none","typ":"session"}` {
		t.Errorf("header = %s", header)
	}

	payload, _ := base64.StdEncoding.DecodeString(parts[1])
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	for _, key := range []string{"sub", "iat", "exp", "principalKind", "permissions", "parentAccountId", "roleName", "isPlaceholderSignature"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing %q", key)
		}
	}

	sig, _ := base64.StdEncoding.DecodeString(parts[2])
	want := "placeholder_dp-1_" + "1772355600000"
	if string(sig) != want {
		t.Errorf("signature = %q, want %q", sig, want)
	}
}

func TestPlaceholderCodec_EmptyPermissionsStayNonNil(t *testing.T) {
	p := sampleDelegated()
	p.Permissions = nil
	codec := NewPlaceholderCodec()

	token, _ := codec.Encode(NewDelegatedClaims(p, "", "", mintedAt))
	got, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Delegation == nil || got.Delegation.Permissions == nil {
		t.Fatal("delegated permissions decoded as nil")
	}
	if len(got.Delegation.Permissions) != 0 {
		t.Errorf("permissions = %v, want empty", got.Delegation.Permissions)
	}
}

func TestPlaceholderCodec_Malformed(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }
	validHeader := b64(`{"alg":"none","typ":"session"}`)
	validClaims := b64(`{"sub":"dp-1","iat":1,"exp":86401,"principalKind":"delegated","parentAccountId":"acct-1","permissions":[]}`)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"four segments", "a.b.c.d"},
		{"header not base64", "!!!." + validClaims + "." + b64("sig")},
		{"wrong alg", b64(`{"alg":"HS256","typ":"JWT"}`) + "." + validClaims + "." + b64("sig")},
		{"claims not json", validHeader + "." + b64("nope") + "." + b64("sig")},
		{"missing subject", validHeader + "." + b64(`{"iat":1,"exp":2,"principalKind":"delegated","parentAccountId":"a"}`) + "." + b64("sig")},
		{"unknown kind", validHeader + "." + b64(`{"sub":"x","iat":1,"exp":2,"principalKind":"root"}`) + "." + b64("sig")},
		{"delegated without parent", validHeader + "." + b64(`{"sub":"x","iat":1,"exp":2,"principalKind":"delegated"}`) + "." + b64("sig")},
		{"empty signature", validHeader + "." + validClaims + "."},
		{"delegated lifetime not 24h", validHeader + "." + b64(`{"sub":"dp-1","iat":1,"exp":2,"principalKind":"delegated","parentAccountId":"acct-1"}`) + "." + b64("sig")},
	}

	codec := NewPlaceholderCodec()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.token)
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Decode() error = %v, want ErrMalformedToken", err)
			}
		})
	}
}

func TestPlaceholderCodec_AcceptsURLEncoding(t *testing.T) {
	raw := base64.RawURLEncoding
	token := raw.EncodeToString([]byte(`{"alg":"none","typ":"session"}`)) + "." +
		raw.EncodeToString([]byte(`{"sub":"dp-1","iat":1,"exp":86401,"principalKind":"delegated","parentAccountId":"acct-1"}`)) + "." +
		raw.EncodeToString([]byte("placeholder_dp-1_1000"))

	got, err := NewPlaceholderCodec().Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Subject != "dp-1" {
		t.Errorf("Subject = %q", got.Subject)
	}
}

func TestHS256Codec_RoundTrip(t *testing.T) {
	codec := NewHS256Codec([]byte("test-secret-key-for-jwt-signing"))
	claims := NewDelegatedClaims(sampleDelegated(), "shipdesk", "dashboard", mintedAt)

	token, err := codec.Encode(claims)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !reflect.DeepEqual(got, claims) {
		t.Errorf("Decode() = %+v, want %+v", got, claims)
	}
}

func TestHS256Codec_ExpiredStillDecodes(t *testing.T) {
	codec := NewHS256Codec([]byte("secret"))
	claims := NewDelegatedClaims(sampleDelegated(), "", "", mintedAt.Add(-48*time.Hour))

	token, _ := codec.Encode(claims)
	got, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !IsExpired(got, mintedAt) {
		t.Error("IsExpired() = false for a token minted 48h ago")
	}
}

func TestHS256Codec_WrongSecret(t *testing.T) {
	token, _ := NewHS256Codec([]byte("secret-a")).Encode(NewDelegatedClaims(sampleDelegated(), "", "", mintedAt))

	_, err := NewHS256Codec([]byte("secret-b")).Decode(token)
	if !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Decode() error = %v, want ErrMalformedToken", err)
	}
}

func TestHS256Codec_RejectsPlaceholderTokens(t *testing.T) {
	token, _ := NewPlaceholderCodec().Encode(NewDelegatedClaims(sampleDelegated(), "", "", mintedAt))

	_, err := NewHS256Codec([]byte("secret")).Decode(token)
	if !errors.Is(err, ErrMalformedToken) {
		t.Errorf("Decode() error = %v, want ErrMalformedToken", err)
	}
}

func TestIsExpired_Boundary(t *testing.T) {
	claims := NewDelegatedClaims(sampleDelegated(), "", "", mintedAt)

	tests := []struct {
		offset time.Duration
		want   bool
	}{
		{0, false},
		{86399 * time.Second, false},
		{86399*time.Second + 999*time.Millisecond, false},
		{86400 * time.Second, true},
		{90000 * time.Second, true},
	}
	for _, tt := range tests {
		if got := IsExpired(claims, mintedAt.Add(tt.offset)); got != tt.want {
			t.Errorf("IsExpired(T+%v) = %v, want %v", tt.offset, got, tt.want)
		}
	}
}

func TestNewCodec(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		secret  []byte
		wantErr bool
	}{
		{"default", "", nil, false},
		{"placeholder", SigningPlaceholder, nil, false},
		{"hs256", SigningHS256, []byte("s"), false},
		{"hs256 without secret", SigningHS256, nil, true},
		{"unknown", "rs256", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCodec(tt.mode, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewCodec() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
