// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func TestGenerateAndValidate(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret}

	token, err := GenerateJWT("ops", time.Hour, cfg)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Contains(t, []string(claims.Audience), Audience)
}

func TestGenerateJWT_DefaultTTL(t *testing.T) {
	token, err := GenerateJWT("ops", 0, JWTConfig{Secret: testSecret})
	require.NoError(t, err)

	claims, err := ValidateJWT(token, JWTConfig{Secret: testSecret})
	require.NoError(t, err)
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	assert.Equal(t, DefaultTokenTTL, ttl)
}

func TestGenerateJWT_NoSecret(t *testing.T) {
	_, err := GenerateJWT("ops", time.Minute, JWTConfig{})
	assert.Error(t, err)
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, Claims{RegisteredClaims: claims}).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidateJWT_Rejects(t *testing.T) {
	cfg := JWTConfig{Secret: testSecret}
	valid := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	noExpiry := valid
	noExpiry.ExpiresAt = nil

	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"

	wrongAudience := valid
	wrongAudience.Audience = jwt.ClaimStrings{"other-service"}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "wrong secret", token: sign(t, jwt.SigningMethodHS256, []byte("a-completely-different-secret!!!"), valid)},
		{name: "expired", token: sign(t, jwt.SigningMethodHS256, testSecret, expired)},
		{name: "no expiry", token: sign(t, jwt.SigningMethodHS256, testSecret, noExpiry)},
		{name: "wrong issuer", token: sign(t, jwt.SigningMethodHS256, testSecret, wrongIssuer)},
		{name: "wrong audience", token: sign(t, jwt.SigningMethodHS256, testSecret, wrongAudience)},
		{name: "hs512", token: sign(t, jwt.SigningMethodHS512, testSecret, valid)},
		{name: "alg none", token: sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, cfg)
			assert.Error(t, err)
		})
	}
}

func TestValidateJWT_ClockSkew(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-10 * time.Second)),
	}
	token := sign(t, jwt.SigningMethodHS256, testSecret, claims)

	_, err := ValidateJWT(token, JWTConfig{Secret: testSecret})
	assert.Error(t, err)

	_, err = ValidateJWT(token, JWTConfig{Secret: testSecret, ClockSkew: time.Minute})
	assert.NoError(t, err)
}
