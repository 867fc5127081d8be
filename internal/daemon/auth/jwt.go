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

// Package auth guards the control API when it is reachable from the network.
package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer is the iss claim on control tokens.
	Issuer = "webhost"

	// Audience is the aud claim control tokens must carry.
	Audience = "webhostd-control"

	// MinSecretBytes is the shortest accepted HS256 secret.
	MinSecretBytes = 32

	// DefaultTokenTTL is how long a minted control token stays valid.
	DefaultTokenTTL = 5 * time.Minute
)

// JWTConfig contains the shared-secret token settings.
type JWTConfig struct {
	// Secret is the HS256 signing key shared by webhostd and the CLI.
	Secret []byte

	// ClockSkew allows for clock drift when checking exp and nbf.
	ClockSkew time.Duration
}

// Claims are the claims carried by a control token.
type Claims struct {
	jwt.RegisteredClaims
}

// ValidateJWT checks the signature, issuer, audience and lifetime of a token.
func ValidateJWT(tokenString string, cfg JWTConfig) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("no signing secret configured")
	}

	parser := jwt.NewParser(
		jwt.WithLeeway(cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}
	if !slices.Contains(claims.Audience, Audience) {
		return nil, fmt.Errorf("invalid audience: expected %s", Audience)
	}
	return claims, nil
}

// GenerateJWT mints a control token for subject valid for ttl.
func GenerateJWT(subject string, ttl time.Duration, cfg JWTConfig) (string, error) {
	if len(cfg.Secret) == 0 {
		return "", fmt.Errorf("no signing key configured")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
