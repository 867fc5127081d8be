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

package engine

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// DefaultRealmUser is the user name the settings realm accepts.
const DefaultRealmUser = "admin"

// Realm is an HTTP basic-auth realm with a single bcrypt-hashed credential.
type Realm struct {
	name string
	user string
	hash []byte
}

// NewRealm builds a realm for user. password may be plaintext or an
// existing bcrypt hash.
func NewRealm(name, user, password string) (*Realm, error) {
	if password == "" {
		return nil, fmt.Errorf("realm %s: empty password", name)
	}
	hash := []byte(password)
	if _, err := bcrypt.Cost(hash); err != nil {
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("realm %s: hash password: %w", name, err)
		}
	}
	return &Realm{name: name, user: user, hash: hash}, nil
}

// Check reports whether user and password match the realm's credential.
func (r *Realm) Check(user, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(r.user)) == 1
	passOK := bcrypt.CompareHashAndPassword(r.hash, []byte(password)) == nil
	return userOK && passOK
}

// Wrap requires valid credentials before calling next.
func (r *Realm) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user, pass, ok := req.BasicAuth()
		if !ok || !r.Check(user, pass) {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", r.name))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}
