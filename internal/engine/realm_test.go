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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRealm_Check(t *testing.T) {
	r, err := NewRealm("webhost", "admin", "pw")
	require.NoError(t, err)

	assert.True(t, r.Check("admin", "pw"))
	assert.False(t, r.Check("admin", "PW"))
	assert.False(t, r.Check("root", "pw"))
}

func TestRealm_AcceptsExistingHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	require.NoError(t, err)

	r, err := NewRealm("webhost", "admin", string(hash))
	require.NoError(t, err)
	assert.True(t, r.Check("admin", "pw"))
}

func TestRealm_EmptyPassword(t *testing.T) {
	_, err := NewRealm("webhost", "admin", "")
	assert.Error(t, err)
}
