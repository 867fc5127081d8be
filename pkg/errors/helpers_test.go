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

package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	webhosterrors "github.com/tombee/webhost/pkg/errors"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, webhosterrors.Wrap(nil, "context"))

	base := errors.New("boom")
	err := webhosterrors.Wrap(base, "extracting shop")
	assert.Equal(t, "extracting shop: boom", err.Error())
	assert.True(t, webhosterrors.Is(err, base))
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, webhosterrors.Wrapf(nil, "app %s", "shop"))

	base := errors.New("boom")
	err := webhosterrors.Wrapf(base, "app %s", "shop")
	assert.Equal(t, "app shop: boom", err.Error())
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		notFound  bool
		deploy    bool
		remove    bool
		errorType string
	}{
		{
			name:      "not found",
			err:       webhosterrors.Wrap(&webhosterrors.NotFoundError{Resource: "app", ID: "a"}, "info"),
			notFound:  true,
			errorType: "not_found",
		},
		{
			name:      "deploy",
			err:       &webhosterrors.DeployError{App: "a", Reason: "x"},
			deploy:    true,
			errorType: "deploy",
		},
		{
			name:      "remove",
			err:       &webhosterrors.RemoveError{App: "a", Path: "/p"},
			remove:    true,
			errorType: "remove",
		},
		{
			name:      "plain",
			err:       errors.New("plain"),
			errorType: "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notFound, webhosterrors.IsNotFound(tt.err))
			assert.Equal(t, tt.deploy, webhosterrors.IsDeploy(tt.err))
			assert.Equal(t, tt.remove, webhosterrors.IsRemove(tt.err))
			assert.Equal(t, tt.errorType, webhosterrors.TypeOf(tt.err))
		})
	}
}

func TestJoin_KeepsEveryError(t *testing.T) {
	a := &webhosterrors.DeployError{App: "a", Reason: "x"}
	b := &webhosterrors.DeployError{App: "b", Reason: "y"}
	joined := webhosterrors.Join(a, b)

	assert.True(t, webhosterrors.Is(joined, a))
	assert.True(t, webhosterrors.Is(joined, b))
}

func TestUserVisibleError(t *testing.T) {
	var uve webhosterrors.UserVisibleError = &webhosterrors.NotFoundError{Resource: "app", ID: "shop"}
	assert.True(t, uve.IsUserVisible())
	assert.Equal(t, `No app named "shop"`, uve.UserMessage())
	assert.Contains(t, uve.Suggestion(), "webhost apps list")
}
