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

package actions

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/tombee/quill/pkg/workflow"
)

// Throttle wraps handler so calls wait on limiter first. A context that ends
// while waiting fails the call.
func Throttle(name string, limiter *rate.Limiter, handler workflow.ActionHandler) workflow.ActionHandler {
	return func(ctx context.Context, params, env map[string]any) (map[string]any, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, &OperationError{Action: name, Message: "rate limit wait failed", Cause: err}
		}
		return handler(ctx, params, env)
	}
}
