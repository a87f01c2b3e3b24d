/*
   Copyright The containerd Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package cleanup provides utilities to help cleanup.
package cleanup

import (
	"context"
	"fmt"
	"time"
)

// cleanupTimeout is the maximum time allowed for cleanup operations.
// Detaching a loop device or removing a mapper target normally takes
// milliseconds; the bound only matters when udev holds a device busy.
const cleanupTimeout = 10 * time.Second

// Do runs the provided function with a context that:
// 1. Is not cancelled when the parent context is cancelled
// 2. Has a timeout of cleanupTimeout (10 seconds)
//
// This lets undo steps run after the operation itself was interrupted.
func Do(ctx context.Context, do func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	do(ctx)
	cancel()
}

type step struct {
	desc string
	fn   func(context.Context) error
}

// Stack collects undo steps while a multi-step operation progresses.
// The zero value is ready to use.
type Stack struct {
	steps []step
}

// Push records an undo step. desc is used in error messages.
func (s *Stack) Push(desc string, fn func(context.Context) error) {
	s.steps = append(s.steps, step{desc: desc, fn: fn})
}

// Len returns the number of recorded steps.
func (s *Stack) Len() int {
	return len(s.steps)
}

// Unwind runs the recorded steps in reverse order inside Do. Every step
// runs even if an earlier one failed; all failures are returned. The
// stack is empty afterwards.
func (s *Stack) Unwind(ctx context.Context) []error {
	var errs []error
	Do(ctx, func(ctx context.Context) {
		for i := len(s.steps) - 1; i >= 0; i-- {
			st := s.steps[i]
			if err := st.fn(ctx); err != nil {
				errs = append(errs, fmt.Errorf("undo %s: %w", st.desc, err))
			}
		}
	})
	s.steps = nil
	return errs
}
