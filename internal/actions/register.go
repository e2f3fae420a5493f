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
	"time"

	"golang.org/x/time/rate"

	"github.com/tombee/quill/pkg/workflow"
)

// Builtin action names.
const (
	NoteCreate  = "note.create"
	NoteUpdate  = "note.update"
	TransformJQ = "transform.jq"
	TextTitle   = "text.title"
	TextUpper   = "text.upper"
	TextLower   = "text.lower"
	IDNew       = "id.new"
	Set         = "set"
)

// Config tunes the builtin actions.
type Config struct {
	// RateLimit is the number of action calls per second shared by all
	// builtins. Zero disables throttling.
	RateLimit float64

	// Burst is the limiter's bucket size. Defaults to 1.
	Burst int

	// JQTimeout bounds a transform.jq evaluation.
	JQTimeout time.Duration
}

// Register adds the builtin actions to reg. The note actions are only
// registered when notes is non-nil.
func Register(reg *workflow.ActionRegistry, notes NoteStore, cfg Config) error {
	handlers := map[string]workflow.ActionHandler{
		TransformJQ: NewJQ(cfg.JQTimeout, 0).transform,
		TextTitle:   caseAction(TextTitle, titleCaser),
		TextUpper:   caseAction(TextUpper, upperCaser),
		TextLower:   caseAction(TextLower, lowerCaser),
		IDNew:       newID,
		Set:         set,
	}
	if notes != nil {
		n := NewNotes(notes)
		handlers[NoteCreate] = n.Create
		handlers[NoteUpdate] = n.Update
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	for name, h := range handlers {
		if limiter != nil {
			h = Throttle(name, limiter, h)
		}
		if err := reg.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}
