/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package templates stores named device templates and selects the ones whose
// declared pattern accepts a candidate device description.
package templates

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carverauto/devicematch/pkg/devicedesc"
	"github.com/carverauto/devicematch/pkg/logger"
)

var (
	errTemplateNameRequired = errors.New("template name is required")
	errPatternRequired      = errors.New("template pattern is required")
	errTemplateNotFound     = errors.New("template not found")
)

// Template represents a registered device template: a name plus the pattern
// description declaring which devices the template applies to. The pattern's
// fields are regular-expression constraints; absent fields are wildcards.
type Template struct {
	Name         string                  `json:"name"`
	Pattern      *devicedesc.Description `json:"pattern"`
	Source       string                  `json:"source,omitempty"`
	RegisteredAt time.Time               `json:"registered_at"`
}

// Clone creates a defensive copy of the Template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}

	clone := *t
	clone.Pattern = t.Pattern.Clone()

	return &clone
}

// Registry stores and manages device templates. Backends register their
// templates on startup, making them available for match queries without the
// matcher embedding any template data.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
	logger    logger.Logger
}

// New creates a new template registry.
func New(log logger.Logger) *Registry {
	return &Registry{
		templates: make(map[string]*Template),
		logger:    log,
	}
}

// Register adds or replaces a template. The pattern is copied, so the caller
// may reuse its value. An empty RegisteredAt is stamped with the current time.
func (r *Registry) Register(tmpl *Template) error {
	if err := validate(tmpl); err != nil {
		return err
	}

	stored := tmpl.Clone()
	stored.Name = strings.TrimSpace(stored.Name)

	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = time.Now()
	}

	r.mu.Lock()
	r.templates[stored.Name] = stored
	r.mu.Unlock()

	r.logger.Info().
		Str("template", stored.Name).
		Str("source", stored.Source).
		Str("pattern", stored.Pattern.String()).
		Msg("registered device template")

	return nil
}

// Get retrieves a template by name.
func (r *Registry) Get(name string) (*Template, error) {
	if name == "" {
		return nil, errTemplateNameRequired
	}

	r.mu.RLock()
	tmpl, found := r.templates[name]
	r.mu.RUnlock()

	if !found {
		return nil, fmt.Errorf("%w: %s", errTemplateNotFound, name)
	}

	return tmpl.Clone(), nil
}

// Has checks if a template with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, found := r.templates[name]
	return found
}

// List returns the registered templates whose names carry the given prefix,
// sorted by name. An empty prefix returns everything.
func (r *Registry) List(prefix string) []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	templates := make([]*Template, 0, len(r.templates))
	for name, tmpl := range r.templates {
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}

		templates = append(templates, tmpl.Clone())
	}

	sort.Slice(templates, func(i, j int) bool {
		return templates[i].Name < templates[j].Name
	})

	return templates
}

// MatchCandidate evaluates every registered pattern against the candidate and
// returns the names of the templates that accept it, sorted. A template whose
// pattern fails to compile is skipped and logged; the registry deliberately
// treats a broken template as "matches nothing" so one bad entry cannot block
// lookups for the rest. Ranking among multiple matches is the caller's
// concern.
func (r *Registry) MatchCandidate(ctx context.Context, candidate *devicedesc.Description) []string {
	start := time.Now()

	r.mu.RLock()
	snapshot := make([]*Template, 0, len(r.templates))
	for _, tmpl := range r.templates {
		snapshot = append(snapshot, tmpl)
	}
	r.mu.RUnlock()

	matches := make([]string, 0, len(snapshot))

	for _, tmpl := range snapshot {
		ok, err := tmpl.Pattern.Matches(candidate)
		if err != nil {
			RecordEvaluation(ctx, outcomePatternError)
			r.logger.Warn().
				Err(err).
				Str("template", tmpl.Name).
				Msg("skipping template with invalid pattern")

			continue
		}

		if ok {
			RecordEvaluation(ctx, outcomeMatch)
			matches = append(matches, tmpl.Name)
		} else {
			RecordEvaluation(ctx, outcomeNoMatch)
		}
	}

	sort.Strings(matches)

	ObserveMatchLatency(ctx, time.Since(start).Seconds())

	return matches
}

func validate(tmpl *Template) error {
	if tmpl == nil || strings.TrimSpace(tmpl.Name) == "" {
		return errTemplateNameRequired
	}

	if tmpl.Pattern == nil {
		return errPatternRequired
	}

	return nil
}
