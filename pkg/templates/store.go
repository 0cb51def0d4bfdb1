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

package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store persists templates in a NATS JetStream key-value bucket keyed by
// template name, so a matcher restart recovers the registered set.
type Store struct {
	nc *nats.Conn
	kv jetstream.KeyValue
}

// NewStore connects to NATS and binds the template bucket, creating it when
// absent.
func NewStore(ctx context.Context, natsURL, bucket string) (*Store, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	kv, err := js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket})
	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}

	return &Store{nc: nc, kv: kv}, nil
}

// Save writes the template under its name.
func (s *Store) Save(ctx context.Context, tmpl *Template) error {
	if err := validate(tmpl); err != nil {
		return err
	}

	data, err := encodeTemplate(tmpl)
	if err != nil {
		return err
	}

	if _, err := s.kv.Put(ctx, tmpl.Name, data); err != nil {
		return fmt.Errorf("failed to put template %s: %w", tmpl.Name, err)
	}

	return nil
}

// Load reads a template by name. A missing key reports found=false without
// an error.
func (s *Store) Load(ctx context.Context, name string) (tmpl *Template, found bool, err error) {
	entry, err := s.kv.Get(ctx, name)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to get template %s: %w", name, err)
	}

	tmpl, err = decodeTemplate(entry.Value())
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode template %s: %w", name, err)
	}

	return tmpl, true, nil
}

// Delete removes a template. Deleting an absent template is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.kv.Delete(ctx, name)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete template %s: %w", name, err)
	}

	return nil
}

// Names lists the stored template names.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list template keys: %w", err)
	}

	var names []string
	for key := range lister.Keys() {
		names = append(names, key)
	}

	return names, nil
}

// Hydrate loads every stored template into the registry and returns how many
// were registered.
func (s *Store) Hydrate(ctx context.Context, registry *Registry) (int, error) {
	names, err := s.Names(ctx)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, name := range names {
		tmpl, found, err := s.Load(ctx, name)
		if err != nil {
			return count, err
		}

		if !found {
			continue
		}

		if err := registry.Register(tmpl); err != nil {
			return count, fmt.Errorf("failed to register stored template %s: %w", name, err)
		}

		count++
	}

	return count, nil
}

// Close releases the NATS connection.
func (s *Store) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

func encodeTemplate(tmpl *Template) ([]byte, error) {
	data, err := json.Marshal(tmpl)
	if err != nil {
		return nil, fmt.Errorf("failed to encode template %s: %w", tmpl.Name, err)
	}

	return data, nil
}

func decodeTemplate(data []byte) (*Template, error) {
	var tmpl Template
	if err := json.Unmarshal(data, &tmpl); err != nil {
		return nil, err
	}

	return &tmpl, nil
}
