// Copyright 2026 Google LLC. All Rights Reserved.
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

package service

import (
	"fmt"
	"io"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20"
)

const (
	seedContext = "keyrunner rng seed v1"
	// EntropySize is the number of bytes drawn from the hardware RNG.
	EntropySize = 32
)

// Generator is a deterministic random bit generator seeded once at boot.
type Generator struct {
	mu sync.Mutex
	c  *chacha20.Cipher
}

// NewGenerator draws EntropySize bytes from entropy and mixes them with the
// device-unique key to seed a ChaCha20 keystream.
func NewGenerator(entropy io.Reader, deviceKey []byte) (*Generator, error) {
	material := make([]byte, EntropySize, EntropySize+len(deviceKey))
	if _, err := io.ReadFull(entropy, material); err != nil {
		return nil, fmt.Errorf("failed to read entropy: %w", err)
	}
	material = append(material, deviceKey...)
	var seed [chacha20.KeySize]byte
	blake3.DeriveKey(seedContext, material, seed[:])
	clear(material)

	c, err := chacha20.NewUnauthenticatedCipher(seed[:], make([]byte, chacha20.NonceSize))
	clear(seed[:])
	if err != nil {
		return nil, err
	}
	return &Generator{c: c}, nil
}

// Read fills p with random bytes. It never fails.
func (g *Generator) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(p)
	g.c.XORKeyStream(p, p)
	return len(p), nil
}
