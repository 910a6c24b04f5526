/*
Copyright (c) Facebook, Inc. and its affiliates.

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

package ntpq

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedAuthAlgorithm is returned when credential uses a key type we can't authenticate with
var ErrUnsupportedAuthAlgorithm = errors.New("unsupported authentication algorithm")

// Algorithm is a symmetric key type used to authenticate privileged ntpq queries
type Algorithm string

// Supported algorithms
const (
	AlgorithmMD5 Algorithm = "md5"
)

// algorithmPromptLabels is the closed set of supported algorithms.
// Value is how ntpq names the algorithm in its password prompt.
var algorithmPromptLabels = map[Algorithm]string{
	AlgorithmMD5: "MD5",
}

// ParseAlgorithm converts case-insensitive algorithm name into Algorithm
func ParseAlgorithm(name string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := algorithmPromptLabels[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAuthAlgorithm, name)
	}
	return a, nil
}

// PromptLabel returns algorithm name as it appears in ntpq password prompt
func (a Algorithm) PromptLabel() string {
	return algorithmPromptLabels[a]
}

// Credential is the key used for privileged ntpq queries.
// It can't be changed after creation, create a new one instead.
type Credential struct {
	algorithm Algorithm
	keyID     uint32
	secret    string
}

// NewCredential validates algorithm and returns a Credential
func NewCredential(algorithm string, keyID uint32, secret string) (*Credential, error) {
	a, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return &Credential{
		algorithm: a,
		keyID:     keyID,
		secret:    secret,
	}, nil
}

// Algorithm returns key type
func (c *Credential) Algorithm() Algorithm {
	return c.algorithm
}

// KeyID returns key id
func (c *Credential) KeyID() uint32 {
	return c.keyID
}

// Secret returns the password
func (c *Credential) Secret() string {
	return c.secret
}

// PasswordPrompt returns the prompt ntpq prints when asking for the secret, like "MD5 Password:"
func (c *Credential) PasswordPrompt() string {
	return c.algorithm.PromptLabel() + " Password:"
}

func (c *Credential) String() string {
	return fmt.Sprintf("Credential(algorithm=%s, keyid=%d)", c.algorithm, c.keyID)
}
