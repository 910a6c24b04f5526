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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DefaultKeysFile is where ntpd keeps symmetric keys
const DefaultKeysFile = "/etc/ntp.keys"

// keys file uses single letter 'M' for MD5 keys
var keyTypeAliases = map[string]string{
	"m": string(AlgorithmMD5),
}

// ReadKeysFile finds keyID in ntpd keys file and returns it as Credential
func ReadKeysFile(path string, keyID uint32) (*Credential, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadKeys(f, keyID)
}

// ReadKeys parses "keyid type secret # comment" lines and returns the Credential for keyID
func ReadKeys(r io.Reader, keyID uint32) (*Credential, error) {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("keys file line %d: expected 'keyid type key', got %q", lineNo, scanner.Text())
		}
		id, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("keys file line %d: bad key id %q: %w", lineNo, fields[0], err)
		}
		if uint32(id) != keyID {
			continue
		}
		keyType := strings.ToLower(fields[1])
		if alias, ok := keyTypeAliases[keyType]; ok {
			keyType = alias
		}
		log.Debugf("found key %d of type %s on line %d", keyID, keyType, lineNo)
		return NewCredential(keyType, keyID, fields[2])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("key %d not found", keyID)
}
