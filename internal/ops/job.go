// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package ops

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reads an operator sequence from a job file. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON
func LoadJob(fileName string) (*OpSequence, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	return ParseJob(data, ext == ".yaml" || ext == ".yml")
}

// Parses an operator sequence from JSON or YAML. YAML is converted to JSON first,
// so both share the polymorphic operator decoding
func ParseJob(data []byte, isYAML bool) (*OpSequence, error) {
	if isYAML {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		var err error
		if data, err = json.Marshal(doc); err != nil {
			return nil, err
		}
	}

	var probe OpBase
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if probe.Type != "" && probe.Type != "seq" {
		return nil, errors.New(fmt.Sprintf("job must be an operator sequence, not '%s'", probe.Type))
	}
	seq := NewOpSequence()
	if err := json.Unmarshal(data, seq); err != nil {
		return nil, err
	}
	return seq, nil
}
