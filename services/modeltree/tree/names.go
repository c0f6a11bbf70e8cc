// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"fmt"
	"unicode"
)

// ValidateName checks a component name. The empty string is valid and
// means "no name".
//
// A name starts with a letter or '_' and continues with letters, digits,
// '_' or '-'. "null" is reserved because it denotes a nil reference.
func ValidateName(name string) error {
	if name == "" {
		return nil
	}
	if name == "null" {
		return fmt.Errorf("%w: 'null' is reserved", ErrInvalidName)
	}
	for i, ch := range name {
		switch {
		case unicode.IsLetter(ch) || ch == '_':
		case i > 0 && (unicode.IsDigit(ch) || ch == '-'):
		default:
			return fmt.Errorf("%w: '%s' has illegal character %q", ErrInvalidName, name, ch)
		}
	}
	return nil
}

// MakeValidName turns s into a valid name by replacing illegal
// characters with '_'.
func MakeValidName(s string) string {
	if s == "" || s == "null" {
		return "_" + s
	}
	out := []rune(s)
	for i, ch := range out {
		switch {
		case unicode.IsLetter(ch) || ch == '_':
		case i > 0 && (unicode.IsDigit(ch) || ch == '-'):
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
