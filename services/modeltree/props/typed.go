// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package props

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/AleutianAI/modeltree/services/modeltree/textfmt"
)

func hostGetter[H any, V any](get func(H) V) func(any) (any, error) {
	return func(host any) (any, error) {
		h, ok := host.(H)
		if !ok {
			return nil, ErrWrongHost
		}
		return get(h), nil
	}
}

func hostSetter[H any, V any](name string, set func(H, V) error) func(any, any) error {
	return func(host any, v any) error {
		h, ok := host.(H)
		if !ok {
			return ErrWrongHost
		}
		val, ok := v.(V)
		if !ok {
			return fmt.Errorf("%s: %w: %T", name, ErrWrongType, v)
		}
		return set(h, val)
	}
}

func noErr[H any, V any](set func(H, V)) func(H, V) error {
	return func(h H, v V) error {
		set(h, v)
		return nil
	}
}

// Float declares a float64 property.
func Float[H any](name, help string, def float64, get func(H) float64, set func(H, float64)) *Info {
	return &Info{
		Name: name,
		Help: help,
		get:  hostGetter(get),
		set:  hostSetter(name, noErr(set)),
		scan: func(tok *textfmt.Tokenizer) (any, error) {
			return tok.ScanFloat()
		},
		format:    func(v any) string { return textfmt.FormatFloat(v.(float64)) },
		isDefault: func(v any) bool { return v.(float64) == def },
	}
}

// InheritableFloat declares a float64 property that follows its nearest
// explicit ancestor while in Inherited mode.
func InheritableFloat[H any](name, help string, def float64, get func(H) float64, set func(H, float64)) *Info {
	info := Float(name, help, def, get, set)
	info.Inheritable = true
	return info
}

// Int declares an int property.
func Int[H any](name, help string, def int, get func(H) int, set func(H, int)) *Info {
	return &Info{
		Name: name,
		Help: help,
		get:  hostGetter(get),
		set:  hostSetter(name, noErr(set)),
		scan: func(tok *textfmt.Tokenizer) (any, error) {
			return tok.ScanInt()
		},
		format:    func(v any) string { return strconv.Itoa(v.(int)) },
		isDefault: func(v any) bool { return v.(int) == def },
	}
}

// Bool declares a bool property.
func Bool[H any](name, help string, def bool, get func(H) bool, set func(H, bool)) *Info {
	return &Info{
		Name: name,
		Help: help,
		get:  hostGetter(get),
		set:  hostSetter(name, noErr(set)),
		scan: func(tok *textfmt.Tokenizer) (any, error) {
			return tok.ScanBool()
		},
		format:    func(v any) string { return strconv.FormatBool(v.(bool)) },
		isDefault: func(v any) bool { return v.(bool) == def },
	}
}

// String declares a string property written as a quoted literal.
func String[H any](name, help, def string, get func(H) string, set func(H, string) error) *Info {
	return &Info{
		Name: name,
		Help: help,
		get:  hostGetter(get),
		set:  hostSetter(name, set),
		scan: func(tok *textfmt.Tokenizer) (any, error) {
			return tok.ScanWordOrQuoted()
		},
		format:    func(v any) string { return textfmt.Quote(v.(string)) },
		isDefault: func(v any) bool { return v.(string) == def },
	}
}

// Vector declares a fixed-size []float64 property written as [ x y z ].
// The default is the zero vector.
func Vector[H any](name, help string, size int, get func(H) []float64, set func(H, []float64)) *Info {
	return &Info{
		Name: name,
		Help: help,
		get:  hostGetter(get),
		set:  hostSetter(name, noErr(set)),
		scan: func(tok *textfmt.Tokenizer) (any, error) {
			vals, err := tok.ScanFloatList()
			if err != nil {
				return nil, err
			}
			if len(vals) != size {
				return nil, tok.Errorf("expected %d values, got %d", size, len(vals))
			}
			return vals, nil
		},
		format: func(v any) string { return textfmt.FormatFloats(v.([]float64)) },
		isDefault: func(v any) bool {
			return !slices.ContainsFunc(v.([]float64), func(x float64) bool { return x != 0 })
		},
	}
}

// Enum declares a property over a small integer enumeration written by
// name.
func Enum[H any, E ~int](name, help string, def E, names []string, get func(H) E, set func(H, E)) *Info {
	return &Info{
		Name: name,
		Help: help,
		get:  hostGetter(get),
		set:  hostSetter(name, noErr(set)),
		scan: func(tok *textfmt.Tokenizer) (any, error) {
			w, err := tok.ScanWord()
			if err != nil {
				return nil, err
			}
			idx := slices.Index(names, w)
			if idx < 0 {
				return nil, tok.Errorf("unknown %s value '%s'", name, w)
			}
			return E(idx), nil
		},
		format: func(v any) string {
			e := v.(E)
			if int(e) < 0 || int(e) >= len(names) {
				return strconv.Itoa(int(e))
			}
			return names[int(e)]
		},
		isDefault: func(v any) bool { return v.(E) == def },
	}
}
