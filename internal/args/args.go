// Package args splits a command line into positional tokens and typed flags.
package args

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"guildwarden/internal/cmderr"
)

var flagPattern = regexp.MustCompile(`(?i)--([a-z]+)=("[^"]*"|[0-9a-z]*)`)

type FlagType int

const (
	String FlagType = iota
	Number
	Boolean
)

type FlagSpec struct {
	Name string
	Type FlagType
}

// Options declares the flags a command understands. With Closed set, any
// other flag is rejected instead of ignored.
type Options struct {
	Flags  []FlagSpec
	Closed bool
}

func (o Options) spec(name string) (FlagSpec, bool) {
	for _, spec := range o.Flags {
		if strings.EqualFold(spec.Name, name) {
			return spec, true
		}
	}
	return FlagSpec{}, false
}

func (o Options) names() []string {
	names := make([]string, 0, len(o.Flags))
	for _, spec := range o.Flags {
		names = append(names, spec.Name)
	}
	sort.Strings(names)
	return names
}

type Flags map[string]any

func (f Flags) Has(name string) bool {
	_, ok := f[strings.ToLower(name)]
	return ok
}

func (f Flags) Int(name string) (int64, bool) {
	value, ok := f[strings.ToLower(name)].(int64)
	return value, ok
}

func (f Flags) Bool(name string) bool {
	value, _ := f[strings.ToLower(name)].(bool)
	return value
}

func (f Flags) String(name string) (string, bool) {
	value, ok := f[strings.ToLower(name)].(string)
	return value, ok
}

// Invocation is an immutable parsed command line.
type Invocation struct {
	Raw    string
	Tokens []string
	Flags  Flags

	// text is Raw with flags blanked out; starts holds each token's offset in it.
	text   string
	starts []int
}

// Rest is the text from token n to the end, for commands whose trailing text
// is a single free-form argument. Line breaks and spacing inside it are kept.
func (i Invocation) Rest(n int) string {
	if n < 0 || n >= len(i.starts) {
		return ""
	}
	return strings.TrimRightFunc(i.text[i.starts[n]:], unicode.IsSpace)
}

func (i Invocation) Arg(n int) string {
	if n < 0 || n >= len(i.Tokens) {
		return ""
	}
	return i.Tokens[n]
}

// Parse extracts flags from raw, coerces them to their declared type and
// splits what remains on whitespace. The last occurrence of a flag wins.
func Parse(raw string, opts Options) (Invocation, error) {
	flags := make(Flags)
	for _, match := range flagPattern.FindAllStringSubmatch(raw, -1) {
		name := strings.ToLower(match[1])
		value := strings.Trim(match[2], `"`)
		spec, known := opts.spec(name)
		if !known {
			if opts.Closed {
				return Invocation{}, cmderr.InvalidFlag(name, opts.names())
			}
			flags[name] = value
			continue
		}
		coerced, err := coerce(spec, value)
		if err != nil {
			return Invocation{}, err
		}
		flags[name] = coerced
	}

	stripped := flagPattern.ReplaceAllString(raw, " ")
	tokens, starts := split(stripped)
	return Invocation{Raw: raw, Tokens: tokens, Flags: flags, text: stripped, starts: starts}, nil
}

// split breaks text on whitespace like strings.Fields, also reporting where
// each token begins.
func split(text string) (tokens []string, starts []int) {
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, text[start:i])
				starts = append(starts, start)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
		starts = append(starts, start)
	}
	return tokens, starts
}

func coerce(spec FlagSpec, value string) (any, error) {
	switch spec.Type {
	case Number:
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, cmderr.InvalidFlagType(spec.Name, "a number")
		}
		return parsed, nil
	case Boolean:
		parsed, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return nil, cmderr.InvalidFlagType(spec.Name, "true or false")
		}
		return parsed, nil
	default:
		return value, nil
	}
}
