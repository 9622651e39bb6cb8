// Package macro resolves {{name}} and {{name@range}} references against
// variable histories and the chat transcript. Resolution is fully
// synchronous so it can run inside host macro callbacks; variable data must
// already be warm in the storage cache (a miss resolves to empty, never
// blocks on I/O).
package macro

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hpungsan/varloom/internal/transcript"
	"github.com/hpungsan/varloom/internal/variable"
)

// DefaultAlias is the reserved transcript name when none is configured.
const DefaultAlias = "chat"

// builtinIterationCap bounds the fixed-point expansion pass so malformed or
// cyclic input always terminates.
const builtinIterationCap = 5

// Lookup resolves a variable name to its definition and current value.
// Implementations must be synchronous and non-blocking: return ok=false on
// a cold cache instead of performing I/O.
type Lookup interface {
	Resolve(name string) (variable.Definition, *variable.Value, bool)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(name string) (variable.Definition, *variable.Value, bool)

// Resolve implements Lookup.
func (f LookupFunc) Resolve(name string) (variable.Definition, *variable.Value, bool) {
	return f(name)
}

// Env supplies everything Process needs. Storage and the transcript are
// injected, not hard-wired.
type Env struct {
	// Transcript is the live chat, or nil when no chat is bound.
	Transcript transcript.Reader

	// LastFloor is the 1-based index of the last message. Zero means
	// "derive from Transcript".
	LastFloor int

	// Alias is the reserved transcript macro name. Empty means DefaultAlias.
	Alias string

	// Lookup resolves variable names. Nil means every reference misses.
	Lookup Lookup
}

func (e Env) lastFloor() int {
	if e.LastFloor > 0 {
		return e.LastFloor
	}
	if e.Transcript != nil {
		return e.Transcript.FloorCount()
	}
	return 0
}

func (e Env) alias() string {
	if e.Alias != "" {
		return e.Alias
	}
	return DefaultAlias
}

// builtinPattern matches the last-floor builtin with optional attached
// arithmetic, e.g. {{lastfloor}} or {{lastfloor}}-5. Arithmetic is only
// reduced here, where the operand provably came from the builtin; a literal
// "@57-5" typed by a user stays a range.
var builtinPattern = regexp.MustCompile(`(?i)\{\{\s*lastfloor\s*\}\}(?:\s*([+-])\s*(\d+))?`)

// referencePattern matches {{name}} and {{name@rangeSpec}}. Names must not
// contain braces or @; the range spec may carry per-token @ prefixes.
var referencePattern = regexp.MustCompile(`\{\{([^{}@]+)(?:@([^{}]*))?\}\}`)

// Process resolves every macro in template. Unresolved references degrade
// to the empty string so prompt structure survives; they are logged, never
// raised.
func Process(template string, env Env) string {
	s := expandBuiltins(template, env.lastFloor())

	return referencePattern.ReplaceAllStringFunc(s, func(m string) string {
		groups := referencePattern.FindStringSubmatch(m)
		name := strings.TrimSpace(groups[1])
		spec := groups[2]
		hasSpec := strings.Contains(m, "@")

		if strings.EqualFold(name, env.alias()) {
			return resolveTranscript(env, spec, hasSpec)
		}
		return resolveVariable(env, name, spec, hasSpec)
	})
}

// expandBuiltins is the fixed-point pass: substitute recognized builtins
// with literal values until the string stops changing or the iteration cap
// is hit. The cap is a termination safety valve, not a correctness
// guarantee for pathological input.
func expandBuiltins(s string, lastFloor int) string {
	for i := 0; i < builtinIterationCap; i++ {
		next := builtinPattern.ReplaceAllStringFunc(s, func(m string) string {
			groups := builtinPattern.FindStringSubmatch(m)
			n := lastFloor
			if groups[1] != "" {
				delta, err := strconv.Atoi(groups[2])
				if err == nil {
					if groups[1] == "+" {
						n += delta
					} else {
						n -= delta
					}
				}
			}
			return strconv.Itoa(n)
		})
		if next == s {
			return s
		}
		s = next
	}
	return s
}

func resolveTranscript(env Env, spec string, hasSpec bool) string {
	if env.Transcript == nil {
		log.Debug().Msg("macro: transcript reference with no chat bound")
		return ""
	}

	count := env.Transcript.FloorCount()
	universe := make([]string, count)
	for i := 1; i <= count; i++ {
		m, _ := env.Transcript.Floor(i)
		universe[i-1] = transcript.FloorText(m)
	}

	if !hasSpec {
		return strings.Join(universe, "\n\n")
	}
	return Pick(universe, spec)
}

func resolveVariable(env Env, name, spec string, hasSpec bool) string {
	if env.Lookup == nil {
		log.Debug().Str("name", name).Msg("macro: no lookup bound")
		return ""
	}

	def, val, ok := env.Lookup.Resolve(name)
	if !ok || val == nil {
		log.Debug().Str("name", name).Msg("macro: unresolved variable reference")
		return ""
	}

	if !hasSpec {
		return val.DefaultText(def.Mode)
	}
	return Pick(val.RangeUniverse(def.Mode), spec)
}
