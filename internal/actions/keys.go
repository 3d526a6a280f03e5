// Package actions maps model output to timed keyboard plans.
package actions

import (
	"sort"
	"strings"
)

// Action is a single keyboard intent inside a plan segment.
type Action struct {
	Name string
	Code int
	Hold bool
}

// JS keyCode values for the keys browser games listen on.
var keyCodes = map[string]int{
	"ENTER": 13,
	"ESC":   27,
	"SPACE": 32,
	"LEFT":  37,
	"UP":    38,
	"RIGHT": 39,
	"DOWN":  40,
}

func init() {
	for c := 'A'; c <= 'Z'; c++ {
		keyCodes[string(c)] = 65 + int(c-'A')
	}
}

// LookupAction resolves an action name from model output. Names are
// case-insensitive; a HOLD_ prefix marks the key as held for the whole
// segment. NOOP and empty names resolve to ok=false with valid=true.
func LookupAction(name string) (a Action, ok, valid bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" || name == "NOOP" {
		return Action{}, false, true
	}

	hold := false
	if strings.HasPrefix(name, "HOLD_") {
		hold = true
		name = strings.TrimPrefix(name, "HOLD_")
	}

	code, found := keyCodes[name]
	if !found {
		return Action{}, false, false
	}
	return Action{Name: name, Code: code, Hold: hold}, true, true
}

// AvailableActions lists every action name the prompt may offer,
// instant forms first, then hold forms, deterministically ordered.
func AvailableActions() []string {
	names := make([]string, 0, len(keyCodes))
	for name := range keyCodes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, 2*len(names)+1)
	out = append(out, "NOOP")
	out = append(out, names...)
	for _, name := range names {
		out = append(out, "HOLD_"+name)
	}
	return out
}
