package actions

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/joss/gamepilot/internal/logging"
)

// PlanSegments is the fixed segment count of every action plan.
const PlanSegments = 5

// Segment holds the actions for one time slice. Empty means idle.
type Segment []Action

// Plan is a fixed-length schedule of key actions. Parse always returns
// a full plan so the scheduler never sees a short or long one.
type Plan [PlanSegments]Segment

// IsNoop reports whether the whole plan is idle.
func (p Plan) IsNoop() bool {
	for _, seg := range p {
		if len(seg) > 0 {
			return false
		}
	}
	return true
}

// Names renders the plan as action names for logs and the next prompt.
func (p Plan) Names() [][]string {
	out := make([][]string, PlanSegments)
	for i, seg := range p {
		if len(seg) == 0 {
			out[i] = []string{"NOOP"}
			continue
		}
		names := make([]string, len(seg))
		for j, a := range seg {
			if a.Hold {
				names[j] = "HOLD_" + a.Name
			} else {
				names[j] = a.Name
			}
		}
		out[i] = names
	}
	return out
}

var (
	keysBlockRe       = regexp.MustCompile(`(?s)<keys>(.*?)</keys>`)
	scratchpadBlockRe = regexp.MustCompile(`(?s)<scratchpad>(.*?)</scratchpad>`)

	parseLog = logging.New("actions")
)

// Parse extracts the <keys> block from model output and turns it into
// a plan. Malformed output degrades to an idle plan rather than an
// error: the game keeps running and the model gets another chance.
func Parse(text string) Plan {
	var plan Plan

	match := keysBlockRe.FindStringSubmatch(text)
	if match == nil {
		parseLog.Warn("no_keys_block", map[string]interface{}{"chars": len(text)}, nil)
		return plan
	}

	raw := strings.TrimSpace(match[1])

	// Models trained on Python emit single-quoted pseudo-JSON. Swap the
	// quotes only when no double quotes exist, so real JSON with
	// apostrophes inside strings is left alone.
	if strings.Contains(raw, "'") && !strings.Contains(raw, `"`) {
		raw = strings.ReplaceAll(raw, "'", `"`)
	}

	var segments []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		parseLog.Warn("keys_block_invalid", map[string]interface{}{"block": raw}, err)
		return plan
	}

	if len(segments) > PlanSegments {
		parseLog.Warn("plan_truncated", map[string]interface{}{"segments": len(segments)}, nil)
		segments = segments[:PlanSegments]
	}

	for i, rawSeg := range segments {
		var names []string
		if err := json.Unmarshal(rawSeg, &names); err != nil {
			// Tolerate a bare string where a list was expected
			var single string
			if err2 := json.Unmarshal(rawSeg, &single); err2 != nil {
				parseLog.Warn("segment_invalid", map[string]interface{}{"segment": i}, err)
				continue
			}
			names = []string{single}
		}

		var seg Segment
		for _, name := range names {
			action, ok, valid := LookupAction(name)
			if !valid {
				parseLog.Warn("unknown_action", map[string]interface{}{"name": name, "segment": i}, nil)
				continue
			}
			if ok {
				seg = append(seg, action)
			}
		}
		plan[i] = seg
	}

	return plan
}

// Scratchpad returns the content of the last <scratchpad> block, or ""
// when the response has none.
func Scratchpad(text string) string {
	matches := scratchpadBlockRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
