package classify

import "github.com/st3v3nmw/beacon-dns-lists/internal/types"

// Lines renders the entries of one side of the set in the given format.
// Verbatim entries are written as-is, with an @@ marker on the allow side
// of adblock output.
func (rs RuleSet) Lines(action types.Action, format types.OutputFormat) []string {
	entries := rs.Block
	if action == types.ActionAllow {
		entries = rs.Allow
	}

	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, e.render(action, format))
	}
	return lines
}

func (e Entry) render(action types.Action, format types.OutputFormat) string {
	if e.Domain == "" {
		if action == types.ActionAllow && format == types.OutputFormatAdblock {
			return "@@" + e.Text
		}
		return e.Text
	}

	if format != types.OutputFormatAdblock {
		return e.Domain
	}

	if action == types.ActionAllow {
		return "@@||" + e.Domain + "^"
	}
	return "||" + e.Domain + "^"
}
