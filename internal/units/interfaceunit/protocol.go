package interfaceunit

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	lookup "github.com/mcuadros/go-lookup"

	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

// Escape implements §4.8's textual escaping: backslash, tab, newline, and
// carriage return each become a two-character backslash sequence. Ported
// directly from cfti_escape in original_source/src/units/interface.rs.
func Escape(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		"\t", `\t`,
		"\n", `\n`,
		"\r", `\r`,
	)
	return r.Replace(s)
}

// Unescape is the inverse of Escape: a backslash followed by one of
// \ t r n becomes the corresponding literal character; a backslash followed
// by anything else becomes that character with the backslash dropped.
// Ported directly from cfti_unescape.
func Unescape(s string) string {
	var out strings.Builder
	wasBackslash := false

	for _, c := range s {
		if wasBackslash {
			switch c {
			case '\\':
				out.WriteRune('\\')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			case 'n':
				out.WriteRune('\n')
			default:
				out.WriteRune(c)
			}
			wasBackslash = false
			continue
		}

		if c == '\\' {
			wasBackslash = true
			continue
		}
		out.WriteRune(c)
	}
	// A trailing lone backslash with nothing to escape is dropped silently,
	// matching the state machine above (it never flushes a pending '\\').
	return out.String()
}

// WriteStatusMessage renders one ManagerStatusMessage onto w as a
// newline-terminated, backslash-escaped text record per §4.8's verb table.
func WriteStatusMessage(w io.Writer, msg unitmanager.StatusMessage) error {
	switch msg.Kind {
	case unitmanager.StatusJig:
		if msg.Jig == nil {
			return writeln(w, "JIG")
		}
		return writeln(w, "JIG %s", Escape(msg.Jig.String()))

	case unitmanager.StatusHello:
		return writeln(w, "HELLO %s", Escape(msg.Name.String()))

	case unitmanager.StatusTests:
		var b strings.Builder
		fmt.Fprintf(&b, "TESTS %s", Escape(msg.Scenario.ID()))
		for _, t := range msg.Tests {
			fmt.Fprintf(&b, " %s", Escape(t.ID()))
		}
		return writeln(w, "%s", b.String())

	case unitmanager.StatusScenario:
		if msg.Scenario == nil {
			return writeln(w, "SCENARIO")
		}
		return writeln(w, "SCENARIO %s", Escape(msg.Scenario.ID()))

	case unitmanager.StatusScenarios:
		var b strings.Builder
		b.WriteString("SCENARIOS")
		for _, s := range msg.ScenarioList {
			fmt.Fprintf(&b, " %s", Escape(s.ID()))
		}
		return writeln(w, "%s", b.String())

	case unitmanager.StatusDescribe:
		value, _ := describeField(msg.DescribeTarget, msg.DescribeField)
		return writeln(w, "DESCRIBE %s", Escape(fmt.Sprintf(
			"%s %s %s %s", msg.Name.Kind(), msg.DescribeField, msg.Name.ID(), value)))

	case unitmanager.StatusLog:
		return writeln(w, "LOG %s\t%s\t%s\t%d\t%d\t%s",
			msg.Log.EntryKind, Escape(msg.Log.ID.ID()), msg.Log.ID.Kind(),
			msg.Log.Secs, msg.Log.Nsecs, Escape(msg.Log.Message))

	case unitmanager.StatusRunning:
		return writeln(w, "RUNNING %s", Escape(msg.TestName.ID()))

	case unitmanager.StatusSkip:
		return writeln(w, "SKIP %s %s", Escape(msg.TestName.ID()), Escape(msg.Reason))

	case unitmanager.StatusFail:
		return writeln(w, "FAIL %s %s", Escape(msg.TestName.ID()), Escape(msg.Reason))

	case unitmanager.StatusPass:
		return writeln(w, "PASS %s %s", Escape(msg.TestName.ID()), Escape(msg.Reason))

	case unitmanager.StatusFinish:
		return writeln(w, "FINISH %s %d %s", Escape(msg.Scenario.ID()), msg.ResultCode, Escape(msg.Reason))

	case unitmanager.StatusStart:
		return writeln(w, "START %s", Escape(msg.Scenario.ID()))

	default:
		return fmt.Errorf("unrecognized status message kind %v", msg.Kind)
	}
}

func writeln(w io.Writer, format string, args ...interface{}) error {
	_, err := fmt.Fprintf(w, format+"\n", args...)
	return err
}

// describeField reflectively looks up a named field on a Description, for
// the DESCRIBE <kind> <field> <id> <value> record. Unknown fields yield an
// empty value rather than an error: DESCRIBE is diagnostic, not load-bearing.
func describeField(desc unit.Description, field string) (string, bool) {
	v, err := lookup.LookupString(desc, field)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%v", v.Interface()), true
}

// ParseLine parses one line of stdout from an Interface's child process into
// a ManagerControlMessage, per §4.8's inbound verb table. Blank lines return
// (ControlMessage{}, false).
func ParseLine(line string) (unitmanager.ControlMessage, bool) {
	fields := strings.Fields(line)
	words := make([]string, len(fields))
	for i, f := range fields {
		words[i] = Unescape(f)
	}
	if len(words) == 0 {
		return unitmanager.ControlMessage{}, false
	}

	verb := strings.ToLower(words[0])
	args := words[1:]

	switch verb {
	case "scenarios":
		return unitmanager.NewControlMessage(unitmanager.ControlScenarios), true

	case "scenario":
		raw := ""
		if len(args) > 0 {
			raw = strings.ToLower(args[0])
		}
		name, err := unit.FromString(raw, unit.KindScenario)
		if err != nil {
			return unitmanager.NewControlError(fmt.Sprintf("invalid scenario name: %s", err)), true
		}
		return unitmanager.NewControlScenario(name), true

	case "tests":
		if len(args) == 0 {
			return unitmanager.NewControlTests(nil), true
		}
		// Matches the original implementation's default kind for this
		// argument ("test", not "scenario"), preserved verbatim even though
		// the payload is conceptually a scenario name.
		name, err := unit.FromString(strings.ToLower(args[0]), unit.KindTest)
		if err != nil {
			return unitmanager.NewControlError(fmt.Sprintf("invalid test name specified: %s", err)), true
		}
		return unitmanager.NewControlTests(&name), true

	case "jig":
		return unitmanager.NewControlMessage(unitmanager.ControlJig), true

	case "log":
		return unitmanager.NewControlLog(strings.Join(args, " ")), true

	case "start":
		if len(args) == 0 {
			return unitmanager.NewControlStartScenario(nil), true
		}
		name, err := unit.FromString(strings.ToLower(args[0]), unit.KindScenario)
		if err != nil {
			return unitmanager.NewControlError(fmt.Sprintf("invalid scenario name: %s", err)), true
		}
		return unitmanager.NewControlStartScenario(&name), true

	case "shutdown":
		if len(args) == 0 {
			return unitmanager.NewControlShutdown(nil), true
		}
		reason := strings.Join(args, " ")
		return unitmanager.NewControlShutdown(&reason), true

	default:
		return unitmanager.NewControlUnimplemented(verb, strings.Join(args, " ")), true
	}
}

// jsonRecord is the wire shape for Format=json, a flatter encoding of the
// same verb/payload pairs the text protocol carries. There is no precedent
// for this in either the teacher or the rest of the example pack; JSON
// framing is carried via the standard library rather than any third-party
// codec because none of the examples' codecs (go-systemd's unit parser,
// the YAML stack) targets line-delimited JSON.
type jsonRecord struct {
	Verb     string   `json:"verb"`
	Jig      string   `json:"jig,omitempty"`
	Name     string   `json:"name,omitempty"`
	Scenario string   `json:"scenario,omitempty"`
	Tests    []string `json:"tests,omitempty"`
	Field    string   `json:"field,omitempty"`
	Value    string   `json:"value,omitempty"`
	Log      *struct {
		Kind    string `json:"kind"`
		ID      string `json:"id"`
		IDKind  string `json:"idKind"`
		Secs    int64  `json:"secs"`
		Nsecs   int64  `json:"nsecs"`
		Message string `json:"message"`
	} `json:"log,omitempty"`
	ResultCode int    `json:"resultCode,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// WriteStatusMessageJSON renders msg as one JSON object per line, the
// Format=json counterpart to WriteStatusMessage.
func WriteStatusMessageJSON(w io.Writer, msg unitmanager.StatusMessage) error {
	rec := jsonRecord{}
	switch msg.Kind {
	case unitmanager.StatusJig:
		rec.Verb = "jig"
		if msg.Jig != nil {
			rec.Jig = msg.Jig.String()
		}
	case unitmanager.StatusHello:
		rec.Verb = "hello"
		rec.Name = msg.Name.String()
	case unitmanager.StatusTests:
		rec.Verb = "tests"
		if msg.Scenario != nil {
			rec.Scenario = msg.Scenario.ID()
		}
		for _, t := range msg.Tests {
			rec.Tests = append(rec.Tests, t.ID())
		}
	case unitmanager.StatusScenario:
		rec.Verb = "scenario"
		if msg.Scenario != nil {
			rec.Scenario = msg.Scenario.ID()
		}
	case unitmanager.StatusScenarios:
		rec.Verb = "scenarios"
		for _, s := range msg.ScenarioList {
			rec.Tests = append(rec.Tests, s.ID())
		}
	case unitmanager.StatusDescribe:
		rec.Verb = "describe"
		rec.Name = msg.Name.String()
		rec.Field = msg.DescribeField
		value, _ := describeField(msg.DescribeTarget, msg.DescribeField)
		rec.Value = value
	case unitmanager.StatusLog:
		rec.Verb = "log"
		rec.Log = &struct {
			Kind    string `json:"kind"`
			ID      string `json:"id"`
			IDKind  string `json:"idKind"`
			Secs    int64  `json:"secs"`
			Nsecs   int64  `json:"nsecs"`
			Message string `json:"message"`
		}{
			Kind: msg.Log.EntryKind, ID: msg.Log.ID.ID(), IDKind: string(msg.Log.ID.Kind()),
			Secs: msg.Log.Secs, Nsecs: msg.Log.Nsecs, Message: msg.Log.Message,
		}
	case unitmanager.StatusRunning:
		rec.Verb, rec.Name = "running", msg.TestName.String()
	case unitmanager.StatusSkip:
		rec.Verb, rec.Name, rec.Reason = "skip", msg.TestName.String(), msg.Reason
	case unitmanager.StatusFail:
		rec.Verb, rec.Name, rec.Reason = "fail", msg.TestName.String(), msg.Reason
	case unitmanager.StatusPass:
		rec.Verb, rec.Name, rec.Reason = "pass", msg.TestName.String(), msg.Reason
	case unitmanager.StatusFinish:
		rec.Verb, rec.ResultCode, rec.Reason = "finish", msg.ResultCode, msg.Reason
		if msg.Scenario != nil {
			rec.Scenario = msg.Scenario.ID()
		}
	case unitmanager.StatusStart:
		rec.Verb = "start"
		if msg.Scenario != nil {
			rec.Scenario = msg.Scenario.ID()
		}
	default:
		return fmt.Errorf("unrecognized status message kind %v", msg.Kind)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// ParseLineJSON is the Format=json counterpart to ParseLine: each line is a
// jsonRecord whose Verb selects the same control-message vocabulary.
func ParseLineJSON(line string) (unitmanager.ControlMessage, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return unitmanager.ControlMessage{}, false
	}

	var rec jsonRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return unitmanager.NewControlError(fmt.Sprintf("invalid json record: %s", err)), true
	}

	switch strings.ToLower(rec.Verb) {
	case "scenarios":
		return unitmanager.NewControlMessage(unitmanager.ControlScenarios), true
	case "scenario":
		name, err := unit.FromString(rec.Scenario, unit.KindScenario)
		if err != nil {
			return unitmanager.NewControlError(fmt.Sprintf("invalid scenario name: %s", err)), true
		}
		return unitmanager.NewControlScenario(name), true
	case "tests":
		if rec.Scenario == "" {
			return unitmanager.NewControlTests(nil), true
		}
		name, err := unit.FromString(rec.Scenario, unit.KindTest)
		if err != nil {
			return unitmanager.NewControlError(fmt.Sprintf("invalid test name specified: %s", err)), true
		}
		return unitmanager.NewControlTests(&name), true
	case "jig":
		return unitmanager.NewControlMessage(unitmanager.ControlJig), true
	case "log":
		return unitmanager.NewControlLog(rec.Value), true
	case "start":
		if rec.Scenario == "" {
			return unitmanager.NewControlStartScenario(nil), true
		}
		name, err := unit.FromString(rec.Scenario, unit.KindScenario)
		if err != nil {
			return unitmanager.NewControlError(fmt.Sprintf("invalid scenario name: %s", err)), true
		}
		return unitmanager.NewControlStartScenario(&name), true
	case "shutdown":
		reason := rec.Reason
		return unitmanager.NewControlShutdown(&reason), true
	default:
		return unitmanager.NewControlUnimplemented(rec.Verb, rec.Value), true
	}
}
