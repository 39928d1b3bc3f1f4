package unitmanager

import "github.com/sam-bristow/exclave/internal/unit"

// StatusKind tags which ManagerStatusMessage variant a StatusMessage carries
// (§4.8's outbound verb table).
type StatusKind int

const (
	StatusJig StatusKind = iota
	StatusHello
	StatusTests
	StatusScenario
	StatusScenarios
	StatusDescribe
	StatusLog
	StatusRunning
	StatusSkip
	StatusFail
	StatusPass
	StatusFinish
	StatusStart
)

// LogRecord is the payload of a LOG record: <kind>\t<id>\t<id-kind>\t<secs>\t<nsecs>\t<message>.
type LogRecord struct {
	EntryKind string
	ID        unit.Name
	Secs      int64
	Nsecs     int64
	Message   string
}

// StatusMessage is rendered onto a child's stdin by the Interface's text
// writer (§4.8). Exactly the fields relevant to Kind are populated.
type StatusMessage struct {
	Kind StatusKind

	Jig          *unit.Name
	Name         unit.Name
	Scenario     *unit.Name
	Tests        []unit.Name
	ScenarioList []unit.Name

	DescribeTarget unit.Description
	DescribeField  string

	Log LogRecord

	TestName   unit.Name
	Reason     string
	ResultCode int
}

func NewJigMessage(jigName *unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusJig, Jig: jigName}
}

func NewHelloMessage(id unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusHello, Name: id}
}

func NewTestsMessage(scenario unit.Name, tests []unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusTests, Scenario: &scenario, Tests: tests}
}

func NewScenarioMessage(current *unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusScenario, Scenario: current}
}

func NewScenariosMessage(list []unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusScenarios, ScenarioList: list}
}

func NewDescribeMessage(name unit.Name, field string, target unit.Description) StatusMessage {
	return StatusMessage{Kind: StatusDescribe, Name: name, DescribeField: field, DescribeTarget: target}
}

func NewLogStatusMessage(rec LogRecord) StatusMessage {
	return StatusMessage{Kind: StatusLog, Log: rec}
}

func NewRunningMessage(test unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusRunning, TestName: test}
}

func NewSkipMessage(test unit.Name, reason string) StatusMessage {
	return StatusMessage{Kind: StatusSkip, TestName: test, Reason: reason}
}

func NewFailMessage(test unit.Name, reason string) StatusMessage {
	return StatusMessage{Kind: StatusFail, TestName: test, Reason: reason}
}

func NewPassMessage(test unit.Name, reason string) StatusMessage {
	return StatusMessage{Kind: StatusPass, TestName: test, Reason: reason}
}

func NewFinishMessage(scenario unit.Name, resultCode int, reason string) StatusMessage {
	return StatusMessage{Kind: StatusFinish, Scenario: &scenario, ResultCode: resultCode, Reason: reason}
}

func NewStartMessage(scenario unit.Name) StatusMessage {
	return StatusMessage{Kind: StatusStart, Scenario: &scenario}
}

// ControlKind tags which ManagerControlMessageContents variant a
// ControlMessage carries (§4.8's inbound verb table, plus the supervisory
// variants ChildExited/InitialGreeting/LogError).
type ControlKind int

const (
	ControlScenarios ControlKind = iota
	ControlScenario
	ControlTests
	ControlJig
	ControlLog
	ControlStartScenario
	ControlShutdown
	ControlUnimplemented
	ControlError
	ControlLogError
	ControlChildExited
	ControlInitialGreeting
)

// ControlMessage is one parsed instruction arriving from an Interface's
// child process (or a supervisory event about that child).
type ControlMessage struct {
	Kind ControlKind

	ScenarioName   unit.Name
	TestsScenario  *unit.Name
	LogLine        string
	StartScenario  *unit.Name
	ShutdownReason *string

	UnimplementedVerb string
	UnimplementedArgs string

	ErrorMessage string
	LogErrorLine string
}

func NewControlMessage(kind ControlKind) ControlMessage { return ControlMessage{Kind: kind} }

func NewControlScenario(name unit.Name) ControlMessage {
	return ControlMessage{Kind: ControlScenario, ScenarioName: name}
}

func NewControlTests(scenario *unit.Name) ControlMessage {
	return ControlMessage{Kind: ControlTests, TestsScenario: scenario}
}

func NewControlLog(line string) ControlMessage {
	return ControlMessage{Kind: ControlLog, LogLine: line}
}

func NewControlStartScenario(scenario *unit.Name) ControlMessage {
	return ControlMessage{Kind: ControlStartScenario, StartScenario: scenario}
}

func NewControlShutdown(reason *string) ControlMessage {
	return ControlMessage{Kind: ControlShutdown, ShutdownReason: reason}
}

func NewControlUnimplemented(verb, args string) ControlMessage {
	return ControlMessage{Kind: ControlUnimplemented, UnimplementedVerb: verb, UnimplementedArgs: args}
}

func NewControlError(message string) ControlMessage {
	return ControlMessage{Kind: ControlError, ErrorMessage: message}
}

func NewControlLogError(line string) ControlMessage {
	return ControlMessage{Kind: ControlLogError, LogErrorLine: line}
}

func NewControlChildExited() ControlMessage {
	return ControlMessage{Kind: ControlChildExited}
}

func NewControlInitialGreeting() ControlMessage {
	return ControlMessage{Kind: ControlInitialGreeting}
}

// ControlEnvelope pairs a ControlMessage with the unit name of the Interface
// instance that produced it; the control channel is many-to-one (every
// active Interface's reader goroutines feed the single Manager).
type ControlEnvelope struct {
	Source  unit.Name
	Message ControlMessage
}
