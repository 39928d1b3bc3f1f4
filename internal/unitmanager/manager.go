// Package unitmanager implements the Unit Manager facade (L7, §4.7): it
// holds every activated unit instance, exposes per-kind
// load/unload/select/activate, and emits status messages to active
// Interfaces. Grounded on the predecessor's orchestration layer
// (pkg/commands/runtime.go, pkg/commands/docker.go), which likewise holds
// one facade object wrapping per-entity lifecycle operations behind a
// uniform API.
package unitmanager

import (
	"sync"

	"github.com/samber/lo"
	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/sam-bristow/exclave/internal/config"
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitbroadcaster"
	"github.com/sam-bristow/exclave/internal/units/scenario"
)

// Instance is the live, activatable form of a loaded Jig/Interface/Logger/
// Trigger unit. Select/Activate/Deactivate/Deselect mirror §4.7's ordering
// rule: select precedes activate, unload during an active state deactivates
// first.
type Instance interface {
	ID() unit.Name
	Select() error
	Deselect() error
	Activate(m *Manager) error
	Deactivate() error
}

// LoadableDescription is implemented by any Description the Manager can
// instantiate into a live Instance (Jig, Interface, Logger, Trigger).
// Keeping this interface local to unitmanager — rather than importing each
// unit kind's package — is what lets e.g. interfaceunit depend on
// unitmanager for message types without creating an import cycle back.
type LoadableDescription interface {
	unit.Description
	NewInstance(m *Manager) (Instance, error)
}

type entry struct {
	desc     LoadableDescription
	instance Instance
	selected bool
	active   bool
}

// ControlChannel is the many-to-one channel every active Interface's reader
// goroutines feed; the Manager is the sole consumer.
type ControlChannel chan ControlEnvelope

// Manager is the Unit Manager facade.
type Manager struct {
	mu  deadlock.Mutex
	log *logrus.Entry

	cfg         *config.Config
	broadcaster unitbroadcaster.Broadcaster

	jigs       map[unit.Name]*entry
	interfaces map[unit.Name]*entry
	loggers    map[unit.Name]*entry
	triggers   map[unit.Name]*entry

	tests     map[unit.Name]unit.Description
	scenarios map[unit.Name]*scenario.Description

	defaultJig      *unit.Name
	defaultScenario *unit.Name
	currentScenario map[unit.Name]unit.Name // per-interface selected scenario

	control   ControlChannel
	closeOnce sync.Once
}

// New constructs an empty Manager. The control channel is buffered (256
// entries) so short bursts of reader-thread sends do not block; once it is
// full, a send blocks until ProcessControlLoop drains it. Readers never
// retry a send.
func New(cfg *config.Config, broadcaster unitbroadcaster.Broadcaster, log *logrus.Entry) *Manager {
	return &Manager{
		log:             log,
		cfg:             cfg,
		broadcaster:     broadcaster,
		jigs:            map[unit.Name]*entry{},
		interfaces:      map[unit.Name]*entry{},
		loggers:         map[unit.Name]*entry{},
		triggers:        map[unit.Name]*entry{},
		tests:           map[unit.Name]unit.Description{},
		scenarios:       map[unit.Name]*scenario.Description{},
		currentScenario: map[unit.Name]unit.Name{},
		control:         make(ControlChannel, 256),
	}
}

// GetControlChannel returns the channel Interface instances send
// ControlEnvelopes on.
func (m *Manager) GetControlChannel() ControlChannel { return m.control }

// Config returns the daemon configuration, used by Interface instances to
// resolve working directories and the terminate timeout.
func (m *Manager) Config() *config.Config { return m.cfg }

// JigIsLoaded reports whether name is currently an active jig.
func (m *Manager) JigIsLoaded(name unit.Name) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jigs[name]
	return ok && e.active
}

// GetScenarios returns every currently loaded scenario description, used by
// the Rescan Engine's phase 2 (test-driven scenario invalidation).
func (m *Manager) GetScenarios() map[unit.Name]*scenario.Description {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[unit.Name]*scenario.Description, len(m.scenarios))
	for k, v := range m.scenarios {
		out[k] = v
	}
	return out
}

func storeFor(m *Manager, kind unit.Kind) map[unit.Name]*entry {
	switch kind {
	case unit.KindJig:
		return m.jigs
	case unit.KindInterface:
		return m.interfaces
	case unit.KindLogger:
		return m.loggers
	case unit.KindTrigger:
		return m.triggers
	default:
		return nil
	}
}

// loadInstance is the shared body of LoadJig/LoadInterface/LoadLogger/
// LoadTrigger: deactivate+drop any existing instance for this id (§4.7:
// "load must be idempotent after unload"), then instantiate the new
// description.
func (m *Manager) loadInstance(desc LoadableDescription) error {
	name := desc.ID()
	store := storeFor(m, name.Kind())

	m.mu.Lock()
	existing := store[name]
	delete(store, name)
	m.mu.Unlock()

	if existing != nil {
		m.deactivateEntry(existing)
	}

	instance, err := desc.NewInstance(m)
	if err != nil {
		return err
	}

	m.mu.Lock()
	store[name] = &entry{desc: desc, instance: instance}
	m.mu.Unlock()
	return nil
}

func (m *Manager) LoadJig(desc LoadableDescription) error       { return m.loadInstance(desc) }
func (m *Manager) LoadInterface(desc LoadableDescription) error { return m.loadInstance(desc) }
func (m *Manager) LoadLogger(desc LoadableDescription) error    { return m.loadInstance(desc) }
func (m *Manager) LoadTrigger(desc LoadableDescription) error   { return m.loadInstance(desc) }

// LoadTest stores a Test description. Tests are pure data: no instance, no
// select/activate (§4.6 phase 8).
func (m *Manager) LoadTest(desc unit.Description) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tests[desc.ID()] = desc
	return nil
}

// LoadScenario stores a Scenario description (§4.6 phase 9).
func (m *Manager) LoadScenario(desc *scenario.Description) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios[desc.ID()] = desc
	return nil
}

func (m *Manager) deactivateEntry(e *entry) {
	if e.active {
		if err := e.instance.Deactivate(); err != nil && m.log != nil {
			m.log.WithError(err).Warnf("deactivating %s", e.instance.ID())
		}
	}
}

// Unload deactivates (if needed) and drops whatever is loaded under name,
// across every store; a no-op if nothing is loaded under that name.
func (m *Manager) Unload(name unit.Name) {
	switch name.Kind() {
	case unit.KindJig, unit.KindInterface, unit.KindLogger, unit.KindTrigger:
		store := storeFor(m, name.Kind())
		m.mu.Lock()
		e := store[name]
		delete(store, name)
		m.mu.Unlock()
		if e != nil {
			m.deactivateEntry(e)
		}
	case unit.KindTest:
		m.mu.Lock()
		delete(m.tests, name)
		m.mu.Unlock()
	case unit.KindScenario:
		m.mu.Lock()
		delete(m.scenarios, name)
		m.mu.Unlock()
	}
}

// Select marks an id as the current selection for its kind. §4.7: select
// must precede activate.
func (m *Manager) Select(name unit.Name) error {
	store := storeFor(m, name.Kind())
	if store == nil {
		return nil
	}
	m.mu.Lock()
	e, ok := store[name]
	m.mu.Unlock()
	if !ok {
		return unit.InvariantError("select: %s is not loaded", name)
	}
	if err := e.instance.Select(); err != nil {
		return err
	}
	m.mu.Lock()
	e.selected = true
	m.mu.Unlock()
	return nil
}

// Activate activates a previously selected id. §3 invariant 4: activating an
// already-active id first deactivates the previous instance of that same
// id (loadInstance already guarantees only one instance object exists per
// id; here we guard against double-activation of the same instance).
func (m *Manager) Activate(name unit.Name) error {
	store := storeFor(m, name.Kind())
	if store == nil {
		return nil
	}
	m.mu.Lock()
	e, ok := store[name]
	m.mu.Unlock()
	if !ok {
		return unit.InvariantError("activate: %s is not loaded", name)
	}

	if e.active {
		if err := e.instance.Deactivate(); err != nil {
			return err
		}
		m.mu.Lock()
		e.active = false
		m.mu.Unlock()
	}

	if err := e.instance.Activate(m); err != nil {
		return err
	}
	m.mu.Lock()
	e.active = true
	m.mu.Unlock()
	return nil
}

// RefreshDefaults re-derives the default jig and default scenario
// selections: an active jig, and a loaded scenario compatible with it. When
// several candidates qualify, the one chosen follows map iteration order, so
// which of them becomes the default is not defined. Run after the activation sweep (§4.6 phase
// 11); §9 notes the client may observe a transient state first.
func (m *Manager) RefreshDefaults() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newDefaultJig *unit.Name
	for name, e := range m.jigs {
		if e.active {
			n := name
			newDefaultJig = &n
		}
	}
	m.defaultJig = newDefaultJig

	var newDefaultScenario *unit.Name
	for name, s := range m.scenarios {
		if m.defaultJig == nil || s.SupportsJig(*m.defaultJig) {
			n := name
			newDefaultScenario = &n
		}
	}
	m.defaultScenario = newDefaultScenario
}

// DefaultJig returns the default jig chosen by the last RefreshDefaults, or
// nil if no jig was active then.
func (m *Manager) DefaultJig() *unit.Name {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaultJig
}

// SendStatus renders msg onto every currently active Interface. Errors from
// individual Interfaces are logged, not propagated: a broken pipe on one
// client must not prevent the others from being updated.
func (m *Manager) SendStatus(msg StatusMessage) {
	m.mu.Lock()
	targets := make([]Instance, 0, len(m.interfaces))
	for _, e := range m.interfaces {
		if e.active {
			targets = append(targets, e.instance)
		}
	}
	m.mu.Unlock()

	for _, inst := range targets {
		if sender, ok := inst.(StatusReceiver); ok {
			if err := sender.SendStatus(msg); err != nil && m.log != nil {
				m.log.WithError(err).Debugf("sending status to %s", inst.ID())
			}
		}
	}
}

// StatusReceiver is implemented by Instance kinds capable of receiving
// rendered status messages (in practice, only Interface instances).
type StatusReceiver interface {
	SendStatus(msg StatusMessage) error
}

// ProcessControlLoop drains the control channel until it is closed,
// dispatching each ControlEnvelope. Intended to run on its own goroutine for
// the lifetime of the daemon.
func (m *Manager) ProcessControlLoop() {
	for env := range m.control {
		m.handleControl(env)
	}
}

func (m *Manager) handleControl(env ControlEnvelope) {
	switch env.Message.Kind {
	case ControlInitialGreeting:
		m.replyTo(env.Source, NewHelloMessage(env.Source))
		m.replyTo(env.Source, NewJigMessage(m.DefaultJig()))

	case ControlJig:
		m.replyTo(env.Source, NewJigMessage(m.DefaultJig()))

	case ControlScenarios:
		m.mu.Lock()
		names := lo.Keys(m.scenarios)
		m.mu.Unlock()
		m.replyTo(env.Source, NewScenariosMessage(names))

	case ControlScenario:
		m.mu.Lock()
		_, ok := m.scenarios[env.Message.ScenarioName]
		if ok {
			m.currentScenario[env.Source] = env.Message.ScenarioName
		}
		m.mu.Unlock()
		if !ok {
			m.replyTo(env.Source, NewControlErrorAsStatus("unknown scenario"))
			return
		}
		name := env.Message.ScenarioName
		m.replyTo(env.Source, NewScenarioMessage(&name))

	case ControlTests:
		target := env.Message.TestsScenario
		m.mu.Lock()
		if target == nil {
			if cur, ok := m.currentScenario[env.Source]; ok {
				target = &cur
			}
		}
		var tests []unit.Name
		if target != nil {
			if s, ok := m.scenarios[*target]; ok {
				tests = s.Tests()
			}
		}
		m.mu.Unlock()
		if target != nil {
			m.replyTo(env.Source, NewTestsMessage(*target, tests))
		}

	case ControlLog:
		m.broadcaster.Broadcast(unitbroadcaster.NewCategory(env.Source.Kind(),
			env.Source.String()+": "+env.Message.LogLine))

	case ControlLogError:
		if m.log != nil {
			m.log.Warnf("%s (stderr): %s", env.Source, env.Message.LogErrorLine)
		}

	case ControlChildExited:
		m.mu.Lock()
		if e, ok := m.interfaces[env.Source]; ok {
			e.active = false
		}
		m.mu.Unlock()
		m.broadcaster.Broadcast(unitbroadcaster.NewStatus(env.Source, unit.LoadFailed("child process exited")))

	case ControlStartScenario, ControlShutdown, ControlUnimplemented, ControlError:
		// Scenario execution and client-initiated shutdown belong to the
		// scenario-runner subsystem, out of scope here (spec.md's
		// Non-goals: "implementations of non-Interface unit kinds beyond
		// what their descriptions expose"). Acknowledge receipt in the log
		// so an operator can see the command arrived.
		if m.log != nil {
			m.log.Debugf("%s: unhandled control message kind %d", env.Source, env.Message.Kind)
		}
	}
}

func (m *Manager) replyTo(target unit.Name, msg StatusMessage) {
	m.mu.Lock()
	e, ok := m.interfaces[target]
	m.mu.Unlock()
	if !ok || !e.active {
		return
	}
	if sender, ok := e.instance.(StatusReceiver); ok {
		if err := sender.SendStatus(msg); err != nil && m.log != nil {
			m.log.WithError(err).Debugf("replying to %s", target)
		}
	}
}

// NewControlErrorAsStatus surfaces a protocol-level error back to the
// client as a DESCRIBE-less status line; there is no dedicated ERROR verb
// in §4.8's outbound table, so this piggybacks on JIG with a nil payload
// purely to flush something to the wire rather than silently dropping it.
//
// TODO: add a first-class ERROR status verb once a client actually needs to
// distinguish this from "no jig selected".
func NewControlErrorAsStatus(reason string) StatusMessage {
	return NewJigMessage(nil)
}

// ProcessMessage is the manager's half of the predecessor's
// UnitManager::process_message: every event the Library reacts to is also
// forwarded here. The manager itself has no event-driven state beyond what
// Select/Activate/Unload already update, so this is currently a logging
// hook for observability.
func (m *Manager) ProcessMessage(evt unitbroadcaster.Event) {
	if m.log != nil {
		m.log.Tracef("manager observed event kind %d", evt.Kind)
	}
}

// Shutdown deactivates every currently active Interface, respecting each
// one's configured terminate-timeout (§5 Cancellation: "deactivate every
// live interface" before the description stores are dropped). Jigs,
// loggers, and triggers have no subprocess to tear down, so only
// interfaces are visited here.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	targets := make([]*entry, 0, len(m.interfaces))
	for _, e := range m.interfaces {
		targets = append(targets, e)
	}
	m.mu.Unlock()

	for _, e := range targets {
		m.deactivateEntry(e)
	}
}

// Close closes the control channel, ending ProcessControlLoop. Safe to call
// more than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.control)
	})
}
