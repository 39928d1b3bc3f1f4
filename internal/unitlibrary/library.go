// Package unitlibrary implements the Description Store, Status Table,
// Dirty Sets, and Rescan Engine (§4.6, L3-L6): the component that turns
// filesystem lifecycle events into loaded, activated unit instances.
// Directly adapted from original_source/src/unitlibrary.rs — the dirty-set
// bookkeeping, the two-phase jig/test invalidation sweep, and the
// load-then-select-then-activate ordering are all ported from there, with
// Rust's RefCell<HashMap<...>> interior mutability replaced by a single
// sasha-s/go-deadlock mutex guarding plain maps.
package unitlibrary

import (
	"fmt"

	deadlock "github.com/sasha-s/go-deadlock"
	"github.com/sirupsen/logrus"

	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitbroadcaster"
	"github.com/sam-bristow/exclave/internal/unitfile"
	"github.com/sam-bristow/exclave/internal/unitmanager"
	"github.com/sam-bristow/exclave/internal/units/interfaceunit"
	"github.com/sam-bristow/exclave/internal/units/jig"
	"github.com/sam-bristow/exclave/internal/units/loggerunit"
	"github.com/sam-bristow/exclave/internal/units/scenario"
	"github.com/sam-bristow/exclave/internal/units/testunit"
	"github.com/sam-bristow/exclave/internal/units/triggerunit"
)

// Library is the Description Store, Status Table, and Dirty Sets rolled
// into one, plus the Rescan Engine that operates on them.
type Library struct {
	mu deadlock.Mutex

	broadcaster unitbroadcaster.Broadcaster
	manager     *unitmanager.Manager
	log         *logrus.Entry

	unitStatus map[unit.Name]unit.Status

	jigDescriptions       map[unit.Name]*jig.Description
	interfaceDescriptions map[unit.Name]*interfaceunit.Description
	loggerDescriptions    map[unit.Name]*loggerunit.Description
	triggerDescriptions   map[unit.Name]*triggerunit.Description
	testDescriptions      map[unit.Name]*testunit.Description
	scenarioDescriptions  map[unit.Name]*scenario.Description

	dirtyJigs       map[unit.Name]struct{}
	dirtyInterfaces map[unit.Name]struct{}
	dirtyLoggers    map[unit.Name]struct{}
	dirtyTriggers   map[unit.Name]struct{}
	dirtyTests      map[unit.Name]struct{}
	dirtyScenarios  map[unit.Name]struct{}
}

// New constructs an empty Library wired to broadcaster and manager.
func New(broadcaster unitbroadcaster.Broadcaster, manager *unitmanager.Manager, log *logrus.Entry) *Library {
	return &Library{
		broadcaster: broadcaster,
		manager:     manager,
		log:         log,

		unitStatus: map[unit.Name]unit.Status{},

		jigDescriptions:       map[unit.Name]*jig.Description{},
		interfaceDescriptions: map[unit.Name]*interfaceunit.Description{},
		loggerDescriptions:    map[unit.Name]*loggerunit.Description{},
		triggerDescriptions:   map[unit.Name]*triggerunit.Description{},
		testDescriptions:      map[unit.Name]*testunit.Description{},
		scenarioDescriptions:  map[unit.Name]*scenario.Description{},

		dirtyJigs:       map[unit.Name]struct{}{},
		dirtyInterfaces: map[unit.Name]struct{}{},
		dirtyLoggers:    map[unit.Name]struct{}{},
		dirtyTriggers:   map[unit.Name]struct{}{},
		dirtyTests:      map[unit.Name]struct{}{},
		dirtyScenarios:  map[unit.Name]struct{}{},
	}
}

// Subscribe wires the Library into broadcaster's event stream, returning an
// unsubscribe function. ProcessMessage runs on the broadcaster's dedicated
// delivery goroutine for this subscription.
func (lib *Library) Subscribe() (unsubscribe func()) {
	return lib.broadcaster.Subscribe(lib.ProcessMessage)
}

// Status returns the Status Table's current entry for name, for
// observability and tests; the zero Status (absent) if name was never seen
// or has been fully evicted.
func (lib *Library) Status(name unit.Name) unit.Status {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	return lib.unitStatus[name]
}

func (lib *Library) markDirty(name unit.Name) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	switch name.Kind() {
	case unit.KindInterface:
		lib.dirtyInterfaces[name] = struct{}{}
	case unit.KindJig:
		lib.dirtyJigs[name] = struct{}{}
	case unit.KindLogger:
		lib.dirtyLoggers[name] = struct{}{}
	case unit.KindScenario:
		lib.dirtyScenarios[name] = struct{}{}
	case unit.KindTest:
		lib.dirtyTests[name] = struct{}{}
	case unit.KindTrigger:
		lib.dirtyTriggers[name] = struct{}{}
	}
}

// ProcessMessage is the Library's half of the predecessor's
// UnitLibrary::process_message: it reacts to status and rescan-request
// events, then always forwards the event to the manager.
func (lib *Library) ProcessMessage(evt unitbroadcaster.Event) {
	switch evt.Kind {
	case unitbroadcaster.EventStatus:
		lib.handleStatusEvent(evt.Status)
	case unitbroadcaster.EventRescanRequest:
		if err := lib.Rescan(); err != nil && lib.log != nil {
			lib.log.WithError(err).Error("rescan aborted by invariant error")
		}
	}

	lib.manager.ProcessMessage(evt)
}

func (lib *Library) handleStatusEvent(se unitbroadcaster.StatusEvent) {
	name, status := se.Name, se.Status

	switch {
	case status.IsLoadStarted():
		lib.processLoadOrUpdate(name, status)

	case status.IsUpdateStarted():
		if name.Kind() == unit.KindTest {
			// original_source/src/unitlibrary.rs's UpdateStarted dispatch
			// table omits Test: a changed .test file only takes effect on
			// the next full load, never a live update. Preserved verbatim.
			return
		}
		lib.processLoadOrUpdate(name, status)

	case status.IsUnloadStarted():
		lib.mu.Lock()
		lib.unitStatus[name] = status
		lib.mu.Unlock()
		lib.markDirty(name)
	}
}

func (lib *Library) processLoadOrUpdate(name unit.Name, status unit.Status) {
	path := status.Path()

	switch name.Kind() {
	case unit.KindJig:
		processLoad(lib, name, path, status, lib.jigDescriptions, unit.KindJig, jig.FromFile)
	case unit.KindInterface:
		processLoad(lib, name, path, status, lib.interfaceDescriptions, unit.KindInterface,
			func(n unit.Name, f *unitfile.File) (*interfaceunit.Description, error) {
				return interfaceunit.FromFile(n, path, f)
			})
	case unit.KindLogger:
		processLoad(lib, name, path, status, lib.loggerDescriptions, unit.KindLogger, loggerunit.FromFile)
	case unit.KindTrigger:
		processLoad(lib, name, path, status, lib.triggerDescriptions, unit.KindTrigger, triggerunit.FromFile)
	case unit.KindTest:
		processLoad(lib, name, path, status, lib.testDescriptions, unit.KindTest, testunit.FromFile)
	case unit.KindScenario:
		processLoad(lib, name, path, status, lib.scenarioDescriptions, unit.KindScenario, scenario.FromFile)
	}
}

// processLoad ports the process_if! macro: mark dirty, parse the unit file,
// record a LoadFailed status on any error, and otherwise insert the parsed
// description and keep the incoming status (LoadStarted/UpdateStarted) as
// the unit's recorded state.
func processLoad[T any](
	lib *Library, name unit.Name, path string, status unit.Status,
	store map[unit.Name]*T, kind unit.Kind,
	parse func(unit.Name, *unitfile.File) (*T, error),
) {
	lib.markDirty(name)

	file, err := unitfile.Parse(path)
	if err != nil {
		lib.failLoad(name, err)
		return
	}

	desc, err := parse(name, file)
	if err != nil {
		lib.failLoad(name, err)
		return
	}

	lib.mu.Lock()
	store[name] = desc
	lib.unitStatus[name] = status
	count := len(store)
	lib.mu.Unlock()

	lib.broadcaster.Broadcast(unitbroadcaster.NewCategory(kind,
		fmt.Sprintf("Number of units on disk: %d", count)))
}

func (lib *Library) failLoad(name unit.Name, err error) {
	failStatus := unit.LoadFailed(err.Error())
	lib.mu.Lock()
	lib.unitStatus[name] = failStatus
	lib.mu.Unlock()
	lib.broadcaster.Broadcast(unitbroadcaster.NewStatus(name, failStatus))
}
