package unitlibrary

import (
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitbroadcaster"
	"github.com/sam-bristow/exclave/internal/unitmanager"
	"github.com/sam-bristow/exclave/internal/units/interfaceunit"
	"github.com/sam-bristow/exclave/internal/units/jig"
	"github.com/sam-bristow/exclave/internal/units/loggerunit"
	"github.com/sam-bristow/exclave/internal/units/scenario"
	"github.com/sam-bristow/exclave/internal/units/testunit"
	"github.com/sam-bristow/exclave/internal/units/triggerunit"
)

// Rescan runs the full multi-phase reconciliation described in
// original_source/src/unitlibrary.rs's UnitLibrary::rescan: jig-driven
// invalidation, test-driven scenario invalidation, eviction of anything
// marked for removal, a load pass per kind, a select-then-activate sweep
// for the four instantiable kinds, and a final defaults refresh. Bracketed
// by RescanStart/RescanFinish so external observers always see a matched
// pair, even when a phase below aborts the rescan early.
//
// §4.6/§7: an Invariant error means a programmer bug, not a unit-authoring
// mistake, so it is fail-fast — the rescan aborts immediately instead of
// recording LoadFailed and carrying on to later phases. Rescan reports the
// error to the caller (logged, not swallowed) after still broadcasting
// RescanFinish.
func (lib *Library) Rescan() error {
	lib.broadcaster.Broadcast(unitbroadcaster.RescanStart())

	err := lib.rescanPhases()

	lib.broadcaster.Broadcast(unitbroadcaster.RescanFinish())

	return err
}

func (lib *Library) rescanPhases() error {
	lib.invalidateJigDependents()
	lib.invalidateTestDependentScenarios()
	lib.evictRemoved()

	if err := loadPhase(lib, lib.dirtyJigs, lib.jigDescriptions, asLoadableJig, lib.manager.LoadJig); err != nil {
		return err
	}
	if err := loadPhase(lib, lib.dirtyInterfaces, lib.interfaceDescriptions, asLoadableInterface, lib.manager.LoadInterface); err != nil {
		return err
	}
	if err := loadPhase(lib, lib.dirtyLoggers, lib.loggerDescriptions, asLoadableLogger, lib.manager.LoadLogger); err != nil {
		return err
	}
	if err := loadPhase(lib, lib.dirtyTriggers, lib.triggerDescriptions, asLoadableTrigger, lib.manager.LoadTrigger); err != nil {
		return err
	}

	// Tests and Scenarios are pure data (§4.6 phases 8/9): loaded, but never
	// select/activated since there is no running instance behind them.
	if err := loadDataPhase(lib, lib.dirtyTests, lib.testDescriptions, func(d *testunit.Description) error {
		return lib.manager.LoadTest(d)
	}); err != nil {
		return err
	}
	if err := loadDataPhase(lib, lib.dirtyScenarios, lib.scenarioDescriptions, func(d *scenario.Description) error {
		return lib.manager.LoadScenario(d)
	}); err != nil {
		return err
	}

	selectAndActivatePhase(lib, lib.dirtyJigs)
	selectAndActivatePhase(lib, lib.dirtyInterfaces)
	selectAndActivatePhase(lib, lib.dirtyLoggers)
	selectAndActivatePhase(lib, lib.dirtyTriggers)

	lib.manager.RefreshDefaults()

	return nil
}

func asLoadableJig(d *jig.Description) unitmanager.LoadableDescription { return d }
func asLoadableInterface(d *interfaceunit.Description) unitmanager.LoadableDescription {
	return d
}
func asLoadableLogger(d *loggerunit.Description) unitmanager.LoadableDescription { return d }
func asLoadableTrigger(d *triggerunit.Description) unitmanager.LoadableDescription {
	return d
}

// invalidateJigDependents implements rescan phase 1: every kind that
// carries a Jigs= compatibility list gets marked dirty when a jig it
// supports is itself dirty, so the load phases below re-evaluate them.
func (lib *Library) invalidateJigDependents() {
	lib.mu.Lock()
	jigIDs := make([]unit.Name, 0, len(lib.dirtyJigs))
	for id := range lib.dirtyJigs {
		jigIDs = append(jigIDs, id)
	}
	lib.mu.Unlock()

	for _, jigName := range jigIDs {
		lib.mu.Lock()
		for name, d := range lib.testDescriptions {
			if d.SupportsJig(jigName) {
				lib.dirtyTests[name] = struct{}{}
			}
		}
		for name, d := range lib.scenarioDescriptions {
			if d.SupportsJig(jigName) {
				lib.dirtyScenarios[name] = struct{}{}
			}
		}
		for name, d := range lib.interfaceDescriptions {
			if d.SupportsJig(jigName) {
				lib.dirtyInterfaces[name] = struct{}{}
			}
		}
		for name, d := range lib.loggerDescriptions {
			if d.SupportsJig(jigName) {
				lib.dirtyLoggers[name] = struct{}{}
			}
		}
		for name, d := range lib.triggerDescriptions {
			if d.SupportsJig(jigName) {
				lib.dirtyTriggers[name] = struct{}{}
			}
		}
		lib.mu.Unlock()
	}
}

// invalidateTestDependentScenarios implements rescan phase 2: a dirty test
// marks every currently-loaded scenario that composes it as dirty too, so
// scenario dependency graphs are re-evaluated. Deliberately consults the
// manager's already-loaded scenarios, not this rescan's freshly-parsed
// descriptions, since the load phase for scenarios hasn't run yet.
func (lib *Library) invalidateTestDependentScenarios() {
	lib.mu.Lock()
	testIDs := make([]unit.Name, 0, len(lib.dirtyTests))
	for id := range lib.dirtyTests {
		testIDs = append(testIDs, id)
	}
	lib.mu.Unlock()

	scenarios := lib.manager.GetScenarios()
	for _, testName := range testIDs {
		for name, s := range scenarios {
			if s.UsesTest(testName) {
				lib.mu.Lock()
				lib.dirtyScenarios[name] = struct{}{}
				lib.mu.Unlock()
			}
		}
	}
}

// evictRemoved implements rescan phase 3: any dirty unit whose recorded
// status is UnloadStarted or LoadFailed is dropped from its description
// store, unloaded from the manager, and removed from both its dirty set
// and the status table.
func (lib *Library) evictRemoved() {
	evictPhase(lib, lib.dirtyJigs, lib.jigDescriptions)
	evictPhase(lib, lib.dirtyTests, lib.testDescriptions)
	evictPhase(lib, lib.dirtyScenarios, lib.scenarioDescriptions)
	evictPhase(lib, lib.dirtyInterfaces, lib.interfaceDescriptions)
	evictPhase(lib, lib.dirtyLoggers, lib.loggerDescriptions)
	evictPhase(lib, lib.dirtyTriggers, lib.triggerDescriptions)
}

func evictPhase[T any](lib *Library, dirty map[unit.Name]struct{}, descriptions map[unit.Name]*T) {
	lib.mu.Lock()
	ids := make([]unit.Name, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	lib.mu.Unlock()

	for _, id := range ids {
		lib.mu.Lock()
		status := lib.unitStatus[id]
		lib.mu.Unlock()

		if !status.IsUnloadStarted() && !status.IsLoadFailed() {
			continue
		}

		lib.mu.Lock()
		delete(descriptions, id)
		delete(dirty, id)
		delete(lib.unitStatus, id)
		lib.mu.Unlock()

		lib.manager.Unload(id)
	}
}

// loadPhase implements load_units_for_activation!: every dirty id with a
// live status and description is unloaded then reloaded via load; a
// missing status/description or a load error drops the id from dirty
// (without touching the status table for the former, and recording
// LoadFailed for the latter) so the later select/activate sweep never sees
// it. An unexpected status is an Invariant error (§7: a programmer bug, not
// a unit-authoring mistake) and aborts the phase immediately, leaving
// whatever ids haven't been visited yet untouched for the caller to stop
// the whole rescan on.
func loadPhase[T any](
	lib *Library,
	dirty map[unit.Name]struct{},
	descriptions map[unit.Name]*T,
	toLoadable func(*T) unitmanager.LoadableDescription,
	load func(unitmanager.LoadableDescription) error,
) error {
	lib.mu.Lock()
	ids := make([]unit.Name, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	lib.mu.Unlock()

	var toRemove []unit.Name
	for _, id := range ids {
		lib.mu.Lock()
		status, haveStatus := lib.unitStatus[id]
		desc, haveDesc := descriptions[id]
		lib.mu.Unlock()

		if !haveStatus || !haveDesc {
			toRemove = append(toRemove, id)
			continue
		}

		if !status.IsLoadOrUpdate() {
			lib.mu.Lock()
			for _, rid := range toRemove {
				delete(dirty, rid)
			}
			lib.mu.Unlock()
			return unit.InvariantError("unexpected status for dirty unit %s: %s", id, status)
		}

		lib.manager.Unload(id)

		if loadErr := load(toLoadable(desc)); loadErr != nil {
			lib.mu.Lock()
			lib.unitStatus[id] = unit.LoadFailed(loadErr.Error())
			lib.mu.Unlock()
			toRemove = append(toRemove, id)
		}
	}

	lib.mu.Lock()
	for _, id := range toRemove {
		delete(dirty, id)
	}
	lib.mu.Unlock()

	return nil
}

// loadDataPhase is loadPhase's counterpart for Test/Scenario (load_units!):
// identical per-id load logic, but the whole dirty set is cleared
// afterward since these kinds have no select/activate sweep of their own.
// Like loadPhase, an unexpected status is an Invariant error and aborts the
// phase immediately rather than being skipped.
func loadDataPhase[T any](lib *Library, dirty map[unit.Name]struct{}, descriptions map[unit.Name]*T, load func(*T) error) error {
	lib.mu.Lock()
	ids := make([]unit.Name, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	lib.mu.Unlock()

	var done []unit.Name
	for _, id := range ids {
		lib.mu.Lock()
		status, haveStatus := lib.unitStatus[id]
		desc, haveDesc := descriptions[id]
		lib.mu.Unlock()

		if !haveStatus || !haveDesc {
			done = append(done, id)
			continue
		}

		if !status.IsLoadOrUpdate() {
			lib.mu.Lock()
			for _, did := range done {
				delete(dirty, did)
			}
			lib.mu.Unlock()
			return unit.InvariantError("unexpected status for dirty unit %s: %s", id, status)
		}

		lib.manager.Unload(id)

		if err := load(desc); err != nil {
			lib.mu.Lock()
			lib.unitStatus[id] = unit.LoadFailed(err.Error())
			lib.mu.Unlock()
		}
		done = append(done, id)
	}

	lib.mu.Lock()
	for _, id := range done {
		delete(dirty, id)
	}
	lib.mu.Unlock()

	return nil
}

// selectAndActivatePhase implements select_and_activate_units!: every
// remaining dirty id (everything the load phase didn't already drop) is
// selected then activated, and the dirty set is cleared unconditionally
// afterward regardless of individual failures — a unit whose select or
// activate fails stays loaded in the manager but inactive, with LoadFailed
// recorded in the status table. Later rescans do not retry it; if it is
// marked dirty again, the eviction phase removes it.
func selectAndActivatePhase(lib *Library, dirty map[unit.Name]struct{}) {
	lib.mu.Lock()
	ids := make([]unit.Name, 0, len(dirty))
	for id := range dirty {
		ids = append(ids, id)
	}
	lib.mu.Unlock()

	for _, id := range ids {
		if err := lib.manager.Select(id); err != nil {
			lib.mu.Lock()
			lib.unitStatus[id] = unit.LoadFailed(err.Error())
			lib.mu.Unlock()
			lib.broadcaster.Broadcast(unitbroadcaster.NewStatus(id, unit.LoadFailed(err.Error())))
			if lib.log != nil {
				lib.log.WithError(err).Warnf("selecting %s", id)
			}
			continue
		}
		if err := lib.manager.Activate(id); err != nil {
			lib.mu.Lock()
			lib.unitStatus[id] = unit.LoadFailed(err.Error())
			lib.mu.Unlock()
			lib.broadcaster.Broadcast(unitbroadcaster.NewStatus(id, unit.LoadFailed(err.Error())))
			if lib.log != nil {
				lib.log.WithError(err).Warnf("activating %s", id)
			}
		}
	}

	lib.mu.Lock()
	for id := range dirty {
		delete(dirty, id)
	}
	lib.mu.Unlock()
}
