package unitlibrary

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-bristow/exclave/internal/config"
	"github.com/sam-bristow/exclave/internal/logging"
	"github.com/sam-bristow/exclave/internal/unit"
	"github.com/sam-bristow/exclave/internal/unitbroadcaster"
	"github.com/sam-bristow/exclave/internal/unitmanager"
)

func writeUnit(t *testing.T, dir, filename, body string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestLibrary(t *testing.T) (*Library, *unitmanager.Manager, unitbroadcaster.Broadcaster) {
	t.Helper()
	cfg := &config.Config{TerminateTimeoutMS: 1000, ConfigDir: t.TempDir()}
	log := logging.NewLogger(cfg)
	broadcaster := unitbroadcaster.New()
	manager := unitmanager.New(cfg, broadcaster, log)
	lib := New(broadcaster, manager, log)
	return lib, manager, broadcaster
}

func TestRescanLoadsAndActivatesJig(t *testing.T) {
	dir := t.TempDir()
	jigPath := writeUnit(t, dir, "main.jig", "[Jig]\nName=Main\n")

	lib, manager, _ := newTestLibrary(t)

	jigName := unit.NewName(unit.KindJig, "main")
	lib.ProcessMessage(unitbroadcaster.NewStatus(jigName, unit.LoadStarted(jigPath)))

	lib.Rescan()

	assert.True(t, manager.JigIsLoaded(jigName))
	require.NotNil(t, manager.DefaultJig())
	assert.Equal(t, jigName, *manager.DefaultJig())
}

func TestRescanDropsIncompatibleInterfaceOnJigSwitch(t *testing.T) {
	dir := t.TempDir()
	jigAPath := writeUnit(t, dir, "a.jig", "[Jig]\nName=A\n")
	jigBPath := writeUnit(t, dir, "b.jig", "[Jig]\nName=B\n")
	ifacePath := writeUnit(t, dir, "shell.interface",
		"[Interface]\nJigs=a\nExecStart=/bin/true\n")

	lib, manager, _ := newTestLibrary(t)

	jigA := unit.NewName(unit.KindJig, "a")
	jigB := unit.NewName(unit.KindJig, "b")
	iface := unit.NewName(unit.KindInterface, "shell")

	lib.ProcessMessage(unitbroadcaster.NewStatus(jigA, unit.LoadStarted(jigAPath)))
	lib.ProcessMessage(unitbroadcaster.NewStatus(iface, unit.LoadStarted(ifacePath)))
	lib.Rescan()

	assert.True(t, manager.JigIsLoaded(jigA))

	lib.ProcessMessage(unitbroadcaster.NewStatus(jigB, unit.LoadStarted(jigBPath)))
	lib.Rescan()

	assert.True(t, manager.JigIsLoaded(jigB))
	assert.False(t, manager.JigIsLoaded(jigA))
}

func TestRescanFailsIncompatibleInterfaceWithNoJigLoaded(t *testing.T) {
	dir := t.TempDir()
	ifacePath := writeUnit(t, dir, "op.interface",
		"[Interface]\nJigs=other\nExecStart=/bin/true\n")

	lib, manager, _ := newTestLibrary(t)
	iface := unit.NewName(unit.KindInterface, "op")

	lib.ProcessMessage(unitbroadcaster.NewStatus(iface, unit.LoadStarted(ifacePath)))
	lib.Rescan()

	status := lib.Status(iface)
	assert.True(t, status.IsLoadFailed())

	jigOther := unit.NewName(unit.KindJig, "other")
	assert.False(t, manager.JigIsLoaded(jigOther))
}

func TestRescanIsIdempotentWithNoNewEvents(t *testing.T) {
	dir := t.TempDir()
	jigPath := writeUnit(t, dir, "main.jig", "[Jig]\nName=Main\n")

	lib, manager, _ := newTestLibrary(t)
	jigName := unit.NewName(unit.KindJig, "main")

	lib.ProcessMessage(unitbroadcaster.NewStatus(jigName, unit.LoadStarted(jigPath)))
	lib.Rescan()
	lib.Rescan()
	lib.Rescan()

	assert.True(t, manager.JigIsLoaded(jigName))
}

func TestRescanBracketsWithStartAndFinish(t *testing.T) {
	lib, _, broadcaster := newTestLibrary(t)

	var kinds []unitbroadcaster.EventKind
	unsub := broadcaster.Subscribe(func(e unitbroadcaster.Event) {
		kinds = append(kinds, e.Kind)
	})
	defer unsub()

	lib.Rescan()

	require.Eventually(t, func() bool { return len(kinds) >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, unitbroadcaster.EventRescanStart, kinds[0])
	assert.Equal(t, unitbroadcaster.EventRescanFinish, kinds[len(kinds)-1])
}
