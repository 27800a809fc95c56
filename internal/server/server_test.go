package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/chaz8081/gatt-peripheral/internal/bluez"
	"github.com/chaz8081/gatt-peripheral/internal/gatt"
	"github.com/chaz8081/gatt-peripheral/internal/peripheral"
)

const (
	methodGetManagedObjects       = "org.freedesktop.DBus.ObjectManager.GetManagedObjects"
	methodRegisterApplication     = "org.bluez.GattManager1.RegisterApplication"
	methodRegisterAdvertisement   = "org.bluez.LEAdvertisingManager1.RegisterAdvertisement"
	methodUnregisterAdvertisement = "org.bluez.LEAdvertisingManager1.UnregisterAdvertisement"
)

// fakeBus is a BlueZ stand-in: it answers adapter discovery, replies to
// registrations with canned errors and records everything else.
type fakeBus struct {
	mu sync.Mutex

	objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	replies map[string]error // Go replies by method
	held    map[string]bool  // Go calls that never get a reply

	registered []string
	calls      []string
	tables     map[dbus.ObjectPath]map[string]interface{}
	emitted    chan []byte
}

func newFakeBus(adapters ...string) *fakeBus {
	objects := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{}
	for _, a := range adapters {
		objects[dbus.ObjectPath(a)] = map[string]map[string]dbus.Variant{
			bluez.AdapterInterface:            {},
			bluez.GattManagerInterface:        {},
			bluez.AdvertisingManagerInterface: {},
		}
	}
	return &fakeBus{
		objects: objects,
		replies: map[string]error{},
		held:    map[string]bool{},
		tables:  map[dbus.ObjectPath]map[string]interface{}{},
		emitted: make(chan []byte, 16),
	}
}

func (b *fakeBus) Call(_ context.Context, path dbus.ObjectPath, method string, out interface{}, _ ...interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, string(path)+" "+method)
	if method == methodGetManagedObjects {
		*out.(*map[dbus.ObjectPath]map[string]map[string]dbus.Variant) = b.objects
	}
	return nil
}

func (b *fakeBus) Go(path dbus.ObjectPath, method string, args ...interface{}) <-chan error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registered = append(b.registered, string(path)+" "+method)
	errc := make(chan error, 1)
	if !b.held[method] {
		errc <- b.replies[method]
	}
	return errc
}

func (b *fakeBus) Export(interface{}, dbus.ObjectPath, string) error { return nil }

func (b *fakeBus) ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables[path] = methods
	return nil
}

func (b *fakeBus) Emit(_ dbus.ObjectPath, _ string, values ...interface{}) error {
	changed := values[1].(map[string]dbus.Variant)
	b.emitted <- changed["Value"].Value().([]byte)
	return nil
}

func (b *fakeBus) method(path dbus.ObjectPath, name string) interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tables[path][name]
}

func (b *fakeBus) called(method string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.calls {
		if c == "/org/bluez/hci0 "+method {
			return true
		}
	}
	return false
}

var _ bluez.Bus = (*fakeBus)(nil)

func testConfig() Config {
	return Config{
		LocalName:      peripheral.LocalName,
		IncludeTxPower: true,
		NotifyInterval: 10 * time.Millisecond,
	}
}

func runAsync(ctx context.Context, s *Server) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	return errc
}

func wait(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunAdapterNotFound(t *testing.T) {
	bus := newFakeBus()
	err := New(bus, testConfig()).Run(context.Background())
	if !errors.Is(err, bluez.ErrAdapterNotFound) {
		t.Fatalf("Run() = %v, want ErrAdapterNotFound", err)
	}
	if len(bus.tables) != 0 || len(bus.registered) != 0 {
		t.Error("nothing should be exported or registered without an adapter")
	}
}

func TestRunApplicationRegistrationFails(t *testing.T) {
	bus := newFakeBus("/org/bluez/hci0")
	bus.replies[methodRegisterApplication] = errors.New("org.bluez.Error.AlreadyExists")
	// the advertisement reply never arrives; the application failure alone
	// must end Run
	bus.held[methodRegisterAdvertisement] = true

	err := wait(t, runAsync(context.Background(), New(bus, testConfig())))
	if !errors.Is(err, bluez.ErrRegistrationFailed) {
		t.Fatalf("Run() = %v, want ErrRegistrationFailed", err)
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	if len(bus.registered) != 2 {
		t.Errorf("registered = %v, want both registrations issued", bus.registered)
	}
}

func TestRunAdvertisementRegistrationFails(t *testing.T) {
	bus := newFakeBus("/org/bluez/hci0")
	bus.replies[methodRegisterAdvertisement] = errors.New("org.bluez.Error.NotPermitted: Maximum advertisements reached")

	err := wait(t, runAsync(context.Background(), New(bus, testConfig())))
	if !errors.Is(err, bluez.ErrRegistrationFailed) {
		t.Fatalf("Run() = %v, want ErrRegistrationFailed", err)
	}
}

func TestRunInterruptReleasesAdvertisement(t *testing.T) {
	bus := newFakeBus("/org/bluez/hci0")
	s := New(bus, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)

	// wait for both registrations to be issued
	deadline := time.Now().Add(time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.registered)
		bus.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("registrations not issued")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := wait(t, errc); err != nil {
		t.Fatalf("Run() = %v, want nil on interrupt", err)
	}
	if !s.adv.Released() {
		t.Error("advertisement not released on interrupt")
	}
	if !bus.called(methodUnregisterAdvertisement) {
		t.Error("advertisement not unregistered on interrupt")
	}
	want := []string{
		"/org/bluez/hci0 " + methodRegisterApplication,
		"/org/bluez/hci0 " + methodRegisterAdvertisement,
	}
	for i, r := range bus.registered {
		if r != want[i] {
			t.Errorf("registered[%d] = %q, want %q", i, r, want[i])
		}
	}
}

func TestRunPreferredAdapter(t *testing.T) {
	bus := newFakeBus("/org/bluez/hci0", "/org/bluez/hci1")
	cfg := testConfig()
	cfg.Adapter = "hci1"
	s := New(bus, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, s)
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := wait(t, errc); err != nil {
		t.Fatal(err)
	}
	if s.adapter != "/org/bluez/hci1" {
		t.Errorf("adapter = %q, want /org/bluez/hci1", s.adapter)
	}
}

func TestRunServesCharacteristics(t *testing.T) {
	bus := newFakeBus("/org/bluez/hci0")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := runAsync(ctx, New(bus, testConfig()))

	base := gatt.BasePath + "/service0"
	notifyPath := base + "/char0"
	writePath := base + "/char2"
	readPath := base + "/char1"

	var start func() *dbus.Error
	deadline := time.Now().Add(time.Second)
	for start == nil {
		if m, ok := bus.method(notifyPath, "StartNotify").(func() *dbus.Error); ok {
			start = m
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("characteristics not exported")
		}
		time.Sleep(time.Millisecond)
	}

	write := bus.method(writePath, "WriteValue").(func([]byte, map[string]dbus.Variant) *dbus.Error)
	read := bus.method(readPath, "ReadValue").(func(map[string]dbus.Variant) ([]byte, *dbus.Error))

	if derr := write([]byte{0x33}, nil); derr != nil {
		t.Fatalf("WriteValue: %v", derr)
	}
	got, derr := read(nil)
	if derr != nil || len(got) != 1 || got[0] != 0x33 {
		t.Errorf("ReadValue = %v, %v, want [0x33]", got, derr)
	}
	if derr := write([]byte{1, 2}, nil); derr == nil || derr.Name != bluez.ErrorInvalidValueLength {
		t.Errorf("WriteValue(2 bytes) = %v", derr)
	}

	if derr := start(); derr != nil {
		t.Fatalf("StartNotify: %v", derr)
	}
	for want := byte(1); want <= 3; want++ {
		select {
		case v := <-bus.emitted:
			if len(v) != 1 || v[0] != want {
				t.Errorf("notification = %v, want [%d]", v, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("no notification %d", want)
		}
	}

	cancel()
	if err := wait(t, errc); err != nil {
		t.Fatal(err)
	}
}
