package bluez

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
)

type exported struct {
	value   interface{}
	methods map[string]interface{}
}

type emitted struct {
	path   dbus.ObjectPath
	name   string
	values []interface{}
}

type goCall struct {
	path   dbus.ObjectPath
	method string
	args   []interface{}
	errc   chan error
}

// mockBus implements Bus for testing.
type mockBus struct {
	mu sync.Mutex

	objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	callErr error
	calls   []string
	args    [][]interface{}

	exports  map[dbus.ObjectPath]map[string]exported
	emits    []emitted
	emitErr  error
	goCalls  chan goCall
	exportOn string // fail Export for this interface
}

func newMockBus() *mockBus {
	return &mockBus{
		exports: make(map[dbus.ObjectPath]map[string]exported),
		goCalls: make(chan goCall, 8),
	}
}

func (m *mockBus) Call(_ context.Context, path dbus.ObjectPath, method string, out interface{}, args ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("%s %s", path, method))
	m.args = append(m.args, args)
	if m.callErr != nil {
		return m.callErr
	}
	if method == getManagedObjects {
		if p, ok := out.(*map[dbus.ObjectPath]map[string]map[string]dbus.Variant); ok {
			*p = m.objects
		}
	}
	return nil
}

func (m *mockBus) Go(path dbus.ObjectPath, method string, args ...interface{}) <-chan error {
	errc := make(chan error, 1)
	m.goCalls <- goCall{path: path, method: method, args: args, errc: errc}
	return errc
}

func (m *mockBus) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	return m.record(path, iface, exported{value: v})
}

func (m *mockBus) ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error {
	return m.record(path, iface, exported{methods: methods})
}

func (m *mockBus) record(path dbus.ObjectPath, iface string, e exported) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iface == m.exportOn {
		return fmt.Errorf("export %s refused", iface)
	}
	if m.exports[path] == nil {
		m.exports[path] = make(map[string]exported)
	}
	m.exports[path][iface] = e
	return nil
}

func (m *mockBus) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emits = append(m.emits, emitted{path: path, name: name, values: values})
	return m.emitErr
}

func (m *mockBus) exportedAt(path dbus.ObjectPath, iface string) (exported, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.exports[path][iface]
	return e, ok
}

// Compile-time check that mockBus implements Bus.
var _ Bus = (*mockBus)(nil)

// inline runs functions immediately, standing in for the event loop.
type inline struct {
	err error
}

func (i inline) Invoke(fn func()) error {
	if i.err != nil {
		return i.err
	}
	fn()
	return nil
}

// queue collects posted functions so tests can run them explicitly.
type queue struct {
	fns     chan func()
	stopped bool
}

func newQueue() *queue {
	return &queue{fns: make(chan func(), 8)}
}

func (q *queue) Post(fn func()) bool {
	if q.stopped {
		return false
	}
	q.fns <- fn
	return true
}
