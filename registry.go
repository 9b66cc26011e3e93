package ndxstore

import (
	"runtime"
	"sync"
)

// openStores is the process-wide registry of currently open stores, keyed
// by name. It serves two purposes: detecting a second Open on a file that
// is already open in this process (spec.md §8 scenario 1), and
// giving runtime.SetFinalizer something to consult so a Store whose owner
// dropped it without calling Close still gets its file descriptor
// released (spec.md §5, §9 — the Go analogue of the source's destructor
// registry, since Go has no deterministic destructors).
var (
	registryMu sync.Mutex
	openStores = map[string]*Store{}
)

func checkNotAlreadyOpen(name string) error {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := openStores[name]; ok {
		return newError(CodeDatabaseAlreadyOpened, "ndxstore: %s is already open in this process", name)
	}
	return nil
}

func registerStore(s *Store) {
	registryMu.Lock()
	openStores[s.name] = s
	registryMu.Unlock()

	runtime.SetFinalizer(s, finalizeStore)
}

func unregisterStore(s *Store) {
	registryMu.Lock()
	if openStores[s.name] == s {
		delete(openStores, s.name)
	}
	registryMu.Unlock()
}

// finalizeStore is a best-effort backstop: it runs if and only if the
// garbage collector determines a Store is unreachable before Close was
// called. It cannot report an error to anyone, so it only tries to flush
// and release the file descriptor.
func finalizeStore(s *Store) {
	if s.file != nil {
		_ = s.file.Close()
	}
	unregisterStore(s)
}
