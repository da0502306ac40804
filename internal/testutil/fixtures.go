package testutil

import (
	"path/filepath"
	"testing"

	"github.com/cardity-org/cardity-core/internal/compiler"
	"github.com/cardity-org/cardity-core/internal/store"
)

// CounterSource is a small protocol exercising state, maps, events and returns.
const CounterSource = `protocol Counter {
  version: "1.0";
  owner: "doge1owner";

  state {
    count: int = 0;
    balances: map<address, int>;
  }

  event Changed(value: int);

  method inc() {
    state.count = state.count + 1;
    emit Changed(state.count);
  }

  method add(n: int) {
    state.count = state.count + params.n;
    emit Changed(state.count);
  }

  method credit(who: address, amount: int) {
    state.balances[params.who] = state.balances[params.who] + params.amount;
  }

  method get() {
    returns: int state.count;
  }
}
`

// Compile compiles src and fails the test on any error.
func Compile(t *testing.T, src string) *compiler.Result {
	t.Helper()
	res, err := compiler.Compile("test.car", []byte(src))
	if err != nil {
		t.Fatalf("Compile() failed: %v", err)
	}
	return res
}

// OpenStore opens a store in a temp directory, closed at test cleanup.
func OpenStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
