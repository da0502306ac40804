package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cardity-org/cardity-core/internal/testutil"
)

const counterSource = `
protocol Counter {
  version: "1.0";
  owner: "doge1owner";

  state {
    count: int = 0;
    label: string;
    balances: map<address, int>;
  }

  event Changed(value: int);

  method inc() {
    state.count = state.count + 1;
    emit Changed(state.count);
  }

  method get() {
    returns: int state.count;
  }

  method credit(who, amount: int) {
    state.balances[params.who] = state.balances[params.who] + params.amount;
  }

  method balance(who) {
    returns: int state.balances[params.who];
  }

  method label() {
    return state.label;
  }
}
`

// loadSource compiles src and loads the resulting unit.
func loadSource(t *testing.T, src string) *Unit {
	t.Helper()
	u, err := Load(testutil.Compile(t, src).Document)
	require.NoError(t, err)
	return u
}

// invoke runs method and requires it to succeed.
func invoke(t *testing.T, u *Unit, st *State, log *EventLog, method string, args ...string) string {
	t.Helper()
	out, err := Invoke(u, st, log, method, args, nil)
	require.NoError(t, err)
	return out
}
