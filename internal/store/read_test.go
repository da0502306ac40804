package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadUnit_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, found, err := s.ReadUnit(testCtx(t), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadState_NeverCommitted(t *testing.T) {
	s := createTestStore(t)
	createTestUnit(t, s, "h1", 1)

	snap, found, err := s.ReadState(testCtx(t), "h1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestReadInvocations_Ordering(t *testing.T) {
	s := createTestStore(t)
	createTestUnit(t, s, "h1", 1)

	// Same seq for b and a: id breaks the tie byte-wise.
	for _, inv := range []Invocation{
		createTestInvocation("c", "h1", "inc", 5),
		createTestInvocation("b", "h1", "inc", 3),
		createTestInvocation("a", "h1", "inc", 3),
		createTestInvocation("B", "h1", "inc", 3),
	} {
		_, err := s.CommitInvocation(testCtx(t), inv, nil, map[string]string{})
		require.NoError(t, err)
	}

	invs, err := s.ReadInvocations(testCtx(t), "h1")
	require.NoError(t, err)
	ids := make([]string, len(invs))
	for i, inv := range invs {
		ids[i] = inv.ID
	}
	assert.Equal(t, []string{"B", "a", "b", "c"}, ids)
}

func TestReadInvocations_Empty(t *testing.T) {
	s := createTestStore(t)

	invs, err := s.ReadInvocations(testCtx(t), "h1")
	require.NoError(t, err)
	assert.NotNil(t, invs)
	assert.Empty(t, invs)
}

func TestReadEvents_Filter(t *testing.T) {
	s := createTestStore(t)
	createTestUnit(t, s, "h1", 1)
	createTestUnit(t, s, "h2", 2)

	commits := []struct {
		inv    Invocation
		events []Event
	}{
		{createTestInvocation("i1", "h1", "set", 3), []Event{{Name: "Set", Values: []string{"1"}}}},
		{createTestInvocation("i2", "h1", "inc", 4), []Event{{Name: "Inc"}, {Name: "Set", Values: []string{"2"}}}},
		{createTestInvocation("i3", "h2", "set", 5), []Event{{Name: "Set", Values: []string{"x"}}}},
	}
	for _, c := range commits {
		_, err := s.CommitInvocation(testCtx(t), c.inv, c.events, map[string]string{})
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"i1/Set", "i2/Inc", "i2/Set", "i3/Set"}},
		{"by unit", EventFilter{UnitHash: "h1"}, []string{"i1/Set", "i2/Inc", "i2/Set"}},
		{"by name", EventFilter{Name: "Set"}, []string{"i1/Set", "i2/Set", "i3/Set"}},
		{"by method", EventFilter{Method: "inc"}, []string{"i2/Inc", "i2/Set"}},
		{"combined", EventFilter{UnitHash: "h2", Name: "Set"}, []string{"i3/Set"}},
		{"no match", EventFilter{Name: "Nope"}, []string{}},
		{"injection is bound", EventFilter{Name: "x' OR '1'='1"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evs, err := s.ReadEvents(testCtx(t), tt.filter)
			require.NoError(t, err)
			got := []string{}
			for _, ev := range evs {
				got = append(got, ev.InvocationID+"/"+ev.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMaxSeq(t *testing.T) {
	s := createTestStore(t)

	seq, err := s.MaxSeq(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	createTestUnit(t, s, "h1", 4)
	seq, err = s.MaxSeq(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)

	_, err = s.CommitInvocation(testCtx(t), createTestInvocation("i1", "h1", "inc", 9), nil, map[string]string{})
	require.NoError(t, err)
	seq, err = s.MaxSeq(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}

func TestReadLog(t *testing.T) {
	s := createTestStore(t)
	createTestUnit(t, s, "h1", 1)

	_, err := s.CommitInvocation(testCtx(t), createTestInvocation("i1", "h1", "inc", 2),
		[]Event{{Name: "Inc", Values: []string{"1"}}}, map[string]string{"count": "1"})
	require.NoError(t, err)
	fault := createTestInvocation("i2", "h1", "boom", 3)
	fault.Status = StatusFault
	_, err = s.CommitInvocation(testCtx(t), fault, nil, nil)
	require.NoError(t, err)

	log, found, err := s.ReadLog(testCtx(t), "h1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Counter", log.Unit.Protocol)
	assert.Len(t, log.Invocations, 2)
	assert.Equal(t, 1, log.OK)
	assert.Equal(t, 1, log.Faulted)
	assert.Equal(t, int64(3), log.LastSeq)
	assert.Equal(t, map[string]string{"count": "1"}, log.Snapshot)
	require.Len(t, log.Events["i1"], 1)
	assert.Empty(t, log.Events["i2"])

	_, found, err = s.ReadLog(testCtx(t), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}
