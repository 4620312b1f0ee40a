package deadlock

import (
	"testing"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blocked(source, waitingFor string) bus.Message {
	return bus.NewMessage(bus.TypeBlocked, source, &bus.BlockedPayload{WaitingFor: waitingFor})
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		messages []bus.Message
		statuses map[string]bus.WorkerStatus
		want     []string
	}{
		{
			name:     "three node cycle",
			messages: []bus.Message{blocked("A", "B"), blocked("B", "C"), blocked("C", "A")},
			want:     []string{"A", "B", "C"},
		},
		{
			name:     "acyclic chain",
			messages: []bus.Message{blocked("A", "B"), blocked("B", "C")},
			want:     nil,
		},
		{
			name:     "self wait",
			messages: []bus.Message{blocked("A", "A")},
			want:     []string{"A"},
		},
		{
			name:     "latest blocked wins",
			messages: []bus.Message{blocked("A", "B"), blocked("B", "A"), blocked("A", "C")},
			want:     nil,
		},
		{
			name: "unblocked clears edge",
			messages: []bus.Message{
				blocked("A", "B"),
				blocked("B", "A"),
				bus.NewMessage(bus.TypeUnblocked, "B", nil),
			},
			want: nil,
		},
		{
			name:     "finished worker contributes no edge",
			messages: []bus.Message{blocked("A", "B"), blocked("B", "A")},
			statuses: map[string]bus.WorkerStatus{"B": {Status: bus.StatusDone}},
			want:     nil,
		},
		{
			name:     "tail leading into cycle",
			messages: []bus.Message{blocked("X", "A"), blocked("A", "B"), blocked("B", "A")},
			want:     []string{"A", "B"},
		},
		{
			name:     "other messages ignored",
			messages: []bus.Message{bus.NewMessage(bus.TypeHeartbeat, "A", &bus.HeartbeatPayload{}), blocked("A", "B")},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.messages, tt.statuses))
		})
	}
}

func TestFindCycle_ConstructionOrder(t *testing.T) {
	// Two disjoint cycles: the one whose source blocked first is reported
	messages := []bus.Message{
		blocked("P", "Q"),
		blocked("A", "B"),
		blocked("B", "A"),
		blocked("Q", "P"),
	}
	assert.Equal(t, []string{"P", "Q"}, Detect(messages, nil))
}

func TestFindCycle_ClearedNodesAreSkipped(t *testing.T) {
	g := NewGraph()
	g.Wait("A", "B")
	g.Wait("B", "C")
	g.Wait("D", "B")
	g.Wait("E", "F")
	g.Wait("F", "E")

	cycle := FindCycle(g)
	require.NotNil(t, cycle)
	assert.Equal(t, []string{"E", "F"}, cycle)
}

func TestGraph(t *testing.T) {
	g := NewGraph()
	g.Wait("A", "B")
	g.Wait("C", "D")
	g.Wait("A", "C")

	to, ok := g.WaitsFor("A")
	require.True(t, ok)
	assert.Equal(t, "C", to)
	assert.Equal(t, []string{"A", "C"}, g.Sources())

	g.Clear("A")
	assert.Equal(t, []string{"C"}, g.Sources())
	assert.Equal(t, 1, g.Len())

	g.Wait("A", "B")
	assert.Equal(t, []string{"A", "C"}, g.Sources(), "re-blocking keeps first appearance order")
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "A -> B -> C -> A", Format([]string{"A", "B", "C"}))
	assert.Equal(t, "A -> A", Format([]string{"A"}))
	assert.Equal(t, "", Format(nil))
}
