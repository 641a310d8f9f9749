package zookeeper

import (
	"sort"
	"testing"
)

func TestSequence_OrdersProtectedNodes(t *testing.T) {
	nodes := []string{
		"_c_9f1e-lock-0000000012",
		"_c_0a2b-lock-0000000003",
		"_c_ffff-lock-0000000007",
	}
	sort.Slice(nodes, func(i, j int) bool { return sequence(nodes[i]) < sequence(nodes[j]) })

	want := []string{"_c_0a2b-lock-0000000003", "_c_ffff-lock-0000000007", "_c_9f1e-lock-0000000012"}
	for i := range want {
		if nodes[i] != want[i] {
			t.Fatalf("order = %v, want %v", nodes, want)
		}
	}
	if got := sequence("short"); got != "short" {
		t.Errorf("sequence(short) = %q", got)
	}
}
