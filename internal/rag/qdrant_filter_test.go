package rag

import "testing"

func TestQdrantFilter(t *testing.T) {
	t.Parallel()

	if qdrantFilter(Filter{}) != nil {
		t.Error("match-all filter should translate to nil")
	}
	if qdrantFilterOrAll(Filter{}) == nil {
		t.Error("delete selector filter must never be nil")
	}

	f := qdrantFilter(Filter{DocHash: "abc", IDs: []string{"11111111-1111-1111-1111-111111111111"}})
	if f == nil || len(f.GetMust()) != 2 {
		t.Fatalf("filter = %v, want two must conditions", f)
	}
	if got := f.GetMust()[0].GetField().GetMatch().GetKeyword(); got != "abc" {
		t.Errorf("doc hash condition = %q", got)
	}
	ids := f.GetMust()[1].GetHasId().GetHasId()
	if len(ids) != 1 || ids[0].GetUuid() != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("id condition = %v", ids)
	}
}
