package symboltable

import (
	"testing"

	"github.com/tubular/tubularc/internal/types"
)

func TestInitVarAssignsIncreasingUIDs(t *testing.T) {
	gen := &UIDGen{}
	st := New(gen)

	uidX, err := st.InitVar("x", types.INTEGER)
	if err != nil {
		t.Fatal(err)
	}
	uidY, err := st.InitVar("y", types.DOUBLE)
	if err != nil {
		t.Fatal(err)
	}
	if uidY <= uidX {
		t.Fatalf("expected increasing uids, got %d then %d", uidX, uidY)
	}
}

func TestUIDsUniqueAcrossFunctions(t *testing.T) {
	gen := &UIDGen{}
	first := New(gen)
	uid1, _ := first.InitVar("a", types.INTEGER)

	second := New(gen)
	uid2, _ := second.InitVar("a", types.INTEGER)

	if uid1 == uid2 {
		t.Fatalf("uids must stay unique across separate functions sharing a generator")
	}
}

func TestRedeclarationInSameScopeFails(t *testing.T) {
	st := New(&UIDGen{})
	if _, err := st.InitVar("x", types.INTEGER); err != nil {
		t.Fatal(err)
	}
	if _, err := st.InitVar("x", types.DOUBLE); err == nil {
		t.Fatalf("expected redeclaration error")
	}
}

func TestLookupWalksOuterScopes(t *testing.T) {
	st := New(&UIDGen{})
	st.InitVar("outer", types.INTEGER)
	st.PushScope()
	defer st.PopScope()

	v, ok := st.Lookup("outer")
	if !ok {
		t.Fatalf("expected to find outer variable from nested scope")
	}
	if v.Type != types.INTEGER {
		t.Fatalf("got type %s", v.Type)
	}
}

func TestShadowingInNestedScopeAllowed(t *testing.T) {
	st := New(&UIDGen{})
	st.InitVar("x", types.INTEGER)
	st.PushScope()
	if _, err := st.InitVar("x", types.DOUBLE); err != nil {
		t.Fatalf("shadowing in a nested scope should be allowed: %v", err)
	}
	v, _ := st.Lookup("x")
	if v.Type != types.DOUBLE {
		t.Fatalf("expected nested binding to shadow outer one, got %s", v.Type)
	}
	st.PopScope()
	v, _ = st.Lookup("x")
	if v.Type != types.INTEGER {
		t.Fatalf("expected outer binding restored after PopScope, got %s", v.Type)
	}
}

func TestInsideNestedScope(t *testing.T) {
	st := New(&UIDGen{})
	if st.InsideNestedScope() {
		t.Fatalf("fresh table should not report nested scope")
	}
	st.PushScope()
	if !st.InsideNestedScope() {
		t.Fatalf("after PushScope, should report nested scope")
	}
}

func TestLookupMissingReturnsFalse(t *testing.T) {
	st := New(&UIDGen{})
	if _, ok := st.Lookup("nope"); ok {
		t.Fatalf("expected lookup miss")
	}
}
