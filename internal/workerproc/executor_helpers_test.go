package workerproc

import (
	"testing"
	"time"

	"github.com/rizqme/goderunner/internal/spectree"
)

func TestReversedFlipsOrderWithoutMutatingInput(t *testing.T) {
	a, b, c := &spectree.Env{}, &spectree.Env{}, &spectree.Env{}
	in := []*spectree.Env{a, b, c}

	out := reversed(in)

	if out[0] != c || out[1] != b || out[2] != a {
		t.Errorf("expected [c b a], got %+v", out)
	}
	if in[0] != a || in[1] != b || in[2] != c {
		t.Error("reversed must not mutate its input slice")
	}
}

func TestCopyMapIsAnIndependentShallowCopy(t *testing.T) {
	src := map[string]interface{}{"k": 1}
	dst := copyMap(src)
	dst["k"] = 2
	if src["k"] != 1 {
		t.Error("mutating the copy must not affect the source map")
	}
}

func TestMergeIntoOverwritesExistingKeys(t *testing.T) {
	dst := map[string]interface{}{"a": 1, "b": 2}
	mergeInto(dst, map[string]interface{}{"b": 3, "c": 4})
	if dst["a"] != 1 || dst["b"] != 3 || dst["c"] != 4 {
		t.Errorf("unexpected merge result: %+v", dst)
	}
}

func TestMsToDurationConverts(t *testing.T) {
	if got := msToDuration(1500); got != 1500*time.Millisecond {
		t.Errorf("expected 1500ms, got %v", got)
	}
}
