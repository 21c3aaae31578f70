package registration

import (
	"sync"

	"github.com/rizqme/goderunner/internal/rerr"
	"github.com/rizqme/goderunner/internal/spectree"
)

// Factory is a node in the DAG of env compositions created by
// declare()/extend(), per spec.md §9 "Dynamic variant composition". The
// root factory (created implicitly for the bare `test` export) has a nil
// Base.
type Factory struct {
	Name string
	Base *Factory
	Env  *spectree.Env // this factory's own layer, nil if it adds none

	mu       sync.Mutex
	variants []spectree.Variant
}

// factoryRegistry tracks every Factory created during a load, keyed by
// name, so cross-file declare/extend chains resolve consistently within
// one worker's lifetime.
type factoryRegistry struct {
	mu    sync.Mutex
	byName map[string]*Factory
}

func newFactoryRegistry() *factoryRegistry {
	return &factoryRegistry{byName: make(map[string]*Factory)}
}

// Factory looks up a previously created Factory by name, for resolving a
// Spec.FactoryName at generation time.
func (l *Loader) Factory(name string) (*Factory, bool) {
	l.factories.mu.Lock()
	defer l.factories.mu.Unlock()
	f, ok := l.factories.byName[name]
	return f, ok
}

// RootFactory returns (creating if necessary) the implicit factory bound
// to the bare `test` export.
func (l *Loader) RootFactory() *Factory {
	l.factories.mu.Lock()
	defer l.factories.mu.Unlock()
	f, ok := l.factories.byName[""]
	if !ok {
		f = &Factory{Name: ""}
		l.factories.byName[""] = f
	}
	return f
}

// Declare creates a derived factory with no env of its own yet (to be
// filled in by a following RunWith), composing on top of base.
func (l *Loader) Declare(name string, base *Factory) *Factory {
	l.factories.mu.Lock()
	defer l.factories.mu.Unlock()
	f := &Factory{Name: name, Base: base}
	l.factories.byName[name] = f
	return f
}

// Extend creates a derived factory whose own layer is env, composing
// outside base per spec.md §9 — see EnvChain for the execution order this
// implies.
func (l *Loader) Extend(name string, base *Factory, env *spectree.Env) *Factory {
	l.factories.mu.Lock()
	defer l.factories.mu.Unlock()
	f := &Factory{Name: name, Base: base, Env: env}
	l.factories.byName[name] = f
	return f
}

// RunWith binds env (and its RepeatEach/options) as a Variant of this
// factory. A factory may be bound multiple times, producing multiple
// variants; the tag distinguishes them in reporter output.
func (f *Factory) RunWith(tag string, env *spectree.Env, repeatEach int, options map[string]interface{}) error {
	if tag == "" {
		return rerr.New(rerr.KindRegistrationPhaseViolation, "runWith requires a non-empty variant tag", nil)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variants = append(f.variants, spectree.Variant{
		Tag:        tag,
		Env:        env,
		RepeatEach: repeatEach,
		Options:    options,
	})
	return nil
}

// Variants returns every Variant bound directly to this factory. Variants
// are not inherited from Base — each bound factory is run independently,
// matching the "variant binding" semantics of spec.md §4.1.
func (f *Factory) Variants() []spectree.Variant {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]spectree.Variant, len(f.variants))
	copy(out, f.variants)
	return out
}

// EnvChain folds the factory chain from root to leaf (this factory) into
// an ordered list of non-nil Envs, root first. Callers that need
// execution order must read it according to the hook kind:
//
//   - beforeAll/beforeEach: iterate in reverse (leaf/most-recently-extended
//     first) — an extend()'d layer executes outside the base it wraps.
//   - afterAll/afterEach: iterate forward (root first, leaf last) — the
//     mirror image, so teardown unwinds in the opposite order setup used.
func (f *Factory) EnvChain() []*spectree.Env {
	var chain []*spectree.Env
	for cur := f; cur != nil; cur = cur.Base {
		if cur.Env != nil {
			chain = append([]*spectree.Env{cur.Env}, chain...)
		}
	}
	return chain
}
