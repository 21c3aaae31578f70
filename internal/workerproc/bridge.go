package workerproc

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/rizqme/goderunner/internal/registration"
	"github.com/rizqme/goderunner/internal/spectree"
)

// Bridge wires the registration.Loader's VM-agnostic API onto JavaScript
// globals, the way the teacher's internal/modules/test.Bridge wires
// TestRunner onto describe/test/beforeEach — but targeting this runner's
// spec tree and factory model instead, and with no expect() matcher
// library: assertions are the author's concern, not the core's (see
// spec.md §1 Non-goals).
type Bridge struct {
	vm     *VM
	loader *registration.Loader
}

// NewBridge creates a Bridge bound to loader and installs its globals into
// vm. Call once per VM.
func NewBridge(vm *VM, loader *registration.Loader) *Bridge {
	b := &Bridge{vm: vm, loader: loader}
	vm.Queue(func() { b.install() })
	return b
}

// callerLoc reads the source location of the JS frame that invoked the
// currently-executing native Go function, the same "error-stack probe"
// spec.md §4.1 describes for line/column capture, and used here to
// enforce the helper-file hook restriction without registration
// importing goja.
func (b *Bridge) callerLoc() registration.Loc {
	frames := b.vm.runtime.CaptureCallStack(1, nil)
	if len(frames) == 0 {
		return registration.Loc{}
	}
	pos := frames[0].Position()
	return registration.Loc{File: frames[0].SrcName(), Line: pos.Line, Col: pos.Column}
}

func (b *Bridge) install() {
	rt := b.vm.runtime

	describeFn := func(call goja.FunctionCall) goja.Value {
		title := call.Argument(0).String()
		fn, _ := goja.AssertFunction(call.Argument(1))
		if err := b.loader.Describe(title, b.wrapBody(fn)); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	}
	describeObj := rt.ToValue(describeFn).ToObject(rt)
	describeObj.Set("only", func(call goja.FunctionCall) goja.Value {
		title := call.Argument(0).String()
		fn, _ := goja.AssertFunction(call.Argument(1))
		if err := b.loader.DescribeOnly(title, b.wrapBody(fn)); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})
	describeObj.Set("skip", func(call goja.FunctionCall) goja.Value {
		title := call.Argument(0).String()
		fn, _ := goja.AssertFunction(call.Argument(1))
		if err := b.loader.DescribeSkip(title, b.wrapBody(fn)); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})
	rt.Set("describe", describeObj)

	b.installTestFamily(rt, "test", "")
	rt.Set("it", rt.Get("test"))

	b.installHook(rt, "beforeAll", spectree.BeforeAll)
	b.installHook(rt, "afterAll", spectree.AfterAll)
	b.installHook(rt, "beforeEach", spectree.BeforeEach)
	b.installHook(rt, "afterEach", spectree.AfterEach)

	rt.Set("declare", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		base := b.loader.RootFactory()
		if len(call.Arguments) > 1 {
			if f := b.factoryArg(call.Argument(1)); f != nil {
				base = f
			}
		}
		factory := b.loader.Declare(name, base)
		return b.factoryValue(rt, factory)
	})

	rt.Set("extend", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		base := b.loader.RootFactory()
		envArgIdx := 1
		if len(call.Arguments) > 2 {
			if f := b.factoryArg(call.Argument(1)); f != nil {
				base = f
				envArgIdx = 2
			}
		}
		env := b.envFromObject(rt, call.Argument(envArgIdx))
		factory := b.loader.Extend(name, base, env)
		return b.factoryValue(rt, factory)
	})
}

// installTestFamily installs `test`/`it` (and, on a factory object, the
// factory-scoped equivalent) plus its .only/.skip/.fail modifiers, all
// bound to factoryName.
func (b *Bridge) installTestFamily(rt *goja.Runtime, globalName, factoryName string) {
	testFn := func(call goja.FunctionCall) goja.Value {
		b.registerTest(rt, call, registration.TestOptions{}, factoryName)
		return goja.Undefined()
	}
	obj := rt.ToValue(testFn).ToObject(rt)
	obj.Set("only", func(call goja.FunctionCall) goja.Value {
		b.registerTest(rt, call, registration.TestOptions{Focused: true}, factoryName)
		return goja.Undefined()
	})
	obj.Set("skip", func(call goja.FunctionCall) goja.Value {
		b.registerTest(rt, call, registration.TestOptions{Skipped: true}, factoryName)
		return goja.Undefined()
	})
	obj.Set("fail", func(call goja.FunctionCall) goja.Value {
		b.registerTest(rt, call, registration.TestOptions{ExpectedToFail: true}, factoryName)
		return goja.Undefined()
	})
	rt.Set(globalName, obj)
}

func (b *Bridge) registerTest(rt *goja.Runtime, call goja.FunctionCall, opts registration.TestOptions, factoryName string) {
	title := call.Argument(0).String()
	fn, _ := goja.AssertFunction(call.Argument(1))
	loc := b.callerLoc()
	body := b.wrapTestBody(fn)
	if _, err := b.loader.Test(loc, title, body, opts, factoryName); err != nil {
		panic(rt.NewGoError(err))
	}
}

func (b *Bridge) installHook(rt *goja.Runtime, name string, kind spectree.HookKind) {
	rt.Set(name, func(call goja.FunctionCall) goja.Value {
		fn, _ := goja.AssertFunction(call.Argument(0))
		loc := b.callerLoc()
		if err := b.loader.Hook(loc.File, kind, loc, b.wrapHookBody(fn)); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})
}

// wrapBody adapts a describe() block body (no args, no return) to a plain
// Go func(), executed synchronously on the VM goroutine it is already
// running on.
func (b *Bridge) wrapBody(fn goja.Callable) func() {
	return func() {
		if fn == nil {
			return
		}
		if _, err := fn(goja.Undefined()); err != nil {
			panic(err)
		}
	}
}

// wrapHookBody adapts a beforeEach/afterEach/beforeAll/afterAll body to
// spectree.HookFunc, passing the accumulated state bag as its sole
// argument and merging in whatever dictionary it returns.
func (b *Bridge) wrapHookBody(fn goja.Callable) spectree.HookFunc {
	return func(input map[string]interface{}) (out map[string]interface{}, err error) {
		if fn == nil {
			return nil, nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = toGoError(r)
			}
		}()
		var ret goja.Value
		var callErr error
		b.vm.Queue(func() {
			ret, callErr = fn(goja.Undefined(), b.vm.runtime.ToValue(input))
		})
		if callErr != nil {
			return nil, callErr
		}
		if ret == nil || goja.IsUndefined(ret) || goja.IsNull(ret) {
			return nil, nil
		}
		exported := ret.Export()
		if m, ok := exported.(map[string]interface{}); ok {
			return m, nil
		}
		return nil, nil
	}
}

// wrapTestBody adapts a test() body to spectree.TestFunc, handing it the
// merged fixture state and a testInfo object backed by info.
func (b *Bridge) wrapTestBody(fn goja.Callable) spectree.TestFunc {
	return func(input map[string]interface{}, info *spectree.TestInfo) (err error) {
		if fn == nil {
			return nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = toGoError(r)
			}
		}()
		var callErr error
		b.vm.Queue(func() {
			rt := b.vm.runtime
			testInfoVal := b.testInfoValue(rt, info)
			_, callErr = fn(goja.Undefined(), rt.ToValue(input), testInfoVal)
		})
		return callErr
	}
}

// testInfoValue builds the JS-visible testInfo object for one attempt,
// backed by the same *spectree.TestInfo the executor inspects afterward.
func (b *Bridge) testInfoValue(rt *goja.Runtime, info *spectree.TestInfo) goja.Value {
	obj := rt.NewObject()
	obj.Set("title", info.Title)
	obj.Set("retry", info.Retry)
	obj.Set("repeatEachIndex", info.RepeatEachIndex)
	obj.Set("timeout", info.Timeout.Milliseconds())
	obj.Set("data", info.Data)
	obj.Set("skip", func(call goja.FunctionCall) goja.Value {
		cond := true
		if len(call.Arguments) > 0 {
			cond = call.Argument(0).ToBoolean()
		}
		info.Skip(cond)
		return goja.Undefined()
	})
	obj.Set("fail", func(call goja.FunctionCall) goja.Value {
		cond := true
		if len(call.Arguments) > 0 {
			cond = call.Argument(0).ToBoolean()
		}
		info.Fail(cond)
		return goja.Undefined()
	})
	obj.Set("slow", func(call goja.FunctionCall) goja.Value {
		info.Slow()
		return goja.Undefined()
	})
	obj.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		ms := call.Argument(0).ToInteger()
		info.SetTimeout(msToDuration(ms))
		return goja.Undefined()
	})
	annotations := rt.NewObject()
	annotations.Set("push", func(call goja.FunctionCall) goja.Value {
		a := spectree.Annotation{Type: call.Argument(0).String()}
		if len(call.Arguments) > 1 {
			a.Description = call.Argument(1).String()
		}
		info.PushAnnotation(a)
		return goja.Undefined()
	})
	obj.Set("annotations", annotations)
	obj.Set("toMatchSnapshot", func(call goja.FunctionCall) goja.Value {
		actual := serializeForSnapshot(rt, call.Argument(0))
		matched, diff, err := info.MatchSnapshot(actual)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		if !matched {
			panic(rt.NewGoError(fmt.Errorf("snapshot mismatch:\n%s", diff)))
		}
		return goja.Undefined()
	})
	return obj
}

// serializeForSnapshot renders a JS value the way stored snapshots are
// compared: pretty-printed JSON for objects/arrays, the raw string for a
// JS string, so a snapshot file reads like the value it captured.
func serializeForSnapshot(rt *goja.Runtime, v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "undefined"
	}
	if s, ok := v.Export().(string); ok {
		return s
	}
	encoded, err := json.MarshalIndent(v.Export(), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v.Export())
	}
	return string(encoded)
}

// factoryValue wraps a *registration.Factory as a JS object exposing
// runWith, describe, and test bound to that factory's name, so author code
// can write `const myTest = extend(...); myTest('uses fixture', fn)`.
func (b *Bridge) factoryValue(rt *goja.Runtime, f *registration.Factory) goja.Value {
	b.installTestFamily(rt, "__factory_"+f.Name, f.Name)
	fnVal := rt.Get("__factory_" + f.Name)
	obj := fnVal.ToObject(rt)
	obj.Set("__goderunnerFactory", f.Name)
	obj.Set("runWith", func(call goja.FunctionCall) goja.Value {
		tag := call.Argument(0).String()
		var env *spectree.Env
		var repeatEach int
		var options map[string]interface{}
		if len(call.Arguments) > 1 {
			env = b.envFromObject(rt, call.Argument(1))
		}
		if len(call.Arguments) > 2 {
			opts := call.Argument(2).Export()
			if m, ok := opts.(map[string]interface{}); ok {
				options = m
				if re, ok := m["repeatEach"].(int64); ok {
					repeatEach = int(re)
				}
			}
		}
		if err := f.RunWith(tag, env, repeatEach, options); err != nil {
			panic(rt.NewGoError(err))
		}
		return goja.Undefined()
	})
	return obj
}

// factoryArg extracts the *registration.Factory a JS value was tagged with
// by factoryValue, or nil if v is not a recognized factory object.
func (b *Bridge) factoryArg(v goja.Value) *registration.Factory {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(b.vm.runtime)
	if obj == nil {
		return nil
	}
	nameVal := obj.Get("__goderunnerFactory")
	if nameVal == nil || goja.IsUndefined(nameVal) {
		return nil
	}
	f, _ := b.loader.Factory(nameVal.String())
	return f
}

// envFromObject reads an {beforeAll, afterAll, beforeEach, afterEach}
// literal into a *spectree.Env, per spec.md §3 "Env declaration".
func (b *Bridge) envFromObject(rt *goja.Runtime, v goja.Value) *spectree.Env {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj := v.ToObject(rt)
	if obj == nil {
		return nil
	}
	env := &spectree.Env{}
	if fn, ok := goja.AssertFunction(obj.Get("beforeAll")); ok {
		env.BeforeAll = func(worker *spectree.WorkerInfo) (map[string]interface{}, error) {
			var ret goja.Value
			var callErr error
			b.vm.Queue(func() {
				info := rt.NewObject()
				info.Set("workerIndex", worker.WorkerIndex)
				info.Set("project", worker.Project)
				ret, callErr = fn(goja.Undefined(), info)
			})
			return exportMap(ret), callErr
		}
	}
	if fn, ok := goja.AssertFunction(obj.Get("afterAll")); ok {
		env.AfterAll = func(state map[string]interface{}) error {
			var callErr error
			b.vm.Queue(func() {
				_, callErr = fn(goja.Undefined(), rt.ToValue(state))
			})
			return callErr
		}
	}
	if fn, ok := goja.AssertFunction(obj.Get("beforeEach")); ok {
		env.BeforeEach = func(info *spectree.TestInfo) (map[string]interface{}, error) {
			var ret goja.Value
			var callErr error
			b.vm.Queue(func() {
				ret, callErr = fn(goja.Undefined(), b.testInfoValue(rt, info))
			})
			return exportMap(ret), callErr
		}
	}
	if fn, ok := goja.AssertFunction(obj.Get("afterEach")); ok {
		env.AfterEach = func(state map[string]interface{}) error {
			var callErr error
			b.vm.Queue(func() {
				_, callErr = fn(goja.Undefined(), rt.ToValue(state))
			})
			return callErr
		}
	}
	return env
}

func exportMap(v goja.Value) map[string]interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if m, ok := v.Export().(map[string]interface{}); ok {
		return m
	}
	return nil
}

func toGoError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	if gojaErr, ok := r.(*goja.Exception); ok {
		return fmt.Errorf("%s", gojaErr.Value().String())
	}
	return fmt.Errorf("%v", r)
}
