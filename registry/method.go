package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

var (
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// Method is a registered function together with the shape reflection found for it.
type Method struct {
	Name string

	fn           reflect.Value
	typ          reflect.Type
	takesContext bool // first parameter is a context.Context, not counted as a param
	returnsValue bool
	returnsError bool
}

// newMethod checks that fn is a function whose results are one of
// (), (T), (error) or (T, error).
func newMethod(name string, fn any) (*Method, error) {
	if fn == nil {
		return nil, errors.Errorf("rpc: method %s: nil function", name)
	}
	typ := reflect.TypeOf(fn)
	if typ.Kind() != reflect.Func {
		return nil, errors.Errorf("rpc: method %s: want a function, got %s", name, typ.Kind())
	}

	m := &Method{
		Name:         name,
		fn:           reflect.ValueOf(fn),
		typ:          typ,
		takesContext: typ.NumIn() > 0 && typ.In(0) == contextType,
	}
	switch typ.NumOut() {
	case 0:
	case 1:
		if typ.Out(0) == errorType {
			m.returnsError = true
		} else {
			m.returnsValue = true
		}
	case 2:
		if typ.Out(1) != errorType {
			return nil, errors.Errorf("rpc: method %s: second result must be error, got %s", name, typ.Out(1))
		}
		m.returnsValue, m.returnsError = true, true
	default:
		return nil, errors.Errorf("rpc: method %s: too many results (%d)", name, typ.NumOut())
	}
	return m, nil
}

// NumParams is the number of positional params, not counting a leading
// context or the variadic tail.
func (m *Method) NumParams() int {
	n := m.typ.NumIn()
	if m.takesContext {
		n--
	}
	if m.typ.IsVariadic() {
		n--
	}
	return n
}

func (m *Method) paramType(i int) reflect.Type {
	offset := 0
	if m.takesContext {
		offset = 1
	}
	if m.typ.IsVariadic() && i >= m.NumParams() {
		return m.typ.In(m.typ.NumIn() - 1).Elem()
	}
	return m.typ.In(offset + i)
}

// Call decodes params into the function's parameter types, calls it and
// encodes its value result. A panic inside the function comes back as an error.
func (m *Method) Call(ctx context.Context, params []json.RawMessage) (result json.RawMessage, err error) {
	want := m.NumParams()
	if m.typ.IsVariadic() {
		if len(params) < want {
			return nil, errors.Errorf("%s takes at least %d params but %d were given", m.Name, want, len(params))
		}
	} else if len(params) != want {
		return nil, errors.Errorf("%s takes %d params but %d were given", m.Name, want, len(params))
	}

	args := make([]reflect.Value, 0, len(params)+1)
	if m.takesContext {
		if ctx == nil {
			ctx = context.Background()
		}
		args = append(args, reflect.ValueOf(ctx))
	}
	for i, raw := range params {
		typ := m.paramType(i)
		if isNull(raw) && !nullable(typ) {
			return nil, errors.Errorf("%s: param %d: null is not a %s", m.Name, i, typ)
		}
		argv := reflect.New(typ)
		if err := json.Unmarshal(raw, argv.Interface()); err != nil {
			return nil, errors.Errorf("%s: param %d: %v", m.Name, i, err)
		}
		args = append(args, argv.Elem())
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = nil, errors.Errorf("%s: panic: %v", m.Name, r)
		}
	}()
	results := m.fn.Call(args)

	if m.returnsError {
		if errv := results[len(results)-1]; !errv.IsNil() {
			return nil, errv.Interface().(error)
		}
	}
	if !m.returnsValue {
		return json.RawMessage("null"), nil
	}
	result, err = json.Marshal(results[0].Interface())
	if err != nil {
		return nil, errors.Errorf("%s: encoding result: %v", m.Name, err)
	}
	return result, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// nullable reports whether JSON null has a Go value of typ to decode into.
func nullable(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return true
	}
	return false
}
