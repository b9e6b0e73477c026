package handler

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cast"

	"github.com/conduit-lang/waypoint/internal/resolve"
	"github.com/conduit-lang/waypoint/internal/web/exchange"
)

var (
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	responseType = reflect.TypeOf((*exchange.Response)(nil))
)

// resultKind classifies the first result of an endpoint function
type resultKind int

const (
	resultNone resultKind = iota
	resultResponse
	resultChannel
	resultValue
)

// signature is the build-time analysis of an endpoint function
type signature struct {
	fn       reflect.Value
	in       []reflect.Type
	kind     resultKind
	hasError bool
}

// analyze checks that fn can be called with n resolved arguments and that
// its results are one of: none, error, T, (T, error)
func analyze(fn interface{}, n int) (*signature, error) {
	if fn == nil {
		return nil, fmt.Errorf("endpoint function is nil")
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("endpoint must be a function, got %s", t)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("variadic endpoint functions are not supported")
	}
	if t.NumIn() != n {
		return nil, fmt.Errorf("function takes %d arguments but %d parameters are declared", t.NumIn(), n)
	}

	sig := &signature{fn: v, in: make([]reflect.Type, n)}
	for i := 0; i < n; i++ {
		sig.in[i] = t.In(i)
	}

	switch t.NumOut() {
	case 0:
		sig.kind = resultNone
	case 1:
		if t.Out(0) == errorType {
			sig.kind = resultNone
			sig.hasError = true
		} else {
			sig.kind = classify(t.Out(0))
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("second result must be error, got %s", t.Out(1))
		}
		sig.kind = classify(t.Out(0))
		sig.hasError = true
	default:
		return nil, fmt.Errorf("function returns %d results, at most 2 are supported", t.NumOut())
	}
	return sig, nil
}

func classify(t reflect.Type) resultKind {
	if t == responseType {
		return resultResponse
	}
	if t.Kind() == reflect.Chan && t.ChanDir()&reflect.RecvDir != 0 && t.Elem() == responseType {
		return resultChannel
	}
	return resultValue
}

// newCallAdapter builds the innermost handler: it resolves the arguments,
// coerces them to the function's parameter types and interprets the results
func newCallAdapter(sig *signature, bind resolve.Binder, names []string) exchange.Handler {
	return func(req *exchange.Request) *exchange.Response {
		values, err := bind(req)
		if err != nil {
			return exchange.FromError(err)
		}

		args := make([]reflect.Value, len(values))
		for i, v := range values {
			arg, err := coerce(v, sig.in[i])
			if err != nil {
				return exchange.Failure(http.StatusBadRequest, exchange.CodeBadRequest,
					fmt.Sprintf("argument %q: %v", names[i], err),
					map[string]interface{}{"argument": names[i]})
			}
			args[i] = arg
		}

		return sig.interpret(req.Context(), sig.fn.Call(args))
	}
}

func (s *signature) interpret(ctx context.Context, out []reflect.Value) *exchange.Response {
	if s.hasError {
		if errv := out[len(out)-1]; !errv.IsNil() {
			return exchange.FromError(errv.Interface().(error))
		}
	}

	switch s.kind {
	case resultNone:
		return exchange.NoContent()
	case resultResponse:
		resp := out[0].Interface().(*exchange.Response)
		if resp == nil {
			return exchange.NoContent()
		}
		return resp
	case resultChannel:
		return await(ctx, out[0])
	default:
		return exchange.OK(out[0].Interface())
	}
}

// await receives the single response of a natively asynchronous endpoint
func await(ctx context.Context, ch reflect.Value) *exchange.Response {
	if ch.IsNil() {
		return exchange.InternalError("endpoint returned a nil channel")
	}
	chosen, v, ok := reflect.Select([]reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: ch},
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
	})
	if chosen == 1 {
		return exchange.GatewayTimeout()
	}
	if !ok || v.IsNil() {
		return exchange.InternalError("endpoint completed without a response")
	}
	return v.Interface().(*exchange.Response)
}

// coerce converts a resolved value to the parameter type t
func coerce(v interface{}, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	if converted, ok, err := coerceScalar(v, t); ok {
		if err != nil {
			return reflect.Value{}, err
		}
		return converted, nil
	}

	if isStruct(t) {
		if _, isMap := v.(map[string]interface{}); isMap {
			return decodeStruct(v, t)
		}
	}

	if rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", v, t)
}

// coerceScalar handles string, bool and numeric targets through cast
func coerceScalar(v interface{}, t reflect.Type) (reflect.Value, bool, error) {
	var (
		out interface{}
		err error
	)
	switch t.Kind() {
	case reflect.String:
		out, err = cast.ToStringE(v)
	case reflect.Bool:
		out, err = cast.ToBoolE(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		n, err = cast.ToInt64E(v)
		out = n
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		n, err = cast.ToUint64E(v)
		out = n
	case reflect.Float32, reflect.Float64:
		out, err = cast.ToFloat64E(v)
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return reflect.Value{}, false, nil
		}
		out, err = cast.ToStringSliceE(v)
	default:
		return reflect.Value{}, false, nil
	}
	if err != nil {
		return reflect.Value{}, true, err
	}

	rv := reflect.ValueOf(out)
	if t.Kind() != reflect.Slice && overflows(rv, t) {
		return reflect.Value{}, true, fmt.Errorf("value %v overflows %s", out, t)
	}
	return rv.Convert(t), true, nil
}

func overflows(v reflect.Value, t reflect.Type) bool {
	z := reflect.Zero(t)
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return z.OverflowInt(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return z.OverflowUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return z.OverflowFloat(v.Float())
	}
	return false
}

func isStruct(t reflect.Type) bool {
	return t.Kind() == reflect.Struct || (t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct)
}

// decodeStruct decodes a map into a struct or struct pointer
func decodeStruct(v interface{}, t reflect.Type) (reflect.Value, error) {
	target := t
	if t.Kind() == reflect.Ptr {
		target = t.Elem()
	}
	ptr := reflect.New(target)
	if err := mapstructure.WeakDecode(v, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	if t.Kind() == reflect.Ptr {
		return ptr, nil
	}
	return ptr.Elem(), nil
}
