// Package typeutil holds small reflection helpers used by the observe
// fan-out.
package typeutil

import "reflect"

// IsTypedNil returns true if x is nil, or a non-nil interface value
// wrapping a nil pointer/map/slice/func/chan — the case a plain
// `x != nil` check misses once a concrete *T(nil) has been boxed into
// an interface.
func IsTypedNil(x any) bool {
	if x == nil {
		return true
	}
	v := reflect.ValueOf(x)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
