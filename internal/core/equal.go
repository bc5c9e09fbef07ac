package core

import (
	"reflect"
	"unsafe"
)

// deepEqual is reflect.DeepEqual with two changes: functions are equal when they are
// the same function value, and, when matchers is set, a Matcher anywhere in expected
// decides the comparison of the value at its position in actual.
//
// Structs with unexported fields are compared with reflect.DeepEqual as a whole, so
// matchers placed inside them are compared as values.
func deepEqual(actual, expected any, matchers bool) bool {
	return equalValues(actual, expected, matchers, make(map[visit]bool))
}

// visit records a pair of references already being compared, for cyclic values.
type visit struct {
	actual, expected unsafe.Pointer
	typ              reflect.Type
}

func equalValues(actual, expected any, matchers bool, visited map[visit]bool) bool {
	if matcher, ok := expected.(Matcher); ok && matchers {
		success, err := matcher.Match(actual)

		return err == nil && success
	}

	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	actualValue, expectedValue := reflect.ValueOf(actual), reflect.ValueOf(expected)
	if actualValue.Type() != expectedValue.Type() {
		return false
	}

	switch expectedValue.Kind() { //nolint:exhaustive // scalar kinds go to reflect.DeepEqual
	case reflect.Func:
		return funcIdentity(actual) == funcIdentity(expected)
	case reflect.Pointer:
		if actualValue.IsNil() || expectedValue.IsNil() {
			return actualValue.IsNil() && expectedValue.IsNil()
		}

		if seen(actualValue, expectedValue, visited) {
			return true
		}

		return equalValues(actualValue.Elem().Interface(), expectedValue.Elem().Interface(), matchers, visited)
	case reflect.Slice:
		if actualValue.IsNil() != expectedValue.IsNil() || actualValue.Len() != expectedValue.Len() {
			return false
		}

		if actualValue.Len() > 0 && seen(actualValue, expectedValue, visited) {
			return true
		}

		return equalElements(actualValue, expectedValue, matchers, visited)
	case reflect.Array:
		return equalElements(actualValue, expectedValue, matchers, visited)
	case reflect.Map:
		return equalMaps(actualValue, expectedValue, matchers, visited)
	case reflect.Struct:
		return equalStructs(actualValue, expectedValue, matchers, visited)
	default:
		return reflect.DeepEqual(actual, expected)
	}
}

func equalElements(actual, expected reflect.Value, matchers bool, visited map[visit]bool) bool {
	for idx := range expected.Len() {
		if !equalValues(actual.Index(idx).Interface(), expected.Index(idx).Interface(), matchers, visited) {
			return false
		}
	}

	return true
}

func equalMaps(actual, expected reflect.Value, matchers bool, visited map[visit]bool) bool {
	if actual.IsNil() != expected.IsNil() || actual.Len() != expected.Len() {
		return false
	}

	if actual.Len() == 0 || seen(actual, expected, visited) {
		return true
	}

	iter := expected.MapRange()
	for iter.Next() {
		actualElem := actual.MapIndex(iter.Key())
		if !actualElem.IsValid() {
			return false
		}

		if !equalValues(actualElem.Interface(), iter.Value().Interface(), matchers, visited) {
			return false
		}
	}

	return true
}

func equalStructs(actual, expected reflect.Value, matchers bool, visited map[visit]bool) bool {
	structType := expected.Type()

	for idx := range structType.NumField() {
		if !structType.Field(idx).IsExported() {
			return reflect.DeepEqual(actual.Interface(), expected.Interface())
		}
	}

	for idx := range structType.NumField() {
		if !equalValues(actual.Field(idx).Interface(), expected.Field(idx).Interface(), matchers, visited) {
			return false
		}
	}

	return true
}

// funcIdentity returns the closure pointer of a function held in an interface. Two
// references to the same top-level function share it; each evaluation of a capturing
// func literal gets its own.
func funcIdentity(fn any) unsafe.Pointer {
	if reflect.ValueOf(fn).Kind() != reflect.Func {
		return nil
	}

	return (*[2]unsafe.Pointer)(unsafe.Pointer(&fn))[1]
}

func seen(actual, expected reflect.Value, visited map[visit]bool) bool {
	key := visit{actual.UnsafePointer(), expected.UnsafePointer(), actual.Type()}
	if visited[key] {
		return true
	}

	visited[key] = true

	return false
}
