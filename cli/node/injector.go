// This file contains the implementation of a dependency injector using
// reflection.

package node

import (
	"reflect"

	"golang.org/x/xerrors"
)

// reflectInjector resolves the dependencies by their type. A dependency of the
// exact type has priority, otherwise the first dependency injected that is
// assignable wins, so that the resolution does not depend on map ordering when
// several components implement the same interface.
//
// - implements node.Injector
type reflectInjector struct {
	order  []reflect.Type
	mapper map[reflect.Type]interface{}
}

// NewInjector returns an empty injector.
func NewInjector() Injector {
	return &reflectInjector{
		mapper: make(map[reflect.Type]interface{}),
	}
}

// Resolve implements node.Injector. It populates the pointer with a compatible
// dependency.
func (inj *reflectInjector) Resolve(v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return xerrors.New("expect a pointer")
	}

	if !rv.Elem().IsValid() {
		return xerrors.Errorf("reflect value '%v' is invalid", rv)
	}

	target := rv.Elem().Type()

	value, found := inj.mapper[target]
	if found {
		rv.Elem().Set(reflect.ValueOf(value))
		return nil
	}

	for _, typ := range inj.order {
		if typ.AssignableTo(target) {
			rv.Elem().Set(reflect.ValueOf(inj.mapper[typ]))
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", target)
}

// Inject implements node.Injector. A dependency replaces the previous one of
// the same type and keeps its rank.
func (inj *reflectInjector) Inject(v interface{}) {
	key := reflect.TypeOf(v)

	_, found := inj.mapper[key]
	if !found {
		inj.order = append(inj.order, key)
	}

	inj.mapper[key] = v
}
