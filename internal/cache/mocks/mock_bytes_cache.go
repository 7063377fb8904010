package mocks

import (
	context "context"
	time "time"

	mock "github.com/stretchr/testify/mock"
)

// MockBytesCache is a mock type for the BytesCache type
type MockBytesCache struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, key
func (_m *MockBytesCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ret := _m.Called(ctx, key)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(context.Context, string) []byte); ok {
		r0 = rf(ctx, key)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	var r1 bool
	if rf, ok := ret.Get(1).(func(context.Context, string) bool); ok {
		r1 = rf(ctx, key)
	} else {
		r1 = ret.Bool(1)
	}

	var r2 error
	if rf, ok := ret.Get(2).(func(context.Context, string) error); ok {
		r2 = rf(ctx, key)
	} else {
		r2 = ret.Error(2)
	}

	return r0, r1, r2
}

// Set provides a mock function with given fields: ctx, key, value, ttl
func (_m *MockBytesCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ret := _m.Called(ctx, key, value, ttl)

	if rf, ok := ret.Get(0).(func(context.Context, string, []byte, time.Duration) error); ok {
		return rf(ctx, key, value, ttl)
	}
	return ret.Error(0)
}

// Del provides a mock function with given fields: ctx, keys
func (_m *MockBytesCache) Del(ctx context.Context, keys ...string) error {
	_va := make([]interface{}, len(keys))
	for _i := range keys {
		_va[_i] = keys[_i]
	}
	var _ca []interface{}
	_ca = append(_ca, ctx)
	_ca = append(_ca, _va...)
	ret := _m.Called(_ca...)

	if rf, ok := ret.Get(0).(func(context.Context, ...string) error); ok {
		return rf(ctx, keys...)
	}
	return ret.Error(0)
}
