package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrInvalidTarget is returned when the load target is not a non-nil pointer.
	ErrInvalidTarget = errors.New("config target must be a non-nil pointer")
	// ErrParse is returned when environment parsing fails.
	ErrParse = errors.New("failed to parse environment")
)

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> loaded struct value
)

// Load parses environment variables into target, loading a .env file once
// per process if present. Each target type is parsed a single time; later
// calls receive the cached value.
func Load(target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidTarget
	}

	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	typ := rv.Elem().Type()
	if cached, ok := cache.Load(typ); ok {
		rv.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(target); err != nil {
		return errors.Join(ErrParse, err)
	}
	cache.Store(typ, rv.Elem().Interface())
	return nil
}

// MustLoad is Load that panics on failure, for use during startup.
func MustLoad(target any) {
	if err := Load(target); err != nil {
		panic(fmt.Sprintf("config: %s", err))
	}
}
