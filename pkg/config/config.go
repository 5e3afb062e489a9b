package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// pow2 validates that a uint64/int field is a non-zero power of two. The
// runtime's ring capacity and per-worker deque capacity both require this,
// since both use a bitmask instead of a modulo to wrap their indices.
func pow2(fl validator.FieldLevel) bool {
	f := fl.Field()
	var n uint64
	if f.CanInt() {
		v := f.Int()
		if v <= 0 {
			return false
		}
		n = uint64(v)
	} else {
		n = f.Uint()
	}
	return n != 0 && n&(n-1) == 0
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("pow2", pow2)
	})
	return validate
}

// Load reads configuration from .env file or environment variables and validates it.
func Load[T any](cfg *T) error {
	// 1. Load from .env if it exists
	if err := cleanenv.ReadConfig(".env", cfg); err != nil {
		// If .env doesn't exist or we just want to rely on env vars,
		// we fallback to ReadEnv to pick up environment variables processing.
		// cleanenv.ReadConfig already does ReadEnv if file fails?
		// Actually cleanenv.ReadConfig returns error if file not found.
		// So we fallback to ReadEnv.
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return fmt.Errorf("failed to read env config: %w", err)
		}
	}

	// 2. Validate the struct
	if err := validatorInstance().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}
