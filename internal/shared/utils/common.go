package utils

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv reads .env outside of PROD/DEV. A missing .env file is not an error so that
// binaries and tests can run on plain environment variables.
func LoadEnv() error {
	if os.Getenv("ENV") == "PROD" || os.Getenv("ENV") == "DEV" {
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func SliceForeachContext[T any](ctx context.Context, items []T, do func(ctx context.Context, item T)) {
	for _, i := range items {
		select {
		case <-ctx.Done():
			return
		default:
			do(ctx, i)
		}
	}
}

func ErrorsIsAny(err error, errs ...error) bool {
	for _, e := range errs {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
