package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if cfg.Store.Type == "badger" && cfg.Store.Badger["path"] == nil && cfg.Store.Badger["in_memory"] != true {
		return fmt.Errorf("store.badger: path is required unless in_memory is set")
	}
	if cfg.Store.Type == "s3" && cfg.Store.S3["bucket"] == nil {
		return fmt.Errorf("store.s3: bucket is required")
	}
	if cfg.Namespace.ChunkSize > 1<<30 {
		return fmt.Errorf("namespace.chunk_size: %d exceeds 1GiB", cfg.Namespace.ChunkSize)
	}
	return nil
}

// formatValidationError reports the first failed field.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
