package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate validates the configuration and returns an error if invalid.
// Validation fails fast - the service should not start with invalid config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if errs := c.crossFieldErrors(); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return nil
}

// crossFieldErrors covers rules that depend on a selector in a sibling section.
func (c *Config) crossFieldErrors() []string {
	var errs []string

	switch c.Storage.Driver {
	case StorageDriverSQLite:
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, "storage.sqlite.path is required when driver is sqlite")
		}
	case StorageDriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, "storage.postgres.dsn is required when driver is postgres")
		}
	}

	switch c.Export.Sink {
	case ExportSinkFile:
		if c.Export.File.Dir == "" {
			errs = append(errs, "export.file.dir is required when sink is file")
		}
	case ExportSinkS3:
		if c.Export.S3.Bucket == "" {
			errs = append(errs, "export.s3.bucket is required when sink is s3")
		}

		if c.Export.S3.Region == "" {
			errs = append(errs, "export.s3.region is required when sink is s3")
		}

		if (c.Export.S3.AccessKeyID == "") != (c.Export.S3.SecretAccessKey == "") {
			errs = append(errs, "export.s3.access_key_id and export.s3.secret_access_key must be set together")
		}
	}

	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		errs = append(errs, "sync.interval is required when sync is enabled")
	}

	return errs
}

// formatValidationErrors converts validator errors to a readable format.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, formatFieldError(e))
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

// formatFieldError formats a single field validation error.
func formatFieldError(e validator.FieldError) string {
	field := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// formatFieldPath converts "Config.Server.Port" to "server.port".
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}

	for i, part := range parts {
		parts[i] = strings.ToLower(part)
	}

	return strings.Join(parts, ".")
}
