package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, validateHotload("hotload", &c.Hotload)...)

	for _, name := range c.ListSessions() {
		s := c.Sessions[name]
		errors = append(errors, c.validateSession(name, &s)...)
	}

	errors = append(errors, c.validateReport()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func validateHotload(prefix string, h *HotloadConfig) ValidationErrors {
	var errors ValidationErrors

	if h.Workers <= 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".workers",
			Message: "workers must be positive",
		})
	}

	attrs := []struct {
		field string
		value string
	}{
		{"skip_attribute", h.SkipAttribute},
		{"reset_attribute", h.ResetAttribute},
		{"upgrader_attribute", h.UpgraderAttribute},
		{"callback_attribute", h.CallbackAttribute},
	}
	for _, a := range attrs {
		if strings.TrimSpace(a.value) == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + "." + a.field,
				Message: a.field + " is required",
			})
		}
	}

	return errors
}

func (c *Config) validateSession(name string, s *SessionConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("sessions.%s", name)

	if s.Before == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".before",
			Message: "before image manifest is required",
		})
	}

	if s.After == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".after",
			Message: "after image manifest is required",
		})
	}

	if len(s.Replace) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".replace",
			Message: "at least one replacement must be defined",
		})
	}
	for i, r := range s.Replace {
		if r.Old == "" || r.New == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.replace[%d]", prefix, i),
				Message: "old and new assembly names are required",
			})
		}
	}

	for i, w := range s.Watch {
		if w.Assembly == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.watch[%d].assembly", prefix, i),
				Message: "assembly is required",
			})
		}
	}

	if s.Hotload != nil {
		merged := s.GetSessionHotload(c.Hotload)
		errors = append(errors, validateHotload(prefix+".hotload", &merged)...)
	}

	return errors
}

func (c *Config) validateReport() ValidationErrors {
	var errors ValidationErrors

	if c.Report.MaxEntries < 0 {
		errors = append(errors, ValidationError{
			Field:   "report.max_entries",
			Message: "max_entries cannot be negative",
		})
	}

	validKinds := map[string]bool{"info": true, "warning": true, "error": true, "": true}
	if !validKinds[c.Report.MinKind] {
		errors = append(errors, ValidationError{
			Field:   "report.min_kind",
			Message: "min_kind must be 'info', 'warning', or 'error'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
