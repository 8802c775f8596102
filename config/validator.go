package config

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"
)

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func newValidator() *validator.Validate {
	validate := validator.New()

	// Slugs become file names in the output directory
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return slugPattern.MatchString(s) && s != "." && s != ".."
	})

	_ = validate.RegisterValidation("httpurl", func(fl validator.FieldLevel) bool {
		u, err := url.Parse(fl.Field().String())
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})

	return validate
}

// Validate checks a decoded configuration file. Pages are checked in slug
// order so the reported error is stable.
func Validate(fc *FileConfig) error {
	if len(fc.Pages) == 0 {
		return ErrNoPages
	}

	validate := newValidator()

	if err := validate.Struct(fc); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slugs := make([]string, 0, len(fc.Pages))
	for slug := range fc.Pages {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)

	for _, slug := range slugs {
		if err := validate.Var(slug, "slug"); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSlug, slug)
		}

		page := fc.Pages[slug]
		if err := validate.Struct(page); err != nil {
			return fmt.Errorf("invalid page %q: %w", slug, err)
		}
	}

	return nil
}
