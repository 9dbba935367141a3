package template

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/facegate/embedding"
)

// ErrNotEmpty is returned by Restore when the target directory already
// holds templates.
var ErrNotEmpty = errors.New("template directory is not empty")

// Restore writes templates into a fresh store at dir, preserving
// their original creation times. The target must hold no templates;
// restoring over live enrollments would silently merge two histories.
func Restore(dir string, dim int, templates []Template, optFns ...func(o *Options)) error {
	s, err := Open(dir, dim, optFns...)
	if err != nil {
		return err
	}
	if s.Len() > 0 {
		return ErrNotEmpty
	}

	for _, tmpl := range templates {
		if strings.TrimSpace(tmpl.Identity) == "" {
			return ErrEmptyIdentity
		}
		if err := embedding.Validate(tmpl.Embedding, dim); err != nil {
			return fmt.Errorf("%w: identity %q: %w", ErrInvalidEmbedding, tmpl.Identity, err)
		}
		if err := s.write(tmpl); err != nil {
			return err
		}
	}

	return nil
}
