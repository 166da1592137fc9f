package viewer

import (
	"fmt"

	"github.com/woozymasta/routeview/internal/config"
)

// StyleSwitcher resolves style identifiers to the configured style references.
type StyleSwitcher struct {
	styles []config.Style
	active string
}

// NewStyleSwitcher creates a switcher starting at the default style.
func NewStyleSwitcher(styles []config.Style, initial string) *StyleSwitcher {
	return &StyleSwitcher{styles: styles, active: initial}
}

// Resolve returns the style for id.
func (s *StyleSwitcher) Resolve(id string) (config.Style, error) {
	for _, style := range s.styles {
		if style.ID == id {
			return style, nil
		}
	}

	return config.Style{}, fmt.Errorf("%w: %q", ErrUnknownStyle, id)
}

// Active returns the identifier of the current style.
func (s *StyleSwitcher) Active() string {
	return s.active
}

func (s *StyleSwitcher) activate(id string) {
	s.active = id
}
