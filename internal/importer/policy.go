package importer

import (
	"fmt"
	"strings"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// Mode selects how rows whose catalog number already exists are handled.
type Mode string

const (
	ModeSkip   Mode = "skip"
	ModeUpdate Mode = "update"
	ModeFail   Mode = "fail"
)

// ParseMode validates a duplicate mode name. Empty means skip.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeSkip:
		return ModeSkip, nil
	case ModeUpdate:
		return ModeUpdate, nil
	case ModeFail:
		return ModeFail, nil
	default:
		return "", services.Wrap(services.ErrConfiguration, "importer", "parse mode",
			fmt.Sprintf("unknown duplicate mode %q (want skip, update, or fail)", value), nil)
	}
}

// Action is what the policy decides for one row.
type Action int

const (
	ActionCreate Action = iota
	ActionSkip
	ActionUpdate
	ActionFail
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionSkip:
		return "skip"
	case ActionUpdate:
		return "update"
	case ActionFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Resolve maps a search outcome to an action. No match always creates.
func (m Mode) Resolve(match aspace.Match) Action {
	if !match.Exists {
		return ActionCreate
	}
	switch m {
	case ModeUpdate:
		return ActionUpdate
	case ModeFail:
		return ActionFail
	default:
		return ActionSkip
	}
}

// DuplicateError aborts a fail-mode run when a catalog number already exists.
type DuplicateError struct {
	CatalogNumber string
	URI           string
	RowNumber     int
}

func (e *DuplicateError) Error() string {
	return "Duplicate component ID: " + e.CatalogNumber
}

// Is lets errors.Is match services.ErrDuplicate.
func (e *DuplicateError) Is(target error) bool {
	return target == services.ErrDuplicate
}
