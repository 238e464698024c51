package scope

import (
	"strconv"
	"strings"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

type referenceKind int

const (
	refNone referenceKind = iota
	refIndex
	refSubLocator
)

// Reference picks one element when a context locator matches several.
// The zero value selects the first match.
type Reference struct {
	kind       referenceKind
	index      int
	subLocator string
}

// Index selects the i-th match (zero-based).
func Index(i int) Reference { return Reference{kind: refIndex, index: i} }

// SubLocator selects the first match whose subtree contains an element
// matching locator.
func SubLocator(locator string) Reference { return Reference{kind: refSubLocator, subLocator: locator} }

// IsZero reports whether no reference was given.
func (r Reference) IsZero() bool { return r.kind == refNone }

// AsIndex returns the index and whether r is an index reference.
func (r Reference) AsIndex() (int, bool) { return r.index, r.kind == refIndex }

// AsSubLocator returns the sub-locator and whether r is one.
func (r Reference) AsSubLocator() (string, bool) { return r.subLocator, r.kind == refSubLocator }

func (r Reference) String() string {
	switch r.kind {
	case refIndex:
		return strconv.Itoa(r.index)
	case refSubLocator:
		return r.subLocator
	default:
		return ""
	}
}

// ParseReference converts a loosely typed reference: nil or "" is none,
// integers and all-digit strings are indexes, other strings are
// sub-locators.
func ParseReference(v interface{}) (Reference, error) {
	switch ref := v.(type) {
	case nil:
		return Reference{}, nil
	case Reference:
		return ref, nil
	case int:
		return Index(ref), nil
	case int32:
		return Index(int(ref)), nil
	case int64:
		return Index(int(ref)), nil
	case uint:
		return Index(int(ref)), nil
	case string:
		s := strings.TrimSpace(ref)
		if s == "" {
			return Reference{}, nil
		}
		if isDigits(s) {
			i, err := strconv.Atoi(s)
			if err != nil {
				return Reference{}, core.ErrInvalidReference.WithMessagef("reference %q is not a valid index", s).WithCause(err)
			}
			return Index(i), nil
		}
		return SubLocator(s), nil
	default:
		return Reference{}, core.ErrInvalidReference.WithMessagef("unsupported reference type %T", v)
	}
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
