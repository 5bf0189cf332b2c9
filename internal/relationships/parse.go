// Package relationships implements the dependency/trigger extractor
// (spec component C7): it parses a function's declared dependency and
// trigger descriptors, derives implicit triggers where none are
// declared explicitly, and resolves every reference against the tables
// catalog.
package relationships

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tabsdata/tabsdata/internal/domain"
)

const nameMaxLen = 100

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// InvalidDescriptorError reports a malformed dependency or trigger
// descriptor string.
type InvalidDescriptorError struct {
	Descriptor string
	Reason     string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid descriptor %q: %s", e.Descriptor, e.Reason)
}

func validName(s string, allowDot bool) bool {
	if s == "" || len(s) > nameMaxLen {
		return false
	}
	if allowDot {
		return tablePattern.MatchString(s)
	}
	return namePattern.MatchString(s)
}

// splitCollectionTable splits "[<collection>/]<table>" into its parts.
// An absent collection is returned as "".
func splitCollectionTable(ref string) (collection, table string, err error) {
	if idx := strings.IndexByte(ref, '/'); idx >= 0 {
		collection, table = ref[:idx], ref[idx+1:]
		if !validName(collection, false) {
			return "", "", fmt.Errorf("invalid collection name %q", collection)
		}
	} else {
		table = ref
	}
	if !validName(table, true) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}
	return collection, table, nil
}

// ParseDependency parses "[<collection>/]<table>[@<versions>]".
func ParseDependency(descriptor string) (domain.Dependency, error) {
	ref, versionsSyntax, hasVersions := strings.Cut(descriptor, "@")
	collection, table, err := splitCollectionTable(ref)
	if err != nil {
		return domain.Dependency{}, &InvalidDescriptorError{Descriptor: descriptor, Reason: err.Error()}
	}
	versions := domain.NoneVersions()
	if hasVersions {
		versions, err = ParseVersions(versionsSyntax)
		if err != nil {
			return domain.Dependency{}, &InvalidDescriptorError{Descriptor: descriptor, Reason: err.Error()}
		}
	}
	return domain.Dependency{Ref: domain.TableRef{Collection: collection, Table: table}, Versions: versions}, nil
}

// ParseTrigger parses "[<collection>/]<table>". A "@" suffix is an error:
// triggers never carry version info.
func ParseTrigger(descriptor string) (domain.TriggerDescriptor, error) {
	if strings.Contains(descriptor, "@") {
		return domain.TriggerDescriptor{}, &InvalidDescriptorError{Descriptor: descriptor, Reason: "triggers may not declare a versions expression"}
	}
	collection, table, err := splitCollectionTable(descriptor)
	if err != nil {
		return domain.TriggerDescriptor{}, &InvalidDescriptorError{Descriptor: descriptor, Reason: err.Error()}
	}
	return domain.TriggerDescriptor{Ref: domain.TableRef{Collection: collection, Table: table}}, nil
}

// ParseVersions parses the textual versions syntax:
//
//	HEAD            -> Single(Head(0))
//	HEAD~k          -> Single(Head(-k))
//	id:<fixed-id>   -> Single(Fixed(id))
//	v1,v2,...       -> List(v1, v2, ...), each element HEAD/HEAD~k/id:<fixed-id>
//	a..b            -> Range(a, b), endpoints HEAD/HEAD~k/id:<fixed-id>
func ParseVersions(syntax string) (domain.Versions, error) {
	syntax = strings.TrimSpace(syntax)
	if syntax == "" {
		return domain.Versions{}, fmt.Errorf("empty versions expression")
	}
	if from, to, ok := strings.Cut(syntax, ".."); ok {
		fromV, err := parseVersion(from)
		if err != nil {
			return domain.Versions{}, err
		}
		toV, err := parseVersion(to)
		if err != nil {
			return domain.Versions{}, err
		}
		return domain.RangeVersions(fromV, toV), nil
	}
	if strings.Contains(syntax, ",") {
		parts := strings.Split(syntax, ",")
		list := make([]domain.Version, 0, len(parts))
		for _, p := range parts {
			v, err := parseVersion(strings.TrimSpace(p))
			if err != nil {
				return domain.Versions{}, err
			}
			list = append(list, v)
		}
		return domain.ListVersions(list), nil
	}
	v, err := parseVersion(syntax)
	if err != nil {
		return domain.Versions{}, err
	}
	return domain.SingleVersion(v), nil
}

func parseVersion(s string) (domain.Version, error) {
	switch {
	case s == "HEAD":
		return domain.Head(0), nil
	case strings.HasPrefix(s, "HEAD~"):
		k, err := strconv.Atoi(s[len("HEAD~"):])
		if err != nil || k < 0 {
			return domain.Version{}, fmt.Errorf("invalid relative offset %q", s)
		}
		return domain.Head(-k), nil
	case strings.HasPrefix(s, "id:"):
		id := s[len("id:"):]
		if id == "" {
			return domain.Version{}, fmt.Errorf("empty fixed version id in %q", s)
		}
		return domain.Fixed(id), nil
	default:
		return domain.Version{}, fmt.Errorf("unrecognized version syntax %q", s)
	}
}
