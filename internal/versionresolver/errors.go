package versionresolver

import (
	"fmt"
	"strings"
)

// FixedTableDataVersionsNotFound is returned when one or more
// explicitly id-referenced (Fixed) data versions do not exist. Unlike
// Head positions, a Fixed miss is always an error, never a None.
type FixedTableDataVersionsNotFound struct {
	IDs []string
}

func (e *FixedTableDataVersionsNotFound) Error() string {
	return fmt.Sprintf("fixed data versions not found: %s", strings.Join(e.IDs, ", "))
}
