package domain

// TableRef names a table produced or consumed by a function, before
// resolution against the tables catalog.
type TableRef struct {
	Collection string // empty means "the function's own collection"
	Table      string
}

// Dependency is a parsed (not yet resolved) dependency descriptor:
// "[<collection>/]<table>[@<versions>]".
type Dependency struct {
	Ref      TableRef
	Versions Versions
}

// TriggerDescriptor is a parsed (not yet resolved) trigger descriptor:
// "[<collection>/]<table>". Triggers never carry version info.
type TriggerDescriptor struct {
	Ref TableRef
}

// Relationships is the unresolved declaration attached to a function:
// the tables it produces, the dependencies it consumes, and the
// triggers that fire it. ExplicitTriggers distinguishes "the user wrote
// a trigger list, even an empty one" from "derive triggers from
// dependencies".
type Relationships struct {
	Produces         []TableRef
	Dependencies     []Dependency
	Triggers         []TriggerDescriptor
	ExplicitTriggers bool
}

// ResolvedRef is a dependency or trigger after extraction: joined
// against the tables catalog so collection and dataset identifiers are
// concrete.
type ResolvedRef struct {
	CollectionName string
	CollectionID   string
	DatasetName    string
	DatasetID      string
	Table          string
	Versions       Versions // zero value for resolved triggers
}
