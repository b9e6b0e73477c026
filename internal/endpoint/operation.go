package endpoint

import (
	"github.com/conduit-lang/waypoint/internal/route"
)

// Operation represents a conventional REST operation
type Operation int

const (
	// OpCustom is an endpoint with an explicit route
	OpCustom Operation = iota
	// OpIndex represents the list operation (GET "")
	OpIndex
	// OpShow represents the read operation (GET ":id")
	OpShow
	// OpCreate represents the create operation (POST "")
	OpCreate
	// OpUpdate represents the update operation (PUT ":id")
	OpUpdate
	// OpPatch represents the partial update operation (PATCH ":id")
	OpPatch
	// OpDestroy represents the delete operation (DELETE ":id")
	OpDestroy
)

// conventions maps function names to their implied operation
var conventions = map[string]Operation{
	"index":   OpIndex,
	"show":    OpShow,
	"create":  OpCreate,
	"update":  OpUpdate,
	"patch":   OpPatch,
	"destroy": OpDestroy,
}

// String returns the string representation of Operation
func (o Operation) String() string {
	switch o {
	case OpCustom:
		return "custom"
	case OpIndex:
		return "index"
	case OpShow:
		return "show"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpPatch:
		return "patch"
	case OpDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// Decl returns the route implied by the operation
func (o Operation) Decl() (route.Decl, bool) {
	switch o {
	case OpIndex:
		return route.Get(""), true
	case OpShow:
		return route.Get(":id"), true
	case OpCreate:
		return route.Post(""), true
	case OpUpdate:
		return route.Put(":id"), true
	case OpPatch:
		return route.Patch(":id"), true
	case OpDestroy:
		return route.Delete(":id"), true
	default:
		return route.Decl{}, false
	}
}

// Convention returns the operation implied by a function name
func Convention(name string) (Operation, bool) {
	op, ok := conventions[name]
	return op, ok
}
