package syncer

import "fmt"

// Op names the persistence step a Notice refers to.
type Op string

const (
	OpFetch      Op = "fetch"
	OpSaveTree   Op = "save-tree"
	OpSaveFile   Op = "save-file"
	OpLocalLoad  Op = "local-load"
	OpLocalWrite Op = "local-write"
)

// Notice is a non-blocking report of a persistence problem. The in-memory
// tree is never rolled back when one is issued.
type Notice struct {
	Op     Op
	NodeID string
	Err    error
}

func (n Notice) String() string {
	if n.NodeID != "" {
		return fmt.Sprintf("%s %s: %v", n.Op, n.NodeID, n.Err)
	}
	return fmt.Sprintf("%s: %v", n.Op, n.Err)
}
