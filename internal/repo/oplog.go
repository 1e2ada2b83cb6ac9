package repo

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	gocid "github.com/ipfs/go-cid"

	"github.com/AngelEzquerra/jj/internal/store"
)

// Operation records one atomic replacement of the view. The chain of
// operations is what makes a transaction all-or-nothing: the op_head pointer
// file is swapped with an atomic rename, and until that happens no new state
// is visible.
type Operation struct {
	V           int       `json:"v"`
	Parent      string    `json:"parent,omitempty"` // object name of previous operation
	View        string    `json:"view"`             // object name of the view
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// headOperation reads the operation named by the op_head pointer file.
func (r *Repository) headOperation() (*Operation, error) {
	data, err := os.ReadFile(r.opHeadPath)
	if err != nil {
		return nil, fmt.Errorf("read op head: %w", err)
	}
	id, err := store.NameToID(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode op head: %w", err)
	}
	return r.getOperation(id)
}

func (r *Repository) getOperation(id gocid.Cid) (*Operation, error) {
	data, err := r.store.Get(id)
	if err != nil {
		return nil, err
	}
	var op Operation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("unmarshal operation: %w", err)
	}
	return &op, nil
}

// commitView stores the view, appends an operation for it, and atomically
// swings the op_head pointer. On any error the previous state stays in place.
func (r *Repository) commitView(view *View, description string) error {
	viewData, err := store.CanonicalJSON(view.envelope())
	if err != nil {
		return fmt.Errorf("serialize view: %w", err)
	}
	viewID, err := r.store.Put(viewData)
	if err != nil {
		return fmt.Errorf("store view: %w", err)
	}

	parent := ""
	if data, err := os.ReadFile(r.opHeadPath); err == nil {
		parent = strings.TrimSpace(string(data))
	}

	op := &Operation{
		V:           1,
		Parent:      parent,
		View:        store.IDToName(viewID),
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
	opData, err := store.CanonicalJSON(op)
	if err != nil {
		return fmt.Errorf("serialize operation: %w", err)
	}
	opID, err := r.store.Put(opData)
	if err != nil {
		return fmt.Errorf("store operation: %w", err)
	}

	if err := store.SafeWrite(r.opHeadPath, []byte(store.IDToName(opID)+"\n"), 0644); err != nil {
		return fmt.Errorf("write op head: %w", err)
	}
	return nil
}

// Operations walks the operation chain from the head, returning up to n
// operations, newest first.
func (r *Repository) Operations(n int) ([]Operation, error) {
	op, err := r.headOperation()
	if err != nil {
		return nil, err
	}
	var ops []Operation
	for i := 0; i < n && op != nil; i++ {
		ops = append(ops, *op)
		if op.Parent == "" {
			break
		}
		id, err := store.NameToID(op.Parent)
		if err != nil {
			break
		}
		op, err = r.getOperation(id)
		if err != nil {
			break
		}
	}
	return ops, nil
}
