// Package reconcile applies a client-computed diff of one cafe-scoped
// collection inside a single database transaction.
//
// Every row carries a status tag (new, modified, deleted) and an id. Rows not
// yet persisted carry a temporary id starting with TempPrefix. Apply runs the
// phases in a fixed order: delete, create, update. Rows inside a phase are
// dispatched concurrently and written in no particular order. The transaction
// is bound to one connection, so store calls on it never overlap.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"cafemanager/apperr"
)

const TempPrefix = "temp_"

type Status string

const (
	StatusNew      Status = "new"
	StatusModified Status = "modified"
	StatusDeleted  Status = "deleted"
)

// phase names reported to Options.Observe
const (
	PhaseDelete = "delete"
	PhaseCreate = "create"
	PhaseUpdate = "update"
)

// IsTemp reports whether id was generated by the client.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Meta is embedded in every row of a batch save request.
type Meta struct {
	ID     string `json:"id"`
	Status Status `json:"_status"`
	TempID string `json:"_tempId,omitempty"`
}

func (m Meta) RowMeta() Meta { return m }

// ClientID is the id the client knows the row by.
func (m Meta) ClientID() string {
	if m.TempID != "" {
		return m.TempID
	}
	return m.ID
}

type Row interface {
	RowMeta() Meta
}

// Validator is implemented by rows that check their own fields. It is called
// for new and modified rows before the transaction starts.
type Validator interface {
	Validate(status Status) error
}

type Record interface {
	PrimaryKey() string
}

// Store persists one entity type. Every method must constrain its writes to
// cafeID; rows belonging to another cafe are silently left alone.
type Store[T Row, R Record] interface {
	Delete(tx *gorm.DB, cafeID string, ids []string) (int64, error)
	Create(tx *gorm.DB, cafeID string, row T) (R, error)
	Update(tx *gorm.DB, cafeID string, id string, row T) (int64, error)
}

type Plan[T Row] struct {
	Deletes []string
	Creates []T
	Updates []T
	Skipped int
}

// Partition splits rows by status. Deleted and modified rows with a
// temporary id were never persisted and are skipped.
func Partition[T Row](rows []T) (*Plan[T], error) {
	plan := &Plan[T]{}
	seen := make(map[string]struct{})

	for i, row := range rows {
		meta := row.RowMeta()
		switch meta.Status {
		case StatusDeleted:
			if meta.ID == "" || IsTemp(meta.ID) {
				plan.Skipped++
				continue
			}
			if _, dup := seen[meta.ID]; dup {
				continue
			}
			seen[meta.ID] = struct{}{}
			plan.Deletes = append(plan.Deletes, meta.ID)
		case StatusNew:
			if err := validate(row, meta.Status, i); err != nil {
				return nil, err
			}
			plan.Creates = append(plan.Creates, row)
		case StatusModified:
			if meta.ID == "" || IsTemp(meta.ID) {
				plan.Skipped++
				continue
			}
			if err := validate(row, meta.Status, i); err != nil {
				return nil, err
			}
			plan.Updates = append(plan.Updates, row)
		default:
			return nil, apperr.Validation(fmt.Sprintf("Row %d has an unknown _status %q", i, meta.Status)).
				WithCode("INVALID_ROW_STATUS")
		}
	}
	return plan, nil
}

type Created[R Record] struct {
	TempID string `json:"tempId"`
	Row    R      `json:"row"`
}

type Result[R Record] struct {
	Created []Created[R]      `json:"created"`
	IDMap   map[string]string `json:"idMap"`
	Deleted int64             `json:"deleted"`
	Updated int64             `json:"updated"`
	Skipped int               `json:"skipped"`
}

type Options struct {
	// Concurrency bounds the rows in flight within a phase.
	Concurrency int
	// Observe, when set, is told how many rows each phase touched.
	Observe func(phase string, rows int64, elapsed time.Duration)
}

// Apply partitions rows and writes them through store in one transaction.
// Any store error rolls back every phase.
func Apply[T Row, R Record](ctx context.Context, db *gorm.DB, cafeID string, rows []T, store Store[T, R], opts Options) (*Result[R], error) {
	plan, err := Partition(rows)
	if err != nil {
		return nil, err
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, int64, time.Duration) {}
	}

	res := &Result[R]{IDMap: make(map[string]string), Skipped: plan.Skipped}

	// pgx and the mysql driver reject a statement while another one still
	// holds the connection.
	var conn sync.Mutex
	exclusive := func(fn func() error) error {
		conn.Lock()
		defer conn.Unlock()
		return fn()
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		start := time.Now()
		if len(plan.Deletes) > 0 {
			n, err := store.Delete(tx, cafeID, plan.Deletes)
			if err != nil {
				return err
			}
			res.Deleted = n
		}
		observe(PhaseDelete, res.Deleted, time.Since(start))

		start = time.Now()
		created := make([]Created[R], len(plan.Creates))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for i, row := range plan.Creates {
			g.Go(func() error {
				return exclusive(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					rec, err := store.Create(tx.WithContext(gctx), cafeID, row)
					if err != nil {
						return err
					}
					created[i] = Created[R]{TempID: row.RowMeta().ClientID(), Row: rec}
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		observe(PhaseCreate, int64(len(created)), time.Since(start))

		start = time.Now()
		var updated atomic.Int64
		g, gctx = errgroup.WithContext(ctx)
		g.SetLimit(limit)
		for _, row := range plan.Updates {
			g.Go(func() error {
				return exclusive(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					n, err := store.Update(tx.WithContext(gctx), cafeID, row.RowMeta().ID, row)
					if err != nil {
						return err
					}
					updated.Add(n)
					return nil
				})
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		res.Updated = updated.Load()
		observe(PhaseUpdate, res.Updated, time.Since(start))

		res.Created = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range res.Created {
		if c.TempID != "" {
			res.IDMap[c.TempID] = c.Row.PrimaryKey()
		}
	}
	return res, nil
}

func validate[T Row](row T, status Status, index int) error {
	v, ok := any(row).(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(status); err != nil {
		if e := apperr.From(err); e.Kind == apperr.KindValidation {
			return apperr.Validation(fmt.Sprintf("Row %d: %s", index, e.Message)).WithCode(e.Code)
		}
		return err
	}
	return nil
}
