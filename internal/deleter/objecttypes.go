package deleter

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Well-known polymorphic owner type names from the object lookup table.
const (
	TypeNameContact   = "dstContact"
	TypeNameCommunity = "dstCommunity"
	TypeNameTenant    = "dstTenant"
)

// knownTypeIDs are the historically stable lookup values, kept as a
// cross-check against the live table. The lookup table is authoritative; a
// mismatch is logged, never silently corrected.
var knownTypeIDs = map[string]int64{
	TypeNameContact:        1,
	"dstAdditionalContact": 2,
	"dstContactNote":       3,
	"dstUser":              5,
	"dstLogicalUnit":       41,
	"dstServiceProvider":   44,
	TypeNameCommunity:      49,
	"dstInvoice":           71,
	TypeNameTenant:         94,
	"dstSmTenantActivity":  109,
	"dstSmOwner":           110,
	"dstBill":              115,
	"dstFundingBatch":      117,
	"dstCycleNote":         118,
}

const loadObjectTypesSQL = `SELECT object_type_id, object_type FROM object`

// ObjectTypes is the read-only name→id map for polymorphic associations,
// loaded once before any polymorphic delete executes.
type ObjectTypes struct {
	byName map[string]int64
}

// LoadObjectTypes reads the object lookup table. An empty table is an error:
// polymorphic deletes cannot proceed without resolved type IDs.
func LoadObjectTypes(ctx context.Context, db *sqlx.DB, log *logrus.Entry) (*ObjectTypes, error) {
	rows, err := db.QueryContext(ctx, loadObjectTypesSQL)
	if err != nil {
		return nil, fmt.Errorf("loading object types: %w", err)
	}
	defer rows.Close()

	byName := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning object type: %w", err)
		}
		byName[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading object types: %w", err)
	}
	if len(byName) == 0 {
		return nil, fmt.Errorf("object lookup table is empty")
	}

	for name, want := range knownTypeIDs {
		if got, ok := byName[name]; ok && got != want {
			log.WithFields(logrus.Fields{
				"object_type": name,
				"lookup_id":   got,
				"known_id":    want,
			}).Warn("object type id differs from historical value; using lookup table")
		}
	}

	log.WithField("count", len(byName)).Info("loaded object types")
	return &ObjectTypes{byName: byName}, nil
}

// ID resolves a type name. Failure is structural: the caller must abort
// rather than silently skip polymorphic rows.
func (o *ObjectTypes) ID(name string) (int64, error) {
	id, ok := o.byName[name]
	if !ok {
		return 0, structural(fmt.Errorf("object type %q not found in lookup table", name))
	}
	return id, nil
}
