package migrate

import (
	"time"

	"petalsync/migrate/internal/canonical"
	"petalsync/migrate/internal/domain"
	"petalsync/migrate/internal/fsvalue"
	"petalsync/migrate/internal/project"
	"petalsync/migrate/internal/source"
)

// refColumns names the flat record keys whose values are v3 document
// references and must be rewritten to canonical v4 ids alongside the
// record's own id.
var refColumns = map[string][]string{
	"orders":          {"branch_id", "customer_id"},
	"hr_documents":    {"branch_id"},
	"calendar_events": {"branch_id"},
}

// TransformDocument runs one source document through the full pipeline:
// normalize store-native values, snake-case the keys, hoist the known
// nested sub-records, canonicalize identifiers, then project into
// declared columns plus overflow. The result is ready for UpsertBatch.
func TransformDocument(table string, doc source.Document) domain.Record {
	fields := fsvalue.NormalizeMap(doc.Fields)
	flat, _ := project.SnakeKeys(fields).(map[string]any)
	if flat == nil {
		flat = make(map[string]any)
	}
	flat = project.Flatten(flat)

	flat["id"] = canonical.ID(doc.ID)
	for _, col := range refColumns[table] {
		if ref, ok := flat[col].(string); ok && ref != "" {
			flat[col] = canonical.ID(ref)
		}
	}
	if _, ok := flat["created_at"]; !ok && !doc.CreateTime.IsZero() {
		flat["created_at"] = doc.CreateTime.UTC().Format(time.RFC3339)
	}

	cols, extra, ok := project.Split(table, flat)
	if ok && extra != nil {
		cols["extra"] = extra
	}
	return cols
}
