package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// descriptorCache memoizes the introspected schema description. The legacy
// catalog does not change under us during a process lifetime.
type descriptorCache struct {
	mu          sync.Mutex
	description string
	columns     map[string]bool
	loaded      bool
}

type objectInfo struct {
	name    string
	columns []columnInfo
}

type columnInfo struct {
	name    string
	sqlType string
}

// DescribeObjects renders the allowed objects and their columns as a
// compact natural-language catalog for the query generator.
func (s *Store) DescribeObjects(ctx context.Context) (string, error) {
	if err := s.loadDescriptor(ctx); err != nil {
		return "", err
	}
	return s.descriptor.description, nil
}

// ColumnUniverse returns the lowercase set of every column name across the
// allowed objects. The validator uses it to reject hallucinated columns.
func (s *Store) ColumnUniverse(ctx context.Context) (map[string]bool, error) {
	if err := s.loadDescriptor(ctx); err != nil {
		return nil, err
	}
	return s.descriptor.columns, nil
}

func (s *Store) loadDescriptor(ctx context.Context) error {
	s.descriptor.mu.Lock()
	defer s.descriptor.mu.Unlock()
	if s.descriptor.loaded {
		return nil
	}

	objects := make([]objectInfo, 0, len(s.allowedObjects))
	for _, name := range s.allowedObjects {
		columns, err := s.introspectObject(ctx, name)
		if err != nil {
			return fmt.Errorf("sqlstore: introspect %s: %w", name, err)
		}
		objects = append(objects, objectInfo{name: name, columns: columns})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].name < objects[j].name })

	var b strings.Builder
	universe := make(map[string]bool)
	for _, obj := range objects {
		fmt.Fprintf(&b, "Table %s", obj.name)
		if hint, ok := s.objectHints[obj.name]; ok && hint != "" {
			fmt.Fprintf(&b, " (%s)", hint)
		}
		b.WriteString(":\n")
		for _, col := range obj.columns {
			fmt.Fprintf(&b, "  - %s %s\n", col.name, col.sqlType)
			universe[strings.ToLower(col.name)] = true
		}
	}
	s.descriptor.description = b.String()
	s.descriptor.columns = universe
	s.descriptor.loaded = true
	return nil
}

func (s *Store) introspectObject(ctx context.Context, object string) ([]columnInfo, error) {
	var query string
	switch s.dialect.Name() {
	case "oracle":
		query = fmt.Sprintf(
			"SELECT column_name, data_type FROM all_tab_columns WHERE table_name = UPPER('%s') ORDER BY column_id", object)
	default:
		query = fmt.Sprintf("PRAGMA table_info(%q)", object)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []columnInfo
	if s.dialect.Name() == "oracle" {
		for rows.Next() {
			var col columnInfo
			if err := rows.Scan(&col.name, &col.sqlType); err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}
	} else {
		// PRAGMA table_info returns cid, name, type, notnull, dflt_value, pk.
		for rows.Next() {
			var cid, notNull, pk int
			var dflt any
			var col columnInfo
			if err := rows.Scan(&cid, &col.name, &col.sqlType, &notNull, &dflt, &pk); err != nil {
				return nil, err
			}
			columns = append(columns, col)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("object %s not found or has no columns", object)
	}
	return columns, nil
}
