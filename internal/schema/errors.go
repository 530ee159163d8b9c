package schema

import "fmt"

// NotFoundError names a (season, category, kind) key the registry lacks.
type NotFoundError struct {
	Season   int
	Category Category
	Kind     Kind
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schema: no layout for season %d, %s %s", e.Season, e.Category, e.Kind)
}

// SplitNotFoundError names a split the registry has no id for.
type SplitNotFoundError struct {
	Season   int
	Category Category
	Split    string
}

func (e *SplitNotFoundError) Error() string {
	return fmt.Sprintf("schema: no %s split %q in season %d", e.Category, e.Split, e.Season)
}
