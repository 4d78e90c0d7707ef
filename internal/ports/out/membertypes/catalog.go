package membertypes

import (
	"context"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
)

// MemberType is one entry of the host's member-type catalog.
type MemberType struct {
	ID    domain.MemberType
	Label string
}

// Catalog lists the member types registered on the host platform.
//
// Result ordering expectations:
// - entries are returned in the catalog's display order; callers must not re-sort them.
type Catalog interface {
	ListMemberTypes(ctx context.Context) ([]MemberType, error)
}
