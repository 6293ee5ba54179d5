package vault

import (
	"fmt"
	"strings"

	"frizo/isolation_vaults/pkg/utils"
)

// AllowList restricts which markets may be held against the vault token.
type AllowList struct {
	restricted bool
	ids        []uint64
}

// Unrestricted allows every market.
func Unrestricted() AllowList {
	return AllowList{}
}

// Restricted allows only ids. An empty call still restricts, allowing nothing.
func Restricted(ids ...uint64) AllowList {
	return AllowList{restricted: true, ids: append([]uint64(nil), ids...)}
}

// NewAllowList maps the admin representation, where an empty list means no
// restriction, onto an AllowList.
func NewAllowList(ids []uint64) AllowList {
	if len(ids) == 0 {
		return Unrestricted()
	}
	return Restricted(ids...)
}

func (a AllowList) IsRestricted() bool {
	return a.restricted
}

func (a AllowList) Allows(marketID uint64) bool {
	return !a.restricted || utils.Contains(a.ids, marketID)
}

// IDs returns the allowed markets, empty when unrestricted.
func (a AllowList) IDs() []uint64 {
	return append([]uint64(nil), a.ids...)
}

func (a AllowList) String() string {
	if !a.restricted {
		return "unrestricted"
	}
	return "[" + strings.Join(utils.Map(a.ids, func(id uint64) string { return fmt.Sprint(id) }), ",") + "]"
}
