// ABOUTME: Permission catalog and effective permission evaluation
// ABOUTME: Primary accounts hold the full catalog; delegated principals hold exactly their stored list

package auth

// Permission tags known to the dashboard.
const (
	PermDashboard     = "dashboard"
	PermOrder         = "order"
	PermShipments     = "shipments"
	PermManifest      = "manifest"
	PermReceived      = "received"
	PermNewOrder      = "new-order"
	PermNDRList       = "ndr-list"
	PermWeightDispute = "weight-dispute"
	PermFreight       = "freight"
	PermWallet        = "wallet"
	PermInvoice       = "invoice"
	PermLedger        = "ledger"
	PermCODRemittance = "cod-remittance"
	PermSupport       = "support"
	PermWarehouse     = "warehouse"
	PermService       = "service"
	PermItemsSKU      = "items-sku"
	PermStores        = "stores"
	PermPriority      = "priority"
	PermLabel         = "label"
	PermManageUsers   = "manage-users"
)

// permissionCatalog is the complete set held by every primary account.
// This is the single source of truth; it is never read back from storage.
var permissionCatalog = []string{
	PermDashboard,
	PermOrder,
	PermShipments,
	PermManifest,
	PermReceived,
	PermNewOrder,
	PermNDRList,
	PermWeightDispute,
	PermFreight,
	PermWallet,
	PermInvoice,
	PermLedger,
	PermCODRemittance,
	PermSupport,
	PermWarehouse,
	PermService,
	PermItemsSKU,
	PermStores,
	PermPriority,
	PermLabel,
	PermManageUsers,
}

// PermissionCatalog returns a copy of the full permission catalog.
func PermissionCatalog() []string {
	result := make([]string, len(permissionCatalog))
	copy(result, permissionCatalog)
	return result
}

// IsKnownPermission returns true if tag is in the catalog.
func IsKnownPermission(tag string) bool {
	for _, p := range permissionCatalog {
		if p == tag {
			return true
		}
	}
	return false
}

// EffectivePermissions returns the permissions a principal holds.
// Returns nil for a nil principal.
func EffectivePermissions(p Principal) []string {
	switch v := p.(type) {
	case *PrimaryAccount:
		return PermissionCatalog()
	case *DelegatedPrincipal:
		result := make([]string, len(v.Permissions))
		copy(result, v.Permissions)
		return result
	default:
		return nil
	}
}

// EffectivePermissionsForKind resolves permissions for a stored session,
// where only the kind and the stored list are known.
func EffectivePermissionsForKind(kind Kind, stored []string) []string {
	switch kind {
	case KindPrimary:
		return PermissionCatalog()
	case KindDelegated:
		result := make([]string, len(stored))
		copy(result, stored)
		return result
	default:
		return nil
	}
}

// HasPermission returns true if the principal holds tag.
func HasPermission(p Principal, tag string) bool {
	return ContainsPermission(EffectivePermissions(p), tag)
}

// ContainsPermission reports whether tag is present in perms.
func ContainsPermission(perms []string, tag string) bool {
	for _, p := range perms {
		if p == tag {
			return true
		}
	}
	return false
}
