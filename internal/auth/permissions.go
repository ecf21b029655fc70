package auth

import "github.com/josh-kwaku/pos-loyalty/internal/domain"

type Permission string

const (
	PermLoyaltyView         Permission = "loyalty.view"
	PermLoyaltyAdjust       Permission = "loyalty.adjust"
	PermLoyaltyRedeem       Permission = "loyalty.redeem"
	PermLoyaltyAccrue       Permission = "loyalty.accrue"
	PermLoyaltyApprove      Permission = "loyalty.approve"
	PermLoyaltySettingsView Permission = "loyalty.settings.view"
	PermLoyaltySettingsEdit Permission = "loyalty.settings.edit"
)

var rolePermissions = map[domain.UserRole]map[Permission]bool{
	domain.UserRoleAdmin: {
		PermLoyaltyView:         true,
		PermLoyaltyAdjust:       true,
		PermLoyaltyRedeem:       true,
		PermLoyaltyAccrue:       true,
		PermLoyaltyApprove:      true,
		PermLoyaltySettingsView: true,
		PermLoyaltySettingsEdit: true,
	},
	domain.UserRoleManager: {
		PermLoyaltyView:         true,
		PermLoyaltyAdjust:       true,
		PermLoyaltyRedeem:       true,
		PermLoyaltyAccrue:       true,
		PermLoyaltyApprove:      true,
		PermLoyaltySettingsView: true,
	},
	domain.UserRoleCashier: {
		PermLoyaltyView:   true,
		PermLoyaltyRedeem: true,
		PermLoyaltyAccrue: true,
	},
}

func HasPermission(role domain.UserRole, perm Permission) bool {
	return rolePermissions[role][perm]
}
