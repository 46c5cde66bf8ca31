package nav

// View identifies one screen in the client's finite navigation space.
type View string

const (
	ViewHome            View = "home"
	ViewDetail          View = "detail"
	ViewSell            View = "sell"
	ViewSellerDashboard View = "seller_dashboard"
	ViewSellerProfile   View = "seller_profile"
	ViewAdminPanel      View = "admin_panel"
	ViewAdminLogin      View = "admin_login"
	ViewLoginPortal     View = "login_portal"
	ViewProfile         View = "profile"
	ViewInbox           View = "inbox"
)

func AllViews() []View {
	return []View{
		ViewHome,
		ViewDetail,
		ViewSell,
		ViewSellerDashboard,
		ViewSellerProfile,
		ViewAdminPanel,
		ViewAdminLogin,
		ViewLoginPortal,
		ViewProfile,
		ViewInbox,
	}
}

func Known(view View) bool {
	switch view {
	case ViewHome, ViewDetail, ViewSell, ViewSellerDashboard, ViewSellerProfile,
		ViewAdminPanel, ViewAdminLogin, ViewLoginPortal, ViewProfile, ViewInbox:
		return true
	default:
		return false
	}
}

// Path maps a view to its friendly path string. Pure mapping, no state.
func Path(view View) string {
	switch view {
	case ViewHome:
		return "/"
	case ViewDetail:
		return "/vehicle"
	case ViewSell:
		return "/sell"
	case ViewSellerDashboard:
		return "/seller/dashboard"
	case ViewSellerProfile:
		return "/seller"
	case ViewAdminPanel:
		return "/admin"
	case ViewAdminLogin:
		return "/admin/login"
	case ViewLoginPortal:
		return "/login"
	case ViewProfile:
		return "/profile"
	case ViewInbox:
		return "/inbox"
	default:
		return "/"
	}
}

func isLoginView(view View) bool {
	return view == ViewLoginPortal || view == ViewAdminLogin
}

// Roles recognized by the transition guards.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
	RoleAdmin    = "admin"
)
