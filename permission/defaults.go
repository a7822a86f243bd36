package permission

// Booking platform permissions.
const (
	UserCreate           = "user:create"
	UserRead             = "user:read"
	UserUpdate           = "user:update"
	UserDelete           = "user:delete"
	UserManageRoles      = "user:manage_roles"
	AppointmentCreate    = "appointment:create"
	AppointmentRead      = "appointment:read"
	AppointmentUpdate    = "appointment:update"
	AppointmentDelete    = "appointment:delete"
	AppointmentManageAll = "appointment:manage_all"
	ServiceCreate        = "service:create"
	ServiceRead          = "service:read"
	ServiceUpdate        = "service:update"
	ServiceDelete        = "service:delete"
	ProductCreate        = "product:create"
	ProductRead          = "product:read"
	ProductUpdate        = "product:update"
	ProductDelete        = "product:delete"
	ProductInventory     = "product:inventory"
	AnalyticsView        = "analytics:view"
	ReportsExport        = "reports:export"
	DashboardView        = "dashboard:view"
	SettingsUpdate       = "settings:update"
	TenantManage         = "tenant:manage"
	BillingManage        = "billing:manage"
	MarketingSend        = "marketing:send"
	NotificationsManage  = "notifications:manage"
	SystemAdmin          = Wildcard
)

// Default role names.
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
	RoleGuest    = "guest"
)

// AllPermissions lists every booking permission in registration order.
func AllPermissions() []string {
	return []string{
		UserCreate, UserRead, UserUpdate, UserDelete, UserManageRoles,
		AppointmentCreate, AppointmentRead, AppointmentUpdate, AppointmentDelete, AppointmentManageAll,
		ServiceCreate, ServiceRead, ServiceUpdate, ServiceDelete,
		ProductCreate, ProductRead, ProductUpdate, ProductDelete, ProductInventory,
		AnalyticsView, ReportsExport, DashboardView,
		SettingsUpdate, TenantManage, BillingManage,
		MarketingSend, NotificationsManage,
	}
}

// DefaultRoles returns the grants of the four built-in booking roles.
func DefaultRoles() map[string][]string {
	return map[string][]string{
		RoleAdmin: {SystemAdmin},
		RoleStaff: {
			UserRead,
			AppointmentCreate, AppointmentRead, AppointmentUpdate, AppointmentDelete, AppointmentManageAll,
			ServiceRead, ServiceUpdate,
			ProductRead, ProductUpdate, ProductInventory,
			DashboardView, AnalyticsView,
			NotificationsManage,
		},
		RoleCustomer: {
			AppointmentCreate, AppointmentRead, AppointmentUpdate,
			ServiceRead, ProductRead,
		},
		RoleGuest: {AppointmentCreate, ServiceRead, ProductRead},
	}
}

// NewDefaultRoleTable registers every booking permission and the default
// roles, then freezes the table.
func NewDefaultRoleTable() (*RoleTable, error) {
	reg := NewRegistry()
	for _, p := range AllPermissions() {
		if _, err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	t := NewRoleTable(reg)
	for role, perms := range DefaultRoles() {
		if err := t.RegisterRole(role, perms); err != nil {
			return nil, err
		}
	}
	t.Freeze()
	return t, nil
}

var displayNames = map[string]string{
	UserCreate:           "Create Users",
	UserRead:             "View Users",
	UserUpdate:           "Edit Users",
	UserDelete:           "Delete Users",
	UserManageRoles:      "Manage User Roles",
	AppointmentCreate:    "Create Appointments",
	AppointmentRead:      "View Appointments",
	AppointmentUpdate:    "Edit Appointments",
	AppointmentDelete:    "Delete Appointments",
	AppointmentManageAll: "Manage All Appointments",
	ServiceCreate:        "Create Services",
	ServiceRead:          "View Services",
	ServiceUpdate:        "Edit Services",
	ServiceDelete:        "Delete Services",
	ProductCreate:        "Create Products",
	ProductRead:          "View Products",
	ProductUpdate:        "Edit Products",
	ProductDelete:        "Delete Products",
	ProductInventory:     "Manage Inventory",
	AnalyticsView:        "View Analytics",
	ReportsExport:        "Export Reports",
	DashboardView:        "View Dashboard",
	SettingsUpdate:       "Update Settings",
	TenantManage:         "Manage Tenant",
	BillingManage:        "Manage Billing",
	MarketingSend:        "Send Marketing",
	NotificationsManage:  "Manage Notifications",
	SystemAdmin:          "System Administrator",
}

// DisplayName returns a human label for permission, or permission itself.
func DisplayName(permission string) string {
	if name, ok := displayNames[permission]; ok {
		return name
	}
	return permission
}
