package permissions

import "fmt"

var crudActions = []string{"list", "read", "create", "update", "delete"}

var actionVerbs = map[string]string{
	"list":     "List",
	"read":     "View",
	"create":   "Create",
	"update":   "Update",
	"delete":   "Delete",
	"approve":  "Approve",
	"reject":   "Reject",
	"cancel":   "Cancel",
	"process":  "Process",
	"post":     "Post",
	"reverse":  "Reverse",
	"publish":  "Publish",
	"close":    "Close",
	"assign":   "Assign",
	"revoke":   "Revoke",
	"resend":   "Resend",
	"audit":    "Audit",
	"receive":  "Receive",
	"dispatch": "Dispatch",
	"file":     "File",
	"export":   "Export",
	"send":     "Send",
}

// resource expands a resource into one permission per action. Without explicit actions
// the CRUD set is used.
func resource(module, name, label string, actions ...string) []*Permission {
	if len(actions) == 0 {
		actions = crudActions
	}
	perms := make([]*Permission, 0, len(actions))
	for _, action := range actions {
		verb, ok := actionVerbs[action]
		if !ok {
			verb = action
		}
		perms = append(perms, &Permission{
			Code:        fmt.Sprintf("%s.%s.%s", module, name, action),
			Description: fmt.Sprintf("%s %s", verb, label),
		})
	}
	return perms
}

func catalog(groups ...[]*Permission) []*Permission {
	var all []*Permission
	for _, group := range groups {
		all = append(all, group...)
	}
	return all
}

func init() {
	MustRegister(catalog(
		// masterdata
		resource("masterdata", "article", "articles"),
		resource("masterdata", "barcode", "barcodes"),
		resource("masterdata", "classification", "classifications"),
		resource("masterdata", "color", "colors"),
		resource("masterdata", "company", "companies"),
		resource("masterdata", "customer", "customers"),
		resource("masterdata", "depstore", "department stores"),
		resource("masterdata", "division", "divisions"),
		resource("masterdata", "model", "article models"),
		resource("masterdata", "price", "price lists"),
		resource("masterdata", "size", "sizes"),
		resource("masterdata", "supplier", "suppliers"),
		resource("masterdata", "user", "users"),
		resource("masterdata", "warehouse", "warehouses"),

		// accounting
		resource("accounting", "account", "chart of accounts"),
		resource("accounting", "journal", "journal entries", "list", "read", "create", "update", "delete", "post", "reverse"),
		resource("accounting", "period", "fiscal periods", "list", "read", "close"),
		resource("accounting", "report", "financial reports", "read", "export"),

		// inventory
		resource("inventory", "adjustment", "stock adjustments"),
		resource("inventory", "opname", "stock opnames"),
		resource("inventory", "rfq", "requests for quotation", "list", "read", "create", "update", "delete", "publish", "close"),
		resource("inventory", "stock", "stock levels", "list", "read", "create"),
		resource("inventory", "transfer", "stock transfers"),

		// sales
		resource("sales", "quotation", "sales quotations"),
		resource("sales", "order", "sales orders", "list", "read", "create", "update", "delete", "approve", "cancel"),
		resource("sales", "return", "sales returns", "list", "read", "create", "approve"),

		// shipping
		resource("shipping", "delivery", "delivery orders", "list", "read", "create", "update", "dispatch"),
		resource("shipping", "carrier", "carriers"),

		// finance
		resource("finance", "invoice", "invoices", "read", "create", "update", "delete"),
		resource("finance", "payment", "payments", "read", "create", "update", "delete"),

		// tax
		resource("tax", "rate", "tax rates"),
		resource("tax", "return", "tax returns", "list", "read", "create", "file"),

		// hr
		resource("hr", "employee", "employees"),
		resource("hr", "leave", "leave requests", "list", "read", "create", "update", "delete", "approve", "reject", "cancel"),
		resource("hr", "payroll", "payroll runs", "list", "read", "create", "update", "delete", "approve", "process"),
		resource("hr", "performance", "performance reviews"),
		resource("hr", "training", "training programs"),

		// procurement
		resource("procurement", "request", "purchase requests", "list", "read", "create", "update", "delete", "approve", "reject"),
		resource("procurement", "order", "purchase orders", "list", "read", "create", "update", "delete", "approve", "receive"),

		// production
		resource("production", "workorder", "work orders", "list", "read", "create", "update", "delete", "close"),
		resource("production", "bom", "bills of materials"),

		// calendar
		resource("calendar", "event", "calendar events"),

		// notifications
		resource("notifications", "notification", "notifications", "list", "read", "update", "delete", "send"),

		// invitations
		resource("invitations", "invitation", "invitations", "list", "read", "create", "delete", "resend", "revoke"),

		// profile
		resource("profile", "profile", "own profile", "read", "update"),

		// settings
		resource("settings", "setting", "system settings", "list", "read", "update", "audit"),

		// admin
		resource("admin", "role", "roles"),
		resource("admin", "permission", "permissions", "list", "assign", "revoke"),
		resource("admin", "audit", "RBAC audit log", "list"),
	)...)
}
