package project

// Declared column allow-lists per target table, in schema order. These
// mirror the v4 Postgres schema and are maintained by hand when the
// schema changes; they are not enforced against the live database.
var tableColumns = map[string][]string{
	"orders": {
		"id",
		"order_number",
		"branch_id",
		"branch_name",
		"ordered_at",
		"receipt_type",
		"orderer_name",
		"orderer_contact",
		"customer_id",
		"items",
		"total",
		"payment_method",
		"payment_status",
		"payment_completed_at",
		"status",
		"completed_at",
		"transfer_info",
		"outsource_info",
		"message",
		"request_note",
		"created_at",
		"updated_at",
	},
	"customers": {
		"id",
		"name",
		"contact",
		"email",
		"address",
		"grade",
		"memo",
		"created_at",
		"updated_at",
	},
	"branches": {
		"id",
		"name",
		"address",
		"phone",
		"manager_name",
		"active",
		"created_at",
		"updated_at",
	},
	"hr_documents": {
		"id",
		"branch_id",
		"employee_name",
		"document_type",
		"file_path",
		"issued_at",
		"created_at",
	},
	"calendar_events": {
		"id",
		"branch_id",
		"title",
		"starts_at",
		"ends_at",
		"all_day",
		"memo",
		"created_at",
	},
	"daily_stats": {
		"id",
		"date",
		"total_revenue",
		"total_orders",
		"total_settled",
		"branches",
		"updated_at",
	},
}

// Columns returns the declared column list for a table, or nil when the
// table has no declared schema.
func Columns(table string) []string {
	return tableColumns[table]
}
