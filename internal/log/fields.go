package log

// Standard field names for structured logging
const (
	FieldComponent = "component"
	FieldOperation = "operation"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
	FieldRequestID = "request_id"

	FieldItemID       = "item_id"
	FieldItemName     = "item_name"
	FieldCategory     = "category"
	FieldPriceCents   = "price_cents"
	FieldVersion      = "version"
	FieldGroupCount   = "group_count"
	FieldItemCount    = "item_count"
	FieldBatchSize    = "batch_size"
	FieldExportStatus = "export_status"

	FieldHTTPMethod = "http_method"
	FieldHTTPPath   = "http_path"
	FieldHTTPStatus = "http_status"
	FieldRemoteAddr = "remote_addr"
)

// Component names used across the application
const (
	ComponentCollection = "collection"
	ComponentStorage    = "storage"
	ComponentEvents     = "events"
	ComponentExport     = "export"
	ComponentWorker     = "worker"
	ComponentHTTP       = "http"
	ComponentConfig     = "config"
	ComponentMain       = "main"
)

// Operation names for common operations
const (
	OpAddItem    = "add_item"
	OpUpdateItem = "update_item"
	OpRemoveItem = "remove_item"
	OpListItems  = "list_items"
	OpProject    = "project"
	OpExportRow  = "export_row"
	OpCatchUp    = "catch_up"
	OpMigrate    = "migrate"
)
