package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldExpenseID   = "expense_id"
	FieldTitle       = "title"
	FieldAmountCents = "amount_cents"
	FieldCategory    = "category"
	FieldDay         = "day"
	FieldMode        = "mode"
	FieldWindowStart = "window_start"
	FieldWindowEnd   = "window_end"
	FieldMessageID   = "message_id"
	FieldPath        = "path"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentStorage    = "storage"
	ComponentRepository = "repository"
	ComponentEntry      = "entry"
	ComponentList       = "expense_list"
	ComponentReport     = "report"
	ComponentSettings   = "settings"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentLive       = "live"
)

// Operations defines standard operation names
const (
	OpInsert   = "insert"
	OpDelete   = "delete"
	OpSubmit   = "submit"
	OpValidate = "validate"
	OpRecalc   = "recompute"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds expense-related fields
func (f LogFields) WithExpense(id int64, title string, amountCents int64, category string) LogFields {
	if id != 0 {
		f[FieldExpenseID] = id
	}
	f[FieldTitle] = title
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
