package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dailyexpense/internal/amqp"
	applog "dailyexpense/internal/log"
)

// EventLogName is the file, inside the export directory, that receives one
// JSON line per expense event.
const EventLogName = "expense-events.jsonl"

// ExportWorker delivers queued report exports to files and keeps an
// append-only log of expense events.
type ExportWorker struct {
	dir string

	mu sync.Mutex // serialises event log appends
}

func NewExportWorker(dir string) (*ExportWorker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &ExportWorker{dir: dir}, nil
}

// HandleReportExport writes one export to its own file and returns the path.
// Failed writes leave no partial file behind.
func (w *ExportWorker) HandleReportExport(ctx context.Context, msg *amqp.ReportExport) (string, error) {
	slog.InfoContext(ctx, "Processing report export",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldMessageID, msg.MessageID,
		"bytes", len(msg.Body))

	path := filepath.Join(w.dir, exportFileName(msg))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, msg.Body, 0644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write report export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("publish report export: %w", err)
	}

	slog.InfoContext(ctx, "Report export written",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldMessageID, msg.MessageID,
		applog.FieldPath, path)
	return path, nil
}

// HandleExpenseEvent appends evt to the event log.
func (w *ExportWorker) HandleExpenseEvent(ctx context.Context, evt *amqp.ExpenseEvent) error {
	line, err := evt.ToJSON()
	if err != nil {
		return fmt.Errorf("encode expense event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(w.dir, EventLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event log: %w", err)
	}

	slog.DebugContext(ctx, "Expense event recorded",
		applog.FieldComponent, applog.ComponentWorker,
		applog.FieldOperation, evt.Type,
		applog.FieldExpenseID, evt.ID)
	return nil
}

// exportFileName derives a stable name, e.g.
// "expense-report-20240508-153000-<message id>.txt".
func exportFileName(msg *amqp.ReportExport) string {
	created := msg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	id := msg.MessageID
	if id == "" {
		id = fmt.Sprintf("%d", created.UnixNano())
	}
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, id)

	ext := ".txt"
	if msg.MIMEType != "" && !strings.HasPrefix(msg.MIMEType, "text/plain") {
		ext = ".bin"
	}
	return fmt.Sprintf("expense-report-%s-%s%s", created.UTC().Format("20060102-150405"), id, ext)
}
