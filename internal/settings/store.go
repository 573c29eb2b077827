// Package settings persists user preferences in the preferences table of the
// expense database.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"dailyexpense/internal/live"
	applog "dailyexpense/internal/log"
)

const themeModeKey = "theme_mode"

type ThemeMode string

const (
	ThemeLight  ThemeMode = "light"
	ThemeDark   ThemeMode = "dark"
	ThemeSystem ThemeMode = "system"
)

// DefaultThemeMode applies until the user picks one.
const DefaultThemeMode = ThemeSystem

var ErrInvalidThemeMode = errors.New("theme mode must be light, dark or system")

// ParseThemeMode accepts light, dark or system in any case.
func ParseThemeMode(s string) (ThemeMode, error) {
	switch m := ThemeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ThemeLight, ThemeDark, ThemeSystem:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidThemeMode, s)
	}
}

// Store reads and writes preferences. Writes go through one mutex so the
// published value always matches the last committed one.
type Store struct {
	db     *sql.DB
	logger *applog.Logger

	mu    sync.Mutex
	theme *live.State[ThemeMode]
}

// NewStore loads the stored preferences from db, which must already carry the
// preferences table.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{
		db:     db,
		logger: applog.New(applog.Config{Handler: slog.Default().Handler(), Component: applog.ComponentSettings}),
	}

	mode, err := s.loadThemeMode(ctx)
	if err != nil {
		return nil, err
	}
	s.theme = live.NewState(mode)
	return s, nil
}

func (s *Store) loadThemeMode(ctx context.Context) (ThemeMode, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, themeModeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultThemeMode, nil
	}
	if err != nil {
		return "", fmt.Errorf("load theme mode: %w", err)
	}

	mode, err := ParseThemeMode(value)
	if err != nil {
		s.logger.WarnContext(ctx, "Ignoring unknown stored theme mode", "value", value)
		return DefaultThemeMode, nil
	}
	return mode, nil
}

func (s *Store) ThemeMode() ThemeMode {
	return s.theme.Get()
}

// SetThemeMode persists mode. Values outside light, dark and system are
// rejected and nothing is written.
func (s *Store) SetThemeMode(ctx context.Context, mode ThemeMode) error {
	mode, err := ParseThemeMode(string(mode))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		themeModeKey, string(mode))
	if err != nil {
		return fmt.Errorf("save theme mode: %w", err)
	}

	s.theme.Set(mode)
	s.logger.InfoContext(ctx, "Theme mode updated", applog.FieldMode, mode)
	return nil
}

// Watch follows the theme mode; the current value is delivered first.
func (s *Store) Watch() *live.Subscription[ThemeMode] {
	return s.theme.Subscribe()
}
