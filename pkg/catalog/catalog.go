// Package catalog serves the game-library catalog: the app list and per-app
// details with their release archives.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when no app matches the requested id.
var ErrNotFound = errors.New("app not found")

const maxAppIDLen = 256

// App is one entry of the library listing.
type App struct {
	AppID       string `json:"app_id"`
	DisplayName string `json:"display_name"`
}

// AppDetails is the full record for a single app. Archives is stored as a JSON
// document and passed through verbatim.
type AppDetails struct {
	DisplayName string          `json:"display_name"`
	Description string          `json:"description"`
	Archives    json.RawMessage `json:"archives"`
	LatestTag   string          `json:"latest_tag"`
}

// Library answers catalog queries against Postgres.
type Library struct {
	db *sql.DB
}

func NewLibrary(db *sql.DB) *Library {
	return &Library{db: db}
}

// GetLibrary returns every app in the catalog.
func (l *Library) GetLibrary(ctx context.Context) ([]App, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT app_id, display_name FROM apps ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		var a App
		if err := rows.Scan(&a.AppID, &a.DisplayName); err != nil {
			return nil, fmt.Errorf("get library: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	return apps, nil
}

// GetApp returns the details for one app. Ill-formed ids and unknown ids are
// both ErrNotFound.
func (l *Library) GetApp(ctx context.Context, appID string) (AppDetails, error) {
	if appID == "" || len(appID) > maxAppIDLen {
		return AppDetails{}, ErrNotFound
	}

	var d AppDetails
	var archives []byte
	err := l.db.QueryRowContext(ctx,
		`SELECT display_name, description, archives, latest_tag FROM apps WHERE app_id = $1`,
		appID,
	).Scan(&d.DisplayName, &d.Description, &archives, &d.LatestTag)
	if errors.Is(err, sql.ErrNoRows) {
		return AppDetails{}, ErrNotFound
	}
	if err != nil {
		return AppDetails{}, fmt.Errorf("get app: %w", err)
	}
	d.Archives = json.RawMessage(archives)
	return d, nil
}
