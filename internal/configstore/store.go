package configstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
)

// Config type discriminators in the gateway_config table.
const (
	typeConfig = "config"
	typeNVS    = "nvs"
)

// Store provides access to the persistent named configuration served to
// the device fleet. It is a thin repository over the gateway_config table.
//
// Thread Safety: all methods are safe for concurrent use; SQLite access is
// serialised by the database package's single-writer connection pool.
type Store struct {
	db *sql.DB
}

// New creates a config store backed by the given database connection.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetConfig returns the stored device configuration as a flat name→value
// map. Scalar values round-trip through their JSON representation, so
// booleans and numbers keep their types. An empty map means no
// configuration has been stored yet.
func (s *Store) GetConfig(ctx context.Context) (map[string]any, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT config_name, config_value FROM gateway_config WHERE config_type = ?",
		typeConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("querying config: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows cleanup

	config := make(map[string]any)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scanning config row: %w", err)
		}
		if !value.Valid {
			config[name] = nil
			continue
		}
		config[name] = parseScalar(value.String)
	}

	return config, rows.Err()
}

// SaveConfig upserts the given name→value pairs into the stored device
// configuration. Values must be JSON scalars (string, bool, number, null);
// nested objects or arrays are rejected.
//
// The write is transactional: either all pairs are stored or none are.
func (s *Store) SaveConfig(ctx context.Context, config map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning config save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for name, value := range config {
		stored, err := encodeScalar(value)
		if err != nil {
			return fmt.Errorf("config value %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gateway_config (config_type, config_namespace, config_name, config_value)
			VALUES (?, '', ?, ?)
			ON CONFLICT (config_type, config_namespace, config_name)
			DO UPDATE SET config_value = excluded.config_value,
			              updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
			typeConfig, name, stored,
		); err != nil {
			return fmt.Errorf("upserting config value %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing config save: %w", err)
	}
	return nil
}

// GetNVS returns the stored NVS provisioning values grouped by namespace
// (typically WAS and WIFI). Values are opaque strings.
func (s *Store) GetNVS(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT config_namespace, config_name, config_value FROM gateway_config WHERE config_type = ?",
		typeNVS,
	)
	if err != nil {
		return nil, fmt.Errorf("querying nvs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only rows cleanup

	nvs := make(map[string]map[string]string)
	for rows.Next() {
		var namespace, name string
		var value sql.NullString
		if err := rows.Scan(&namespace, &name, &value); err != nil {
			return nil, fmt.Errorf("scanning nvs row: %w", err)
		}
		if !value.Valid {
			continue
		}
		if nvs[namespace] == nil {
			nvs[namespace] = make(map[string]string)
		}
		nvs[namespace][name] = value.String
	}

	return nvs, rows.Err()
}

// SaveNVS upserts NVS provisioning values. The input maps namespace to
// name→value objects, matching the wire shape posted by the admin UI:
//
//	{"WAS": {"URL": "ws://..."}, "WIFI": {"SSID": "...", "PSK": "..."}}
//
// Non-object namespace values are rejected.
func (s *Store) SaveNVS(ctx context.Context, nvs map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning nvs save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	for namespace, value := range nvs {
		entries, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("nvs namespace %q: expected object, got %T", namespace, value)
		}
		for name, v := range entries {
			stored, err := encodeScalar(v)
			if err != nil {
				return fmt.Errorf("nvs value %s/%s: %w", namespace, name, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gateway_config (config_type, config_namespace, config_name, config_value)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (config_type, config_namespace, config_name)
				DO UPDATE SET config_value = excluded.config_value,
				              updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`,
				typeNVS, namespace, name, stored,
			); err != nil {
				return fmt.Errorf("upserting nvs value %s/%s: %w", namespace, name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing nvs save: %w", err)
	}
	return nil
}

// encodeScalar converts a decoded JSON scalar to its stored string form.
// nil maps to SQL NULL.
func encodeScalar(v any) (sql.NullString, error) {
	switch val := v.(type) {
	case nil:
		return sql.NullString{}, nil
	case string:
		return sql.NullString{String: val, Valid: true}, nil
	case bool:
		return sql.NullString{String: strconv.FormatBool(val), Valid: true}, nil
	case float64:
		return sql.NullString{String: strconv.FormatFloat(val, 'f', -1, 64), Valid: true}, nil
	case json.Number:
		return sql.NullString{String: val.String(), Valid: true}, nil
	default:
		return sql.NullString{}, fmt.Errorf("unsupported value type %T", v)
	}
}

// parseScalar recovers the typed form of a stored value. Booleans and
// numbers are recognised by their literal form; everything else stays a
// string.
func parseScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
