package provider

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"beacon/internal/constants"
	"beacon/internal/event"
)

type PostgresProvider struct {
	db    *sql.DB
	table string
}

func NewPostgresProvider(db *sql.DB, table string) *PostgresProvider {
	if table == "" {
		table = constants.DefaultPostgresTable
	}
	return &PostgresProvider{db: db, table: table}
}

func (p *PostgresProvider) Name() string {
	return constants.ProviderNamePostgreSQL
}

func (p *PostgresProvider) Fetch(ctx context.Context, deviceID string) (*event.User, error) {
	query := fmt.Sprintf(
		"SELECT mpid, identities, attributes, consent FROM %s WHERE device_id = $1",
		p.table,
	)

	var (
		mpid       string
		identities []byte
		attributes []byte
		consent    []byte
	)
	err := p.db.QueryRowContext(ctx, query, deviceID).Scan(&mpid, &identities, &attributes, &consent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres query failed: %w", err)
	}

	user := &event.User{MPID: mpid}
	if len(identities) > 0 {
		if err := json.Unmarshal(identities, &user.Identities); err != nil {
			return nil, fmt.Errorf("corrupt identities for %s: %w", deviceID, err)
		}
	}
	if len(attributes) > 0 {
		if err := json.Unmarshal(attributes, &user.Attributes); err != nil {
			return nil, fmt.Errorf("corrupt attributes for %s: %w", deviceID, err)
		}
	}
	if len(consent) > 0 {
		var state event.ConsentState
		if err := json.Unmarshal(consent, &state); err != nil {
			return nil, fmt.Errorf("corrupt consent state for %s: %w", deviceID, err)
		}
		user.ConsentState = &state
	}

	return user, nil
}
