package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/squadops/squadops/internal/fault"
)

// Instance is one configured, independently startable server deployment.
// IsRunning is best effort: it is persisted before spawn and reconciled
// against live handles at daemon startup.
type Instance struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	InstallPath  string `json:"install_path"`
	GamePort     int    `json:"game_port"`
	QueryPort    int    `json:"query_port"`
	RCONPort     int    `json:"rcon_port"`
	BeaconPort   int    `json:"beacon_port"`
	RCONPassword string `json:"rcon_password,omitempty"`
	ExtraArgs    string `json:"extra_args,omitempty"`
	IsRunning    bool   `json:"is_running"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

const instanceColumns = `id, name, install_path, game_port, query_port, rcon_port, beacon_port,
	rcon_password, extra_args, is_running, created_at, updated_at`

func scanInstance(row interface{ Scan(...any) error }) (Instance, error) {
	var (
		inst    Instance
		running int
	)
	err := row.Scan(&inst.ID, &inst.Name, &inst.InstallPath, &inst.GamePort, &inst.QueryPort,
		&inst.RCONPort, &inst.BeaconPort, &inst.RCONPassword, &inst.ExtraArgs, &running,
		&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return Instance{}, err
	}
	inst.IsRunning = running == 1
	return inst, nil
}

// Validate checks the fields a caller supplies for create/update.
func (i Instance) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fault.New(fault.KindBadInput, "registry: instance name is required")
	}
	if !filepath.IsAbs(i.InstallPath) {
		return fault.New(fault.KindBadInput, "registry: install path %q is not absolute", i.InstallPath)
	}
	ports := map[string]int{
		"game":   i.GamePort,
		"query":  i.QueryPort,
		"rcon":   i.RCONPort,
		"beacon": i.BeaconPort,
	}
	seen := make(map[int]string, len(ports))
	for label, port := range ports {
		if port < 1 || port > 65535 {
			return fault.New(fault.KindBadInput, "registry: %s port %d out of range", label, port)
		}
		if other, dup := seen[port]; dup {
			return fault.New(fault.KindBadInput, "registry: %s port duplicates %s port (%d)", label, other, port)
		}
		seen[port] = label
	}
	return nil
}

// CreateInstance inserts a new instance record and returns it with its id.
func (s *Store) CreateInstance(ctx context.Context, inst Instance) (Instance, error) {
	if s.readOnly {
		return Instance{}, fmt.Errorf("registry: create instance: store opened read-only")
	}
	if err := inst.Validate(); err != nil {
		return Instance{}, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM instances WHERE name = ?)
		`, inst.Name).Scan(&exists); err != nil {
			return fmt.Errorf("registry: check instance name %q: %w", inst.Name, err)
		}
		if exists {
			return fault.New(fault.KindConflict, "registry: instance %q already exists", inst.Name)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO instances (name, install_path, game_port, query_port, rcon_port,
				beacon_port, rcon_password, extra_args, is_running)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		`, inst.Name, inst.InstallPath, inst.GamePort, inst.QueryPort, inst.RCONPort,
			inst.BeaconPort, inst.RCONPassword, inst.ExtraArgs)
		if err != nil {
			return fmt.Errorf("registry: insert instance: %w", err)
		}

		inst.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("registry: last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return Instance{}, err
	}

	return s.Instance(ctx, inst.ID)
}

// Instance returns one instance by id.
func (s *Store) Instance(ctx context.Context, id int64) (Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+instanceColumns+` FROM instances WHERE id = ?
	`, id)

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Instance{}, fault.New(fault.KindNotFound, "registry: instance %d not found", id)
	}
	if err != nil {
		return Instance{}, fmt.Errorf("registry: scan instance %d: %w", id, err)
	}
	return inst, nil
}

// Instances returns all configured instances ordered by name.
func (s *Store) Instances(ctx context.Context) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+instanceColumns+` FROM instances ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("registry: list instances: %w", err)
	}
	defer rows.Close()

	var instances []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("registry: scan instance row: %w", err)
		}
		instances = append(instances, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterate instances: %w", err)
	}

	return instances, nil
}

// UpdateInstance rewrites the configurable fields of an existing record.
// The running flag is owned by the supervisor and not touched here.
func (s *Store) UpdateInstance(ctx context.Context, inst Instance) error {
	if s.readOnly {
		return fmt.Errorf("registry: update instance: store opened read-only")
	}
	if err := inst.Validate(); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var taken bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM instances WHERE name = ? AND id != ?)
		`, inst.Name, inst.ID).Scan(&taken); err != nil {
			return fmt.Errorf("registry: check instance name %q: %w", inst.Name, err)
		}
		if taken {
			return fault.New(fault.KindConflict, "registry: instance name %q already in use", inst.Name)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE instances
			SET name = ?, install_path = ?, game_port = ?, query_port = ?, rcon_port = ?,
			    beacon_port = ?, rcon_password = ?, extra_args = ?,
			    updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, inst.Name, inst.InstallPath, inst.GamePort, inst.QueryPort, inst.RCONPort,
			inst.BeaconPort, inst.RCONPassword, inst.ExtraArgs, inst.ID)
		if err != nil {
			return fmt.Errorf("registry: update instance %d: %w", inst.ID, err)
		}

		rows, _ := res.RowsAffected()
		if rows == 0 {
			return fault.New(fault.KindNotFound, "registry: instance %d not found", inst.ID)
		}
		return nil
	})
}

// DeleteInstance removes an instance record.
func (s *Store) DeleteInstance(ctx context.Context, id int64) error {
	if s.readOnly {
		return fmt.Errorf("registry: delete instance: store opened read-only")
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM instances WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("registry: delete instance %d: %w", id, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fault.New(fault.KindNotFound, "registry: instance %d not found", id)
	}
	return nil
}

// SetRunning persists the best-effort running flag for an instance.
func (s *Store) SetRunning(ctx context.Context, id int64, running bool) error {
	if s.readOnly {
		return fmt.Errorf("registry: set running: store opened read-only")
	}

	flag := 0
	if running {
		flag = 1
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE instances SET is_running = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, flag, id)
	if err != nil {
		return fmt.Errorf("registry: set running flag for instance %d: %w", id, err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fault.New(fault.KindNotFound, "registry: instance %d not found", id)
	}
	return nil
}

// RunningInstanceIDs returns the ids of instances whose persisted running
// flag is set. Used for startup reconciliation.
func (s *Store) RunningInstanceIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM instances WHERE is_running = 1`)
	if err != nil {
		return nil, fmt.Errorf("registry: list running instances: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("registry: scan running instance id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: iterate running instances: %w", err)
	}

	return ids, nil
}
