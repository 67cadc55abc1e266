package db

import (
	"context"
	"time"

	"homehub/internal/models"
)

// MergeDeviceAttributes performs the atomic upsert-merge for an inbound
// attribute delta: a missing row is created with the delta as its full
// attribute set, an existing row gets the delta merged key-wise on top of
// its current attributes (JSONB || is a shallow merge, incoming keys win).
// The read-modify-write happens inside one statement, so concurrent
// updates for the same device cannot race.
func (d *DB) MergeDeviceAttributes(ctx context.Context, deviceID string, delta models.Attributes, ts time.Time) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx, `
		INSERT INTO devices (id, attributes, create_time, last_update)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (id) DO UPDATE
		SET attributes = devices.attributes || EXCLUDED.attributes,
		    last_update = EXCLUDED.last_update
		RETURNING id, COALESCE(home_id, ''), COALESCE(type_id, ''), COALESCE(name, ''),
		          attributes, create_time, last_update`,
		deviceID, delta, ts).
		Scan(&dev.ID, &dev.HomeID, &dev.TypeID, &dev.Name, &dev.Attributes, &dev.CreateTime, &dev.LastUpdate)
	if err != nil {
		return nil, mapErr(err)
	}
	return &dev, nil
}

// GetDeviceByID fetches a device
func (d *DB) GetDeviceByID(ctx context.Context, id string) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx, `
		SELECT id, COALESCE(home_id, ''), COALESCE(type_id, ''), COALESCE(name, ''),
		       attributes, create_time, last_update
		FROM devices WHERE id = $1`, id).
		Scan(&dev.ID, &dev.HomeID, &dev.TypeID, &dev.Name, &dev.Attributes, &dev.CreateTime, &dev.LastUpdate)
	if err != nil {
		return nil, mapErr(err)
	}
	return &dev, nil
}

// GetDevicesByHome fetches all devices attached to a home
func (d *DB) GetDevicesByHome(ctx context.Context, homeID string) ([]models.Device, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, COALESCE(home_id, ''), COALESCE(type_id, ''), COALESCE(name, ''),
		       attributes, create_time, last_update
		FROM devices WHERE home_id = $1 ORDER BY create_time`, homeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var dev models.Device
		if err := rows.Scan(&dev.ID, &dev.HomeID, &dev.TypeID, &dev.Name, &dev.Attributes, &dev.CreateTime, &dev.LastUpdate); err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, rows.Err()
}

// InsertDevice creates a device seeded with its type's default attributes
func (d *DB) InsertDevice(ctx context.Context, homeID, typeID, name string, attrs models.Attributes) (*models.Device, error) {
	var dev models.Device
	err := d.pool.QueryRow(ctx, `
		INSERT INTO devices (home_id, type_id, name, attributes, create_time, last_update)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, COALESCE(home_id, ''), COALESCE(type_id, ''), COALESCE(name, ''),
		          attributes, create_time, last_update`,
		homeID, typeID, name, attrs).
		Scan(&dev.ID, &dev.HomeID, &dev.TypeID, &dev.Name, &dev.Attributes, &dev.CreateTime, &dev.LastUpdate)
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

// GetRuleByID fetches a rule
func (d *DB) GetRuleByID(ctx context.Context, id string) (*models.Rule, error) {
	var r models.Rule
	err := d.pool.QueryRow(ctx, `
		SELECT id, device_id, COALESCE(name, ''), condition, commands, enabled, create_time
		FROM rules WHERE id = $1`, id).
		Scan(&r.ID, &r.DeviceID, &r.Name, &r.Condition, &r.Commands, &r.Enabled, &r.CreateTime)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

// GetRulesForDevice fetches the enabled rules watching a device. Stable id
// order so one iteration pass never skips a rule.
func (d *DB) GetRulesForDevice(ctx context.Context, deviceID string) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, device_id, COALESCE(name, ''), condition, commands, enabled, create_time
		FROM rules WHERE device_id = $1 AND enabled ORDER BY id`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var r models.Rule
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Name, &r.Condition, &r.Commands, &r.Enabled, &r.CreateTime); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// GetAllEnabledRules fetches every enabled rule, for association resync
func (d *DB) GetAllEnabledRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, device_id, COALESCE(name, ''), condition, commands, enabled, create_time
		FROM rules WHERE enabled ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var r models.Rule
		if err := rows.Scan(&r.ID, &r.DeviceID, &r.Name, &r.Condition, &r.Commands, &r.Enabled, &r.CreateTime); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// InsertRule registers a rule
func (d *DB) InsertRule(ctx context.Context, deviceID, name, condition string, commands []string, enabled bool) (*models.Rule, error) {
	var r models.Rule
	err := d.pool.QueryRow(ctx, `
		INSERT INTO rules (device_id, name, condition, commands, enabled, create_time)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, device_id, COALESCE(name, ''), condition, commands, enabled, create_time`,
		deviceID, name, condition, commands, enabled).
		Scan(&r.ID, &r.DeviceID, &r.Name, &r.Condition, &r.Commands, &r.Enabled, &r.CreateTime)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetCommandByID fetches a command
func (d *DB) GetCommandByID(ctx context.Context, id string) (*models.Command, error) {
	var c models.Command
	err := d.pool.QueryRow(ctx, `
		SELECT id, device_id, COALESCE(name, ''), code, code_message, create_time
		FROM commands WHERE id = $1`, id).
		Scan(&c.ID, &c.DeviceID, &c.Name, &c.Code, &c.CodeMessage, &c.CreateTime)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// InsertCommand creates a command
func (d *DB) InsertCommand(ctx context.Context, deviceID, name string, code int, codeMessage string) (*models.Command, error) {
	var c models.Command
	err := d.pool.QueryRow(ctx, `
		INSERT INTO commands (device_id, name, code, code_message, create_time)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, device_id, COALESCE(name, ''), code, code_message, create_time`,
		deviceID, name, code, codeMessage).
		Scan(&c.ID, &c.DeviceID, &c.Name, &c.Code, &c.CodeMessage, &c.CreateTime)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetHomeByID fetches a home
func (d *DB) GetHomeByID(ctx context.Context, id string) (*models.Home, error) {
	var h models.Home
	err := d.pool.QueryRow(ctx, `
		SELECT id, owner, members, devices, create_time FROM homes WHERE id = $1`, id).
		Scan(&h.ID, &h.Owner, &h.Members, &h.Devices, &h.CreateTime)
	if err != nil {
		return nil, mapErr(err)
	}
	return &h, nil
}

// InsertHome creates a home
func (d *DB) InsertHome(ctx context.Context, owner string) (*models.Home, error) {
	var h models.Home
	err := d.pool.QueryRow(ctx, `
		INSERT INTO homes (owner, members, devices, create_time)
		VALUES ($1, '[]'::jsonb, '[]'::jsonb, NOW())
		RETURNING id, owner, members, devices, create_time`, owner).
		Scan(&h.ID, &h.Owner, &h.Members, &h.Devices, &h.CreateTime)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// AppendHomeDevice appends a device id to a home's device list
func (d *DB) AppendHomeDevice(ctx context.Context, homeID, deviceID string) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE homes SET devices = devices || to_jsonb($1::text) WHERE id = $2",
		deviceID, homeID)
	return err
}

// GetDeviceTypeByID fetches a device type
func (d *DB) GetDeviceTypeByID(ctx context.Context, id string) (*models.DeviceType, error) {
	var t models.DeviceType
	err := d.pool.QueryRow(ctx, `
		SELECT id, name, default_attributes, create_time FROM device_types WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.DefaultAttributes, &t.CreateTime)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

// InsertDeviceType creates a device type
func (d *DB) InsertDeviceType(ctx context.Context, name string, defaults models.Attributes) (*models.DeviceType, error) {
	var t models.DeviceType
	err := d.pool.QueryRow(ctx, `
		INSERT INTO device_types (name, default_attributes, create_time)
		VALUES ($1, $2, NOW())
		RETURNING id, name, default_attributes, create_time`,
		name, defaults).
		Scan(&t.ID, &t.Name, &t.DefaultAttributes, &t.CreateTime)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SetUserHome attaches a user to a home with a role
func (d *DB) SetUserHome(ctx context.Context, userID, homeID, role string) error {
	_, err := d.pool.Exec(ctx,
		"UPDATE users SET home_id = $1, role = $2 WHERE id = $3",
		homeID, role, userID)
	return err
}
