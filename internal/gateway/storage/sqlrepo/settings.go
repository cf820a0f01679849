package sqlrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

const settingsID = "global"

func (s *Store) GetServiceSettings(ctx context.Context) (model.ServiceSettings, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return model.ServiceSettings{}, err
	}
	var row settingsRow
	err = s.dialect.Primary(db).Where("settings_id = ?", settingsID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultServiceSettings(), nil
	}
	if err != nil {
		return model.ServiceSettings{}, fmt.Errorf("get service settings: %w", err)
	}
	return model.NormalizeServiceSettings(row.Payload), nil
}

func (s *Store) SaveServiceSettings(ctx context.Context, settings model.ServiceSettings) (model.ServiceSettings, error) {
	now := s.now()
	settings = settings.Normalized()
	settings.UpdatedAt = &now
	payload, err := sonic.Marshal(settings)
	if err != nil {
		return model.ServiceSettings{}, fmt.Errorf("encode service settings: %w", err)
	}

	db, err := s.conn(ctx)
	if err != nil {
		return model.ServiceSettings{}, err
	}
	row := settingsRow{SettingsID: settingsID, Payload: payload, UpdatedAt: now}
	if err := db.Clauses(upsert([]string{"settings_id"}, "payload", "updated_at")).Create(&row).Error; err != nil {
		return model.ServiceSettings{}, fmt.Errorf("save service settings: %w", err)
	}
	return settings, nil
}
