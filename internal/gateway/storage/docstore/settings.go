package docstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-arcade/modelgate/internal/gateway/model"
)

const (
	settingsCollection = "service_settings"
	settingsID         = "global"
)

func (a *Adapter) GetServiceSettings(ctx context.Context) (model.ServiceSettings, error) {
	sess, err := a.conn(ctx)
	if err != nil {
		return model.ServiceSettings{}, err
	}
	raw, found, err := getSettings(ctx, sess)
	if err != nil {
		return model.ServiceSettings{}, err
	}
	if !found {
		return model.DefaultServiceSettings(), nil
	}
	return model.NormalizeServiceSettings(raw), nil
}

func (a *Adapter) SaveServiceSettings(ctx context.Context, settings model.ServiceSettings) (model.ServiceSettings, error) {
	now := a.now()
	settings = settings.Normalized()
	settings.UpdatedAt = &now

	sess, err := a.conn(ctx)
	if err != nil {
		return model.ServiceSettings{}, err
	}
	if err := sess.client.Put(ctx, settingsCollection, settingsID, settings); err != nil {
		return model.ServiceSettings{}, fmt.Errorf("save service settings: %w", err)
	}
	return settings, nil
}

func getSettings(ctx context.Context, sess *session) (json.RawMessage, bool, error) {
	var raw json.RawMessage
	found, err := sess.client.Get(ctx, settingsCollection, settingsID, &raw)
	if err != nil {
		return nil, false, fmt.Errorf("get service settings: %w", err)
	}
	return raw, found, nil
}
