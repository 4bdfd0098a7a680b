package ezviz

import (
	"context"
	"errors"
	"testing"

	"ezvizswitch/internal/config"
	"ezvizswitch/internal/ezviz"
	"ezvizswitch/internal/plug"
	"ezvizswitch/pkg/entity"
	"ezvizswitch/pkg/plugin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func plugRecord(name, serial string, on bool) ezviz.DeviceRecord {
	return ezviz.DeviceRecord{
		ezviz.GroupResourceInfos: map[string]interface{}{
			"resourceName": name,
			"deviceSerial": serial,
		},
		ezviz.GroupSwitch: []interface{}{
			map[string]interface{}{"type": float64(ezviz.SwitchTypePlug), "enable": on},
		},
	}
}

func newTestPlatform(cfg *config.Config, plugs *config.PlugsConfig, client *ezviz.MockClient) (*Platform, *entity.Registry) {
	registry := entity.NewRegistry()
	pctx := plugin.NewContext(zap.NewNop(), registry, cfg, plugs)
	return NewPlatform(pctx, func(plug.Credentials) ezviz.SessionClient { return client }), registry
}

func TestPluginRegistered(t *testing.T) {
	info := plugin.Get(name)
	require.NotNil(t, info)
	assert.Equal(t, plugin.PriorityDefault, info.Priority)

	p, err := info.Factory(plugin.NewContext(zap.NewNop(), entity.NewRegistry(), &config.Config{}, nil))
	require.NoError(t, err)
	assert.Equal(t, "ezviz", p.Name())
}

func TestPlatform_StartStop(t *testing.T) {
	client := ezviz.NewMockClient("token")
	client.SetDevice("A1", plugRecord("Desk", "A1", true))
	client.SetDevice("B2", plugRecord("Heater", "B2", false))
	client.SetDevice("C3", plugRecord("Aquarium", "C3", false))

	plugsCfg := &config.PlugsConfig{
		Plugs:   map[string]config.PlugOverride{"A1": {Name: "Desk Lamp"}},
		Exclude: []string{"C3"},
	}
	p, registry := newTestPlatform(&config.Config{Username: "u", Password: "p"}, plugsCfg, client)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, []string{"A1", "B2"}, registry.IDs())
	assert.ElementsMatch(t, []string{"A1", "B2"}, p.EntityIDs())

	snap, err := registry.Snapshot("A1")
	require.NoError(t, err)
	assert.Equal(t, "Desk Lamp", snap.Name)
	assert.True(t, snap.On)

	p.Stop()
	assert.Equal(t, 0, registry.Len())
	assert.Empty(t, p.EntityIDs())
}

func TestPlatform_MissingCredentials(t *testing.T) {
	client := ezviz.NewMockClient("token")
	p, registry := newTestPlatform(&config.Config{Username: "u"}, nil, client)

	assert.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 0, registry.Len())
	assert.Equal(t, 0, client.LoginCalls())
}

func TestPlatform_LoginFailure(t *testing.T) {
	client := ezviz.NewMockClient("token")
	client.SetLoginError(errors.New("bad password"))
	client.SetDevice("A1", plugRecord("Desk", "A1", true))
	p, registry := newTestPlatform(&config.Config{Username: "u", Password: "p"}, nil, client)

	err := p.Start(context.Background())
	assert.ErrorIs(t, err, plug.ErrAuthentication)
	assert.Equal(t, 0, registry.Len())
}

func TestPlatform_ReadOnly(t *testing.T) {
	client := ezviz.NewMockClient("token")
	client.SetDevice("A1", plugRecord("Desk", "A1", false))
	p, registry := newTestPlatform(&config.Config{Username: "u", Password: "p", ReadOnly: true}, nil, client)

	require.NoError(t, p.Start(context.Background()))

	err := registry.TurnOn(context.Background(), "A1")
	assert.ErrorIs(t, err, plug.ErrReadOnlyMode)
	assert.Empty(t, client.GetSwitchCalls())
}
