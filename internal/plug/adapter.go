package plug

import (
	"context"
	"errors"
	"fmt"

	"ezvizswitch/internal/ezviz"
	"ezvizswitch/pkg/entity"

	"go.uber.org/zap"
)

// ErrReadOnlyMode is returned by commands when the plug was created read-only
var ErrReadOnlyMode = errors.New("read-only mode: command not sent")

// Plug is one EZVIZ smart plug exposed as a switch entity.
//
// Commands do not touch the cached state; the next Refresh reconciles it
// with the device. Calls are expected to be serialized by the host.
type Plug struct {
	serial    string
	client    ezviz.SessionClient
	directory *Directory
	logger    *zap.Logger
	readOnly  bool

	name         string
	nameOverride string
	state        SwitchState
	onlineStatus string
}

var (
	_ entity.Switch       = (*Plug)(nil)
	_ entity.Availability = (*Plug)(nil)
)

// NewPlug creates a plug with a known name and cached state.
func NewPlug(name, serial string, state SwitchState, client ezviz.SessionClient, logger *zap.Logger) *Plug {
	return &Plug{
		serial:    serial,
		client:    client,
		directory: NewDirectory(client, logger),
		logger:    logger.With(zap.String("serial", serial)),
		name:      name,
		state:     state,
	}
}

func newPlugFromState(parsed DeviceState, client ezviz.SessionClient, logger *zap.Logger, readOnly bool) *Plug {
	p := NewPlug(parsed.Name, parsed.Serial, parsed.State, client, logger)
	p.onlineStatus = parsed.OnlineStatus
	p.readOnly = readOnly
	return p
}

// UniqueID returns the device serial
func (p *Plug) UniqueID() string {
	return p.serial
}

// Name returns the configured display name, or the name from the last refresh
func (p *Plug) Name() string {
	if p.nameOverride != "" {
		return p.nameOverride
	}
	return p.name
}

// State returns the cached switch state
func (p *Plug) State() SwitchState {
	return p.state
}

// IsOn is true only when the cached state is exactly on.
func (p *Plug) IsOn() bool {
	return p.state == StateOn
}

// Available reports the online flag from the last refresh.
func (p *Plug) Available() bool {
	return DeviceState{OnlineStatus: p.onlineStatus}.Online()
}

// TurnOn switches the plug on unless it is already on.
func (p *Plug) TurnOn(ctx context.Context) error {
	if p.IsOn() {
		return nil
	}
	return p.setState(ctx, StateOn)
}

// TurnOff switches the plug off if it is on.
func (p *Plug) TurnOff(ctx context.Context) error {
	if !p.IsOn() {
		return nil
	}
	return p.setState(ctx, StateOff)
}

// Refresh re-reads the device and overwrites the cached name and state.
func (p *Plug) Refresh(ctx context.Context) error {
	record, err := p.directory.FindPlug(ctx, p.serial)
	if err != nil {
		return err
	}

	parsed := ParseDeviceData(record)
	if parsed.State != p.state {
		p.logger.Debug("Plug state changed",
			zap.Stringer("old", p.state),
			zap.Stringer("new", parsed.State))
	}

	p.name = parsed.Name
	p.state = parsed.State
	p.onlineStatus = parsed.OnlineStatus
	return nil
}

func (p *Plug) setState(ctx context.Context, state SwitchState) error {
	if p.readOnly {
		p.logger.Info("READ-ONLY: would set plug state", zap.Stringer("state", state))
		return ErrReadOnlyMode
	}

	p.logger.Info("Setting plug state", zap.Stringer("state", state))
	if err := p.client.SwitchStatus(ctx, p.serial, ezviz.SwitchTypePlug, int(state)); err != nil {
		return fmt.Errorf("failed to set plug %s %s: %w", p.serial, state, err)
	}
	return nil
}
