package plug

import (
	"context"
	"fmt"

	"ezvizswitch/internal/ezviz"
	"ezvizswitch/pkg/entity"

	"go.uber.org/zap"
)

// Credentials are the account login supplied once at setup
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both fields are set
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// NewSessionFunc builds the session client for an account
type NewSessionFunc func(creds Credentials) ezviz.SessionClient

// Options tune which plugs Setup registers and how
type Options struct {
	// ReadOnly plugs log commands instead of sending them.
	ReadOnly bool

	// Exclude lists serials that are never registered.
	Exclude []string

	// Names maps serials to display names that win over the account name.
	Names map[string]string
}

// Setup logs in, enumerates the account's plugs and registers one Plug per
// device through add. A failed login registers nothing and returns
// ErrAuthentication.
func Setup(
	ctx context.Context,
	creds Credentials,
	newSession NewSessionFunc,
	add entity.AddEntitiesFunc,
	logger *zap.Logger,
	opts Options,
) ([]*Plug, error) {
	if !creds.Valid() {
		logger.Warn("Missing username/email and password in configuration")
		return nil, ErrMissingCredentials
	}

	client := newSession(creds)

	token, err := client.Login(ctx)
	if err != nil {
		logger.Error("Unsuccessful connection to EZVIZ API", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if token == "" {
		logger.Error("Unsuccessful connection to EZVIZ API: no session token")
		return nil, ErrAuthentication
	}

	directory := NewDirectory(client, logger)
	records, err := directory.ListPlugs(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(opts.Exclude))
	for _, serial := range opts.Exclude {
		excluded[serial] = true
	}

	plugs := make([]*Plug, 0, len(records))
	for _, record := range records {
		parsed := ParseDeviceData(record)
		if parsed.Serial == "" {
			parsed.Serial = recordSerial(record)
		}
		if parsed.Serial == "" {
			logger.Warn("Skipping device without serial", zap.String("name", parsed.Name))
			continue
		}
		if excluded[parsed.Serial] {
			logger.Info("Skipping excluded plug", zap.String("serial", parsed.Serial))
			continue
		}

		p := newPlugFromState(parsed, client, logger, opts.ReadOnly)
		p.nameOverride = opts.Names[parsed.Serial]
		plugs = append(plugs, p)
	}

	logger.Info("Retrieved all plugs in EZVIZ", zap.Int("count", len(plugs)))

	switches := make([]entity.Switch, len(plugs))
	for i, p := range plugs {
		switches[i] = p
	}
	if err := add(switches...); err != nil {
		return nil, fmt.Errorf("failed to register plugs: %w", err)
	}

	return plugs, nil
}
