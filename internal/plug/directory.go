package plug

import (
	"context"
	"fmt"
	"sort"

	"ezvizswitch/internal/ezviz"

	"go.uber.org/zap"
)

// Directory looks devices up on the account. Nothing is cached; every call
// goes to the session client.
type Directory struct {
	client ezviz.SessionClient
	logger *zap.Logger
}

// NewDirectory creates a directory backed by client
func NewDirectory(client ezviz.SessionClient, logger *zap.Logger) *Directory {
	return &Directory{
		client: client,
		logger: logger,
	}
}

// ListPlugs returns every device record on the account, ordered by serial.
func (d *Directory) ListPlugs(ctx context.Context) ([]ezviz.DeviceRecord, error) {
	devices, err := d.client.GetDeviceInfos(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	serials := make([]string, 0, len(devices))
	for serial := range devices {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	records := make([]ezviz.DeviceRecord, 0, len(devices))
	for _, serial := range serials {
		records = append(records, devices[serial])
	}

	d.logger.Debug("Listed devices", zap.Int("count", len(records)))
	return records, nil
}

// FindPlug returns the first record whose serial equals serial, or a
// *DeviceNotFoundError.
func (d *Directory) FindPlug(ctx context.Context, serial string) (ezviz.DeviceRecord, error) {
	if serial == "" {
		return nil, &DeviceNotFoundError{}
	}

	records, err := d.ListPlugs(ctx)
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		if recordSerial(record) == serial {
			return record, nil
		}
	}

	return nil, &DeviceNotFoundError{Serial: serial}
}
