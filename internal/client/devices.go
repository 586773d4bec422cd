package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/wattwatch/internal/api"
	"github.com/tejusbharadwaj/wattwatch/internal/device"
	"github.com/tejusbharadwaj/wattwatch/internal/models"
)

// Devices lists every device visible to the API key. The returned devices are
// stubs; each fetches its full state on first use.
func (c *Client) Devices(ctx context.Context) ([]*device.Device, error) {
	var ids []string
	if _, err := c.getJSON(ctx, c.url("devices"), nil, &ids); err != nil {
		return nil, err
	}

	devices := make([]*device.Device, 0, len(ids))
	for _, id := range ids {
		devices = append(devices, device.New(c, id))
	}
	return devices, nil
}

// Device fetches one device in full.
func (c *Client) Device(ctx context.Context, id string) (*device.Device, error) {
	info, err := c.FetchDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	return device.NewMaterialized(c, *info), nil
}

// FetchDevice returns the raw representation of a device.
func (c *Client) FetchDevice(ctx context.Context, id string) (*models.DeviceInfo, error) {
	var info models.DeviceInfo
	if _, err := c.getJSON(ctx, c.url("devices", id), nil, &info); err != nil {
		return nil, err
	}
	if info.ID == "" {
		info.ID = id
	}
	return &info, nil
}

// UpdateDevice applies a partial update to a device.
func (c *Client) UpdateDevice(ctx context.Context, id string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: encoding update for %s: %v", api.ErrRequest, id, err)
	}

	req := c.fetcher.NewRequest(http.MethodPatch, c.url("devices", id), nil)
	req.Body = body
	if _, err := c.fetcher.Do(ctx, req); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"device_id": id,
		"fields":    len(fields),
	}).Info("Device updated")
	return nil
}

func (c *Client) ChannelCategories(ctx context.Context) ([]models.ChannelCategory, error) {
	var categories []models.ChannelCategory
	if _, err := c.getJSON(ctx, c.url("devices", "channel-categories"), nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (c *Client) DeviceModels(ctx context.Context) ([]models.DeviceModel, error) {
	var deviceModels []models.DeviceModel
	if _, err := c.getJSON(ctx, c.url("devices", "models"), nil, &deviceModels); err != nil {
		return nil, err
	}
	return deviceModels, nil
}

var _ device.Source = (*Client)(nil)
