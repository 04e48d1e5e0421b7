package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"worldpanel/internal/models"
	"worldpanel/internal/validate"
)

// UploadTarget is a pre-signed object storage location for a datapack.
type UploadTarget struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// Datapacks lists the world's datapacks.
func (c *Client) Datapacks(ctx context.Context, id string) ([]models.Datapack, error) {
	var resp struct {
		Datapacks []models.Datapack `json:"datapacks"`
	}
	if err := c.doJSON(ctx, http.MethodGet, worldPath(id, "datapacks"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Datapacks, nil
}

// DeleteDatapack removes a datapack by name.
func (c *Client) DeleteDatapack(ctx context.Context, id, name string) error {
	if name == "" {
		return &validate.Error{Field: "name", Message: "datapack name is required"}
	}
	return c.doJSON(ctx, http.MethodDelete, worldPath(id, "datapacks", url.PathEscape(name)), nil, nil)
}

// UploadDatapack stores a zip through the backend's upload indirection: it
// requests a pre-signed URL, PUTs the archive there and notifies the backend.
// size may be -1 when unknown.
func (c *Client) UploadDatapack(ctx context.Context, id, name string, archive io.Reader, size int64) error {
	if err := validate.DatapackName(name); err != nil {
		return err
	}

	var target UploadTarget
	if err := c.doJSON(ctx, http.MethodPost, worldPath(id, "datapacks", "upload-url"), map[string]string{"name": name}, &target); err != nil {
		return fmt.Errorf("request upload url: %w", err)
	}
	if target.UploadURL == "" {
		return fmt.Errorf("request upload url: backend returned no uploadUrl")
	}

	if err := c.putObject(ctx, target.UploadURL, archive, size); err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}

	notify := map[string]string{"key": target.Key, "name": name}
	if err := c.doJSON(ctx, http.MethodPost, worldPath(id, "datapacks", "notify"), notify, nil); err != nil {
		return fmt.Errorf("notify upload: %w", err)
	}
	return nil
}

func (c *Client) putObject(ctx context.Context, target string, archive io.Reader, size int64) error {
	req, err := c.newRequest(ctx, http.MethodPut, target, archive)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/zip")
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.transfer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return readError(resp, http.MethodPut, "upload-url")
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
