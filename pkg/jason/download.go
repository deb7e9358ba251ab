package jason

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"jason/pkg/api"
)

// Download fetches the zip result of a finished process and writes it,
// byte for byte, to the download directory under the result's name.
// It returns the written path.
func (c *Client) Download(ctx context.Context, processID string) (string, error) {
	status, code, err := c.GetStatus(ctx, processID)
	if err != nil {
		return "", err
	}
	if code != http.StatusOK {
		return "", fmt.Errorf("%w: status request for process %s returned %d", ErrResultsUnavailable, processID, code)
	}
	if status.Process.Status != api.StatusFinished {
		return "", fmt.Errorf("%w: process %s is %s", ErrResultsUnavailable, processID, status.Process.Status)
	}

	result, ok := status.ResultOfType(api.ResultTypeZip)
	if !ok {
		return "", fmt.Errorf("%w: process %s has %d results", ErrNoArchive, processID, len(status.Results))
	}

	name := filepath.Base(result.Name)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: result of process %s has no usable name %q", ErrNoArchive, processID, result.Name)
	}

	dir := c.downloadDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return "", fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}
	path := filepath.Join(dir, name)

	if err := c.fetchArtifact(ctx, result.URL, path); err != nil {
		return "", err
	}

	c.log.Info("results downloaded", "process_id", processID, "path", path)
	return path, nil
}

// fetchArtifact GETs url without API credentials and streams it into path.
// A partially written file is removed on failure.
func (c *Client) fetchArtifact(ctx context.Context, url, path string) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, span, err := c.send(c.downloadClient, req, "download")
	if err != nil {
		return err
	}
	defer span.End()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	outFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if closeErr := outFile.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
		if err != nil {
			os.Remove(path)
		}
	}()

	if _, err = io.Copy(outFile, resp.Body); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write result data: %w", err)
	}
	return nil
}
