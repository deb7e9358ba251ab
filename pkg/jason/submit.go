package jason

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"jason/pkg/api"
)

// SubmitRequest describes one submission to POST /processes.
type SubmitRequest struct {
	// Type defaults to GNSS
	Type api.ProcessType

	// RoverFile is required and must exist
	RoverFile string

	// BaseFile is optional but must exist when set
	BaseFile string

	BasePosition *api.BasePosition

	// Dynamics defaults to dynamic
	Dynamics api.Dynamics

	// Strategy is only sent when forced (not auto)
	Strategy api.Strategy

	Label string

	// CameraMetadataFile is an EXIF bundle produced by the exif package
	CameraMetadataFile string
}

func (r *SubmitRequest) normalize() {
	if r.Type == "" {
		r.Type = api.ProcessTypeGNSS
	}
	if r.Dynamics == "" {
		r.Dynamics = api.DynamicsDynamic
	}
	if r.Strategy == "" {
		r.Strategy = api.StrategyAuto
	}
}

// Validate checks the request locally without touching the network.
func (r SubmitRequest) Validate() error {
	if r.RoverFile == "" {
		return fmt.Errorf("%w: rover file is required", ErrValidation)
	}
	if err := checkFile("rover", r.RoverFile); err != nil {
		return err
	}
	if r.BaseFile != "" {
		if err := checkFile("base", r.BaseFile); err != nil {
			return err
		}
	}
	if r.CameraMetadataFile != "" {
		if err := checkFile("camera metadata", r.CameraMetadataFile); err != nil {
			return err
		}
	}
	if _, err := api.ParseDynamics(string(r.Dynamics)); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if _, err := api.ParseStrategy(string(r.Strategy)); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	switch r.Type {
	case "", api.ProcessTypeGNSS, api.ProcessTypeConversion:
	default:
		return fmt.Errorf("%w: unknown process type %q", ErrValidation, r.Type)
	}
	return nil
}

func checkFile(kind, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s file [ %s ] does not exist", ErrValidation, kind, path)
		}
		return fmt.Errorf("%w: %s file [ %s ]: %w", ErrValidation, kind, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s file [ %s ] is a directory", ErrValidation, kind, path)
	}
	return nil
}

// ConfigFragment renders the inline processing configuration sent as config_file.
func (r SubmitRequest) ConfigFragment() string {
	dynamics := r.Dynamics
	if dynamics == "" {
		dynamics = api.DynamicsDynamic
	}

	var b strings.Builder
	fmt.Fprintf(&b, "rover_dynamics:\n    %s\n", dynamics)
	if r.BasePosition != nil {
		fmt.Fprintf(&b, "external_base_station_position:\n    %s\n", r.BasePosition)
	}
	return b.String()
}

// submitFiles holds the handles opened for one submission and their sizes.
type submitFiles struct {
	rover, base, camera             *os.File
	roverSize, baseSize, cameraSize int64
}

func openSized(path string) (*os.File, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

func openSubmitFiles(req SubmitRequest) (*submitFiles, error) {
	files := &submitFiles{}

	var err error
	if files.rover, files.roverSize, err = openSized(req.RoverFile); err != nil {
		return nil, fmt.Errorf("failed to open rover file: %w", err)
	}
	if req.BaseFile != "" {
		if files.base, files.baseSize, err = openSized(req.BaseFile); err != nil {
			files.Close()
			return nil, fmt.Errorf("failed to open base file: %w", err)
		}
	}
	if req.CameraMetadataFile != "" {
		if files.camera, files.cameraSize, err = openSized(req.CameraMetadataFile); err != nil {
			files.Close()
			return nil, fmt.Errorf("failed to open camera metadata file: %w", err)
		}
	}
	return files, nil
}

// Close releases every open handle.
func (f *submitFiles) Close() {
	for _, fh := range []*os.File{f.rover, f.base, f.camera} {
		if fh != nil {
			fh.Close()
		}
	}
}

// Submit sends a multipart POST /processes and returns the service answer.
// Credentials and files are checked before anything is opened or sent.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*api.SubmitResponse, int, error) {
	req.normalize()
	if err := c.requireCredentials(true); err != nil {
		return nil, 0, err
	}
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	files, err := openSubmitFiles(req)
	if err != nil {
		return nil, 0, err
	}
	defer files.Close()

	form := c.submitForm(req, files)

	// The body is streamed so large observation files are never held in
	// memory, but its length is computed first so the request is not chunked.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	size, err := form.contentLength(mw.Boundary())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to size submission: %w", err)
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		pw.CloseWithError(form.write(mw, copyPart))
	}()
	defer func() {
		// Unblock the writer if the request ended early, then wait for it
		// so no handle is read after Close.
		pr.Close()
		<-written
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/processes", nil, pr)
	if err != nil {
		return nil, 0, err
	}
	httpReq.ContentLength = size
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var out api.SubmitResponse
	code, err := c.do(httpReq, "submit", &out)
	if err != nil {
		return nil, code, err
	}

	c.log.Info("process submitted", "rover_file", filepath.Base(req.RoverFile),
		"type", req.Type, "status_code", code, "process_id", out.ID.String())
	return &out, code, nil
}

// formPart is one file part of the submission form.
type formPart struct {
	field    string
	filename string
	r        io.Reader
	size     int64
}

// multipartForm lists the fields and file parts of a submission in wire order.
type multipartForm struct {
	fields  [][2]string
	parts   []formPart
	trailer [][2]string
}

func (c *Client) submitForm(req SubmitRequest, files *submitFiles) *multipartForm {
	form := &multipartForm{
		fields: [][2]string{
			{"type", string(req.Type)},
			{"token", c.creds.SecretToken},
			{"rover_dynamics", string(req.Dynamics)},
			{"label", req.Label},
		},
	}

	form.parts = append(form.parts, formPart{"rover_file", filepath.Base(req.RoverFile), files.rover, files.roverSize})
	if files.base != nil {
		form.parts = append(form.parts, formPart{"base_file", filepath.Base(req.BaseFile), files.base, files.baseSize})
	}
	fragment := req.ConfigFragment()
	form.parts = append(form.parts, formPart{"config_file", "config_file", strings.NewReader(fragment), int64(len(fragment))})
	if files.camera != nil {
		form.parts = append(form.parts, formPart{"camera_metadata_file", filepath.Base(req.CameraMetadataFile), files.camera, files.cameraSize})
	}

	if req.BasePosition != nil {
		form.trailer = append(form.trailer, [2]string{"base_station_position", req.BasePosition.String()})
	}
	if req.Strategy != api.StrategyAuto {
		form.trailer = append(form.trailer, [2]string{"strategy", string(req.Strategy)})
	}
	return form
}

// write encodes the form into mw, handing each file part to copyContent.
func (f *multipartForm) write(mw *multipart.Writer, copyContent func(io.Writer, formPart) error) error {
	for _, field := range f.fields {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	for _, p := range f.parts {
		w, err := mw.CreateFormFile(p.field, p.filename)
		if err != nil {
			return err
		}
		if err := copyContent(w, p); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.field, err)
		}
	}
	for _, field := range f.trailer {
		if err := mw.WriteField(field[0], field[1]); err != nil {
			return err
		}
	}
	return mw.Close()
}

// contentLength returns the encoded size of the form without reading any file.
func (f *multipartForm) contentLength(boundary string) (int64, error) {
	var cw countingWriter
	mw := multipart.NewWriter(&cw)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}
	err := f.write(mw, func(_ io.Writer, p formPart) error {
		cw.n += p.size
		return nil
	})
	return cw.n, err
}

// copyPart streams exactly the announced number of bytes of a part.
func copyPart(w io.Writer, p formPart) error {
	n, err := io.Copy(w, io.LimitReader(p.r, p.size))
	if err != nil {
		return err
	}
	if n != p.size {
		return fmt.Errorf("%s changed while uploading: read %d of %d bytes", p.filename, n, p.size)
	}
	return nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
