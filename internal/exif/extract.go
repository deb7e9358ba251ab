// Package exif collects EXIF tags from a folder of camera images into the
// camera metadata bundle attached to photogrammetry processes.
package exif

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	goexif "github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ImageSuffix selects the images of a folder. The match is case-sensitive.
const ImageSuffix = ".JPG"

// DefaultOutputName is the bundle file name used when none is given.
const DefaultOutputName = "camera_metadata_file.json"

// ErrNoExif is returned for images that carry no EXIF segment.
var ErrNoExif = errors.New("exif data not found")

// Bundle maps an image file name to its tags.
type Bundle map[string]map[string]string

// Extractor builds camera metadata bundles.
type Extractor struct {
	log *slog.Logger
}

// New returns an Extractor logging to log.
func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{log: log}
}

// ListImages returns the sorted names of the images in folder. A missing
// or unreadable folder yields an empty list.
func (e *Extractor) ListImages(folder string) []string {
	entries, err := os.ReadDir(folder)
	if err != nil {
		e.log.Debug("cannot read images folder", "folder", folder, "error", err)
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ImageSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names
}

// ExtractTags decodes the EXIF tags of one image into tag name → value.
func (e *Extractor) ExtractTags(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", path, err)
	}
	defer f.Close()

	x, err := goexif.Decode(f)
	if err != nil {
		if isMissingExif(err) {
			return nil, fmt.Errorf("image %s: %w", path, ErrNoExif)
		}
		// Partially decoded tags are still usable.
		if x == nil || goexif.IsCriticalError(err) {
			return nil, fmt.Errorf("decode exif of %s: %w", path, err)
		}
		e.log.Debug("exif decoded with warnings", "image", path, "error", err)
	}

	tags := tagWalker{}
	if err := x.Walk(tags); err != nil {
		return nil, fmt.Errorf("walk exif of %s: %w", path, err)
	}
	return tags, nil
}

// isMissingExif reports whether the decoder found no EXIF segment at all,
// either no APP1 marker or an APP1 holding something else (XMP).
func isMissingExif(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		strings.Contains(err.Error(), "failed to find exif intro marker")
}

type tagWalker map[string]string

func (w tagWalker) Walk(name goexif.FieldName, tag *tiff.Tag) error {
	w[string(name)] = tagString(tag)
	return nil
}

func tagString(tag *tiff.Tag) string {
	if tag.Format() == tiff.StringVal {
		if s, err := tag.StringVal(); err == nil {
			return strings.TrimRight(s, "\x00 ")
		}
	}
	return tag.String()
}

// Collect extracts the tags of every image in folder. Images without EXIF
// are skipped; any other decode failure aborts.
func (e *Extractor) Collect(folder string) (Bundle, error) {
	bundle := Bundle{}
	for _, name := range e.ListImages(folder) {
		tags, err := e.ExtractTags(filepath.Join(folder, name))
		if err != nil {
			if errors.Is(err, ErrNoExif) {
				e.log.Warn("image has no exif data", "image", name)
				continue
			}
			return nil, err
		}
		if len(tags) == 0 {
			continue
		}
		bundle[name] = tags
	}
	return bundle, nil
}

// BuildMetadataFile writes the bundle of folder as JSON to
// folder/outputName and returns its path. It returns "" without error when
// the folder holds no images or none of them carried tags.
func (e *Extractor) BuildMetadataFile(folder, outputName string) (string, error) {
	if outputName == "" {
		outputName = DefaultOutputName
	}
	return e.writeBundle(folder, filepath.Join(folder, outputName))
}

// BuildTempMetadataFile writes the bundle of folder to a new temporary
// directory, leaving folder untouched. cleanup removes that directory and
// is never nil.
func (e *Extractor) BuildTempMetadataFile(folder string) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp("", "jason-exif-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("create camera metadata dir: %w", err)
	}
	cleanup = func() {
		if err := os.RemoveAll(dir); err != nil {
			e.log.Warn("failed to remove camera metadata", "dir", dir, "error", err)
		}
	}

	path, err = e.writeBundle(folder, filepath.Join(dir, DefaultOutputName))
	if err != nil || path == "" {
		cleanup()
		return "", func() {}, err
	}
	return path, cleanup, nil
}

func (e *Extractor) writeBundle(folder, path string) (string, error) {
	if len(e.ListImages(folder)) == 0 {
		e.log.Info("no images found", "folder", folder, "suffix", ImageSuffix)
		return "", nil
	}

	bundle, err := e.Collect(folder)
	if err != nil {
		return "", err
	}
	if len(bundle) == 0 {
		e.log.Info("no exif tags extracted", "folder", folder)
		return "", nil
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("encode camera metadata: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write camera metadata: %w", err)
	}

	e.log.Info("camera metadata written", "path", path, "images", len(bundle))
	return path, nil
}
