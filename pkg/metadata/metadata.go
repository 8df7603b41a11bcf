package metadata

import (
	"bytes"
	"encoding/json"
	"fmt"

	"mediamirror/pkg/models"
	"mediamirror/pkg/storage"
)

// Options selects which metadata files are written.
type Options struct {
	SavePage        bool
	PageFilename    string
	SaveDetails     bool
	DetailsFilename string
}

// DefaultOptions matches the default configuration.
func DefaultOptions() Options {
	return Options{
		SavePage:        true,
		PageFilename:    "video_page.html",
		SaveDetails:     true,
		DetailsFilename: "details.json",
	}
}

// Writer dumps item metadata into the library.
type Writer struct {
	lib  *storage.Manager
	opts Options
}

// NewWriter creates a Writer over lib.
func NewWriter(lib *storage.Manager, opts Options) *Writer {
	def := DefaultOptions()
	if opts.PageFilename == "" {
		opts.PageFilename = def.PageFilename
	}
	if opts.DetailsFilename == "" {
		opts.DetailsFilename = def.DetailsFilename
	}
	return &Writer{lib: lib, opts: opts}
}

// Options returns the writer's settings.
func (w *Writer) Options() Options {
	return w.opts
}

// Dump writes the raw page and the details as configured.
func (w *Writer) Dump(folder string, page []byte, details *models.ItemDetails) error {
	if w.opts.SavePage && page != nil {
		if err := w.lib.Save(bytes.NewReader(page), folder, w.opts.PageFilename); err != nil {
			return fmt.Errorf("failed to save item page: %w", err)
		}
	}
	if w.opts.SaveDetails && details != nil {
		if err := w.SaveDetails(folder, details); err != nil {
			return err
		}
	}
	return nil
}

// SaveDetails writes details as JSON indented by four spaces.
func (w *Writer) SaveDetails(folder string, details *models.ItemDetails) error {
	data, err := Marshal(details)
	if err != nil {
		return err
	}
	if err := w.lib.Save(bytes.NewReader(data), folder, w.opts.DetailsFilename); err != nil {
		return fmt.Errorf("failed to save details: %w", err)
	}
	return nil
}

// LoadPage reads an item's cached page.
func (w *Writer) LoadPage(folder string) ([]byte, error) {
	data, err := w.lib.ReadFile(folder, w.opts.PageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached page: %w", err)
	}
	return data, nil
}

// LoadDetails reads an item's details file.
func (w *Writer) LoadDetails(folder string) (*models.ItemDetails, error) {
	data, err := w.lib.ReadFile(folder, w.opts.DetailsFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to read details: %w", err)
	}
	var d models.ItemDetails
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal details: %w", err)
	}
	return &d, nil
}

// Marshal renders details the way they are stored.
func Marshal(details *models.ItemDetails) ([]byte, error) {
	data, err := json.MarshalIndent(details, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal details: %w", err)
	}
	return data, nil
}
