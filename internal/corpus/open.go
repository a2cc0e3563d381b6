package corpus

import (
	"errors"
	"fmt"

	"github.com/cyberrag/crag/internal/semantic"
	"github.com/cyberrag/crag/internal/storage"
)

// Errors returned by Open.
var (
	ErrAlignment     = errors.New("index and metadata are not aligned")
	ErrModelMismatch = errors.New("embedding model mismatch")
)

// OpenOptions configures Open. Empty Metric or ModelName accept whatever the
// index was built with.
type OpenOptions struct {
	IndexPath    string
	MetadataPath string
	Metric       semantic.Metric
	ModelName    string
}

// Corpus is an opened, validated artifact pair.
type Corpus struct {
	Index *semantic.Index
	Store storage.MetadataStore
}

// Open loads both artifacts and checks that they belong together: equal
// sizes, the same record id at every slot and a matching metadata digest.
// Any mismatch is ErrAlignment.
func Open(opts OpenOptions) (*Corpus, error) {
	idx, err := semantic.Load(opts.IndexPath)
	if err != nil {
		return nil, err
	}

	if opts.Metric != "" {
		if err := idx.CheckMetric(opts.Metric); err != nil {
			return nil, err
		}
	}
	if opts.ModelName != "" && opts.ModelName != idx.ModelName {
		return nil, fmt.Errorf("%w: index built with %q, configured %q", ErrModelMismatch, idx.ModelName, opts.ModelName)
	}

	store, err := storage.Open(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	if err := checkAlignment(idx, store); err != nil {
		store.Close()
		return nil, err
	}

	return &Corpus{Index: idx, Store: store}, nil
}

func checkAlignment(idx *semantic.Index, store storage.MetadataStore) error {
	if idx.Size() != store.Size() {
		return fmt.Errorf("%w: index has %d vectors, metadata has %d rows", ErrAlignment, idx.Size(), store.Size())
	}

	rows, err := storage.ReadAll(store)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAlignment, err)
	}
	for i, row := range rows {
		if row.ID != idx.IDs[i] {
			return fmt.Errorf("%w: slot %d holds %s in the index but %s in metadata", ErrAlignment, i, idx.IDs[i], row.ID)
		}
	}

	if idx.MetadataDigest != "" {
		digest, err := storage.Digest(rows)
		if err != nil {
			return err
		}
		if digest != idx.MetadataDigest {
			return fmt.Errorf("%w: metadata digest does not match the index (built %s)", ErrAlignment, idx.BuildID)
		}
	}
	return nil
}

// Close releases the metadata store.
func (c *Corpus) Close() error {
	return c.Store.Close()
}
