package repo

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/curator/pkg/curator/types"
)

// Key prefixes for the different record families.
const (
	prefixAsset = "a:" // a:<id> -> Asset JSON
	prefixPath  = "p:" // p:<lower(path)> -> id
	prefixType  = "t:" // t:<tag>:<id> -> path
)

// Library is the production Repository: asset records in Badger with a path
// index and a per-type index, plus an in-memory dirty set drained by
// PersistAll. The dirty set is unsynchronized; all mutation is expected to
// happen on the single goroutine that delivers change batches.
type Library struct {
	db    *badger.DB
	reg   *TypeRegistry
	dirty map[types.AssetID]*Asset
}

// Open opens or creates a library store at the given directory.
func Open(path string) (*Library, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open library store: %w", err)
	}

	return &Library{
		db:    db,
		reg:   NewTypeRegistry(),
		dirty: make(map[types.AssetID]*Asset),
	}, nil
}

// Close closes the underlying store.
func (l *Library) Close() error {
	return l.db.Close()
}

// Types returns the library's type registry.
func (l *Library) Types() *TypeRegistry {
	return l.reg
}

func assetKey(id types.AssetID) []byte {
	return []byte(prefixAsset + string(id))
}

func pathKey(p string) []byte {
	return []byte(prefixPath + strings.ToLower(p))
}

func typeKey(tag types.TypeTag, id types.AssetID) []byte {
	return []byte(prefixType + string(tag) + ":" + string(id))
}

// Put stores a single asset record and its index entries.
func (l *Library) Put(a *Asset) error {
	return l.PutBatch([]*Asset{a})
}

// PutBatch stores multiple asset records in one write batch.
func (l *Library) PutBatch(assets []*Asset) error {
	wb := l.db.NewWriteBatch()
	defer wb.Cancel()

	for _, a := range assets {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode asset %s: %w", a.Path, err)
		}
		if err := wb.Set(assetKey(a.ID), data); err != nil {
			return err
		}
		if err := wb.Set(pathKey(a.Path), []byte(a.ID)); err != nil {
			return err
		}
		if err := wb.Set(typeKey(a.Type, a.ID), []byte(a.Path)); err != nil {
			return err
		}
	}

	return wb.Flush()
}

// Delete removes the record at path together with its index entries. Unknown
// paths are a no-op.
func (l *Library) Delete(path string) error {
	a, err := l.Lookup(path)
	if err != nil || a == nil {
		return err
	}

	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(assetKey(a.ID)); err != nil {
			return err
		}
		if err := txn.Delete(pathKey(a.Path)); err != nil {
			return err
		}
		return txn.Delete(typeKey(a.Type, a.ID))
	})
}

// DeletePrefix removes the record at path and every record underneath it.
func (l *Library) DeletePrefix(path string) error {
	ids, err := l.idsUnder(path)
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, err := l.PathForID(id)
		if err != nil {
			return err
		}
		if p == "" {
			continue
		}
		if err := l.Delete(p); err != nil {
			return err
		}
	}
	return nil
}

// Rename moves the record at oldPath to newPath, keeping its identifier.
func (l *Library) Rename(oldPath, newPath string) error {
	a, err := l.Lookup(oldPath)
	if err != nil || a == nil {
		return err
	}
	if err := l.Delete(oldPath); err != nil {
		return err
	}
	a.Path = newPath
	a.Name = types.BaseName(newPath)
	return l.Put(a)
}

// Lookup returns the asset record at path, or nil if the path is unknown.
func (l *Library) Lookup(path string) (*Asset, error) {
	var id types.AssetID

	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pathKey(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = types.AssetID(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return l.get(id)
}

func (l *Library) get(id types.AssetID) (*Asset, error) {
	var a Asset

	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(assetKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &a)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (l *Library) idsUnder(dir string) ([]types.AssetID, error) {
	var ids []types.AssetID

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixPath)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			p := string(item.Key()[len(prefixPath):])
			if !types.PathEqual(p, dir) && !types.PathWithin(p, dir) {
				continue
			}
			err := item.Value(func(val []byte) error {
				ids = append(ids, types.AssetID(val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return ids, err
}

// FindByType returns the identifiers of all entries of exactly the given
// type, in key order.
func (l *Library) FindByType(tag types.TypeTag) ([]types.AssetID, error) {
	return l.FindByTypeUnder(tag, nil)
}

// FindByTypeUnder returns the identifiers of entries of the given type
// located under one of dirs. A nil dirs imposes no location restriction.
func (l *Library) FindByTypeUnder(tag types.TypeTag, dirs []string) ([]types.AssetID, error) {
	var ids []types.AssetID

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixType + string(tag) + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			id := types.AssetID(item.Key()[len(prefix):])
			if dirs == nil {
				ids = append(ids, id)
				continue
			}
			err := item.Value(func(val []byte) error {
				p := string(val)
				for _, d := range dirs {
					if types.PathWithin(p, d) {
						ids = append(ids, id)
						return nil
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	return ids, err
}

// PathForID resolves an identifier to its library path, or "".
func (l *Library) PathForID(id types.AssetID) (string, error) {
	a, err := l.get(id)
	if err != nil || a == nil {
		return "", err
	}
	return a.Path, nil
}

// IDForPath resolves a library path to its identifier, or "".
func (l *Library) IDForPath(path string) (types.AssetID, error) {
	a, err := l.Lookup(path)
	if err != nil || a == nil {
		return "", err
	}
	return a.ID, nil
}

// TypeOf returns the declared type of the entry at path, or "".
func (l *Library) TypeOf(path string) (types.TypeTag, error) {
	a, err := l.Lookup(path)
	if err != nil || a == nil {
		return "", err
	}
	return a.Type, nil
}

// Load resolves the entry at path as the given type. A bundle resolves as a
// component type when it carries a compatible facet; anything else resolves
// only as its own type or a declared supertype.
func (l *Library) Load(path string, as types.TypeTag) (*Asset, error) {
	a, err := l.Lookup(path)
	if err != nil || a == nil {
		return nil, err
	}

	if l.reg.IsSubtype(a.Type, as) {
		return a, nil
	}
	if a.Type == KindBundle && l.reg.IsComponent(as) && a.HasFacet(l.reg, as) {
		return a, nil
	}
	return nil, nil
}

// StableID returns the asset's identifier; ok is false for records that were
// never assigned one.
func (l *Library) StableID(a *Asset) (types.AssetID, bool) {
	if a == nil || a.ID == "" {
		return "", false
	}
	return a.ID, true
}

// MarkDirty queues the asset for the next PersistAll. Re-marking the same
// asset overwrites the queued copy.
func (l *Library) MarkDirty(a *Asset) {
	l.dirty[a.ID] = a
}

// PersistAll writes every dirty asset back to the store and clears the
// dirty set. With an empty dirty set it is a no-op.
func (l *Library) PersistAll() error {
	if len(l.dirty) == 0 {
		return nil
	}

	batch := make([]*Asset, 0, len(l.dirty))
	for _, a := range l.dirty {
		batch = append(batch, a)
	}
	if err := l.PutBatch(batch); err != nil {
		return err
	}

	l.dirty = make(map[types.AssetID]*Asset)
	return nil
}
