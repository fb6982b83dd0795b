package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rushteam/reckit-rt/core"
)

// BadgerStore 是嵌入式的 core.Store 实现，用于共现模型检查点等本地持久化数据。
type BadgerStore struct {
	db *badger.DB
}

// BadgerOptions 配置嵌入式存储。
type BadgerOptions struct {
	Path     string
	InMemory bool // 仅用于测试
}

func OpenBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	var bopts badger.Options
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, fmt.Errorf("badger: path is required")
		}
		bopts = badger.DefaultOptions(opts.Path)
	}
	bopts = bopts.WithLogger(nil)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (b *BadgerStore) Name() string { return "badger" }

func (b *BadgerStore) Get(ctx context.Context, key string) ([]byte, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, core.ErrStoreNotFound
	}
	return val, err
}

func newEntry(key string, value []byte, ttl []int) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if len(ttl) > 0 && ttl[0] > 0 {
		e = e.WithTTL(time.Duration(ttl[0]) * time.Second)
	}
	return e
}

func (b *BadgerStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(key, value, ttl))
	})
}

func (b *BadgerStore) Delete(ctx context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *BadgerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get([]byte(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			result[k] = val
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (b *BadgerStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for k, v := range kvs {
			if err := txn.SetEntry(newEntry(k, v, ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BadgerStore) Close() error {
	return b.db.Close()
}

var _ core.Store = (*BadgerStore)(nil)
