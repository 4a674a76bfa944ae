package persistence

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Service 持久化服务接口
type Service interface {
	NewStore(prefix, id string) Store
	Close() error
}

// Store 存储接口：整值 JSON 存取
type Store interface {
	Save(data interface{}) error
	Load(data interface{}) error
}

// ErrNotExists 表示数据不存在
var ErrNotExists = fmt.Errorf("persistence data not exists")

// BadgerService 基于 Badger 的持久化服务
//
// 每个 Store 对应一个固定 key（prefix/id），值为 JSON 序列化的整块数据。
// 用于引擎快照这类「单 key 全量覆盖」的负载。
type BadgerService struct {
	db *badger.DB
}

// Open 打开（或创建）Badger 数据库
func Open(dir string) (*BadgerService, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &BadgerService{db: db}, nil
}

// Close 关闭数据库
func (s *BadgerService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewStore 创建指向固定 key 的存储
func (s *BadgerService) NewStore(prefix, id string) Store {
	return &badgerStore{db: s.db, key: []byte(prefix + "/" + id)}
}

// badgerStore 单 key JSON 存储
type badgerStore struct {
	db  *badger.DB
	key []byte
}

// Save 保存数据
func (st *badgerStore) Save(data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal persistence data")
	}
	err = st.db.Update(func(txn *badger.Txn) error {
		return txn.Set(st.key, raw)
	})
	return errors.Wrapf(err, "save %s", st.key)
}

// Load 加载数据，不存在时返回 ErrNotExists
func (st *badgerStore) Load(data interface{}) error {
	var raw []byte
	err := st.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(st.key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotExists
	}
	if err != nil {
		return errors.Wrapf(err, "load %s", st.key)
	}
	if err := json.Unmarshal(raw, data); err != nil {
		return errors.Wrap(err, "unmarshal persistence data")
	}
	return nil
}
