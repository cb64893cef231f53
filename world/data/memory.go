package data

import (
	"sort"
	"sync"
)

const DriverMemory = "memory"

// MemoryDriver 进程内驱动，用于单机运行和测试
// 与 redis 驱动一样保存编码后的字节
type MemoryDriver struct {
	mtx    sync.Mutex
	realms map[uint32][]byte
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{realms: map[uint32][]byte{}}
}

func (d *MemoryDriver) LoadRealm(id uint32, ri *RealmInfo) error {
	d.mtx.Lock()
	b, ok := d.realms[id]
	d.mtx.Unlock()
	if !ok {
		return ErrRealmNotFound
	}
	return decodeRealm(b, ri)
}

func (d *MemoryDriver) SaveRealm(ri *RealmInfo) error {
	b, err := encodeRealm(ri)
	if err != nil {
		return err
	}
	d.mtx.Lock()
	d.realms[ri.Id] = append([]byte(nil), b...)
	d.mtx.Unlock()
	return nil
}

func (d *MemoryDriver) ListRealms() ([]RealmInfo, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	realms := make([]RealmInfo, 0, len(d.realms))
	for _, b := range d.realms {
		var ri RealmInfo
		if err := decodeRealm(b, &ri); err != nil {
			return nil, err
		}
		realms = append(realms, ri)
	}
	sortRealms(realms)
	return realms, nil
}

func sortRealms(realms []RealmInfo) {
	sort.Slice(realms, func(i, j int) bool {
		return realms[i].Id < realms[j].Id
	})
}
