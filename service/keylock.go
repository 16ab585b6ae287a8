package service

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// userLocks 按用户串行化，不同用户互不阻塞
type userLocks struct {
	m cmap.ConcurrentMap[string, *sync.Mutex]
}

func newUserLocks() *userLocks {
	return &userLocks{m: cmap.New[*sync.Mutex]()}
}

func (l *userLocks) lock(userID string) func() {
	mu := l.m.Upsert(userID, nil, func(exist bool, valueInMap, newValue *sync.Mutex) *sync.Mutex {
		if exist {
			return valueInMap
		}
		return &sync.Mutex{}
	})
	mu.Lock()
	return mu.Unlock
}
