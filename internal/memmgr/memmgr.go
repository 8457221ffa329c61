// Package memmgr implements the demand-paging memory manager: frame
// table, per-process page tables, the free-frame FIFO, LRU eviction,
// and a backing-store writer. It models fault/replacement behavior
// only; the actual byte contents a process reads and writes live in
// the PCB's own memory buffer (internal/process) — the manager itself
// never persists byte contents in a frame.
package memmgr

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnknownProcess is returned by Access when the pid has no
// allocated page table.
var ErrUnknownProcess = errors.New("memmgr: unknown process")

// ErrAddressOutOfRange is returned by Access when the virtual address
// exceeds the process's allocated page table.
var ErrAddressOutOfRange = errors.New("memmgr: address out of range")

// Frame is one physical-memory frame slot. PID == -1 means free.
type Frame struct {
	PID        int
	PageNo     int
	Modified   bool
	LastAccess int64
}

// PageTableEntry is one per-process page mapping.
type PageTableEntry struct {
	PageNo   int
	Valid    bool
	FrameNo  int
	Modified bool
}

// Stats is a point-in-time snapshot of manager-wide counters.
type Stats struct {
	TotalBytes  int
	UsedBytes   int
	FreeBytes   int
	PagedIn     int
	PagedOut    int
	IdleTicks   int64
	ActiveTicks int64
}

type pageKey struct {
	pid    int
	pageNo int
}

// Manager is the paging memory manager. All operations are serialized
// by mu; I/O against the backing store is always done with mu
// released.
type Manager struct {
	mu sync.Mutex

	pageSize   int
	numFrames  int
	frames     []Frame
	freeList   []int
	pageTables map[int][]PageTableEntry
	presence   map[pageKey]bool
	current    int64

	store *BackingStore
	log   *slog.Logger

	stats Stats
}

// New builds a Manager over totalBytes of simulated physical memory,
// divided into pageSize-byte frames.
func New(totalBytes, pageSize int, store *BackingStore, log *slog.Logger) *Manager {
	if pageSize <= 0 {
		pageSize = 1024
	}
	numFrames := totalBytes / pageSize
	if numFrames <= 0 {
		numFrames = 1
	}
	m := &Manager{
		pageSize:   pageSize,
		numFrames:  numFrames,
		frames:     make([]Frame, numFrames),
		pageTables: make(map[int][]PageTableEntry),
		presence:   make(map[pageKey]bool),
		store:      store,
		log:        log,
	}
	for i := range m.frames {
		m.frames[i] = Frame{PID: -1}
		m.freeList = append(m.freeList, i)
	}
	m.stats.TotalBytes = numFrames * pageSize
	m.stats.FreeBytes = m.stats.TotalBytes
	return m
}

// AllocateProcess installs a page table of ceil(bytes/pageSize)
// entries, all invalid, for pid. Always succeeds for a fresh pid; a
// pid that already has a table is replaced (the scheduler never
// reuses a live pid, so this path is only exercised by tests).
func (m *Manager) AllocateProcess(pid, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pages := (bytes + m.pageSize - 1) / m.pageSize
	if pages <= 0 {
		pages = 1
	}
	table := make([]PageTableEntry, pages)
	for i := range table {
		table[i] = PageTableEntry{PageNo: i, FrameNo: -1}
	}
	m.pageTables[pid] = table
	m.log.Debug("process memory allocated", "pid", pid, "bytes", bytes, "pages", pages)
}

// DeallocateProcess frees every frame mapped to pid and erases its
// page table.
func (m *Manager) DeallocateProcess(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	table, ok := m.pageTables[pid]
	if !ok {
		return
	}
	freed := 0
	for _, pte := range table {
		if pte.Valid && pte.FrameNo >= 0 {
			m.frames[pte.FrameNo] = Frame{PID: -1}
			m.freeList = append(m.freeList, pte.FrameNo)
			freed++
		}
	}
	delete(m.pageTables, pid)
	m.stats.UsedBytes -= freed * m.pageSize
	m.stats.FreeBytes = m.stats.TotalBytes - m.stats.UsedBytes
	m.log.Debug("process memory deallocated", "pid", pid, "frames_freed", freed)
}

// Access services one memory reference, faulting the page in via LRU
// replacement if necessary.
func (m *Manager) Access(pid int, addr int, write bool) error {
	m.mu.Lock()

	m.current++
	table, ok := m.pageTables[pid]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownProcess
	}
	pageNo := addr / m.pageSize
	if pageNo >= len(table) {
		m.mu.Unlock()
		return ErrAddressOutOfRange
	}

	entry := table[pageNo]
	if !entry.Valid {
		frameIdx, err := m.faultInLocked(pid, pageNo)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		entry = table[pageNo]
		_ = frameIdx
	} else {
		m.frames[entry.FrameNo].LastAccess = m.current
	}

	if write {
		table[pageNo].Modified = true
		m.frames[table[pageNo].FrameNo].Modified = true
	}
	m.mu.Unlock()
	return nil
}

// faultInLocked resolves a page fault for (pid, pageNo). Called with
// mu held; may release and reacquire mu around the backing-store
// write performed during eviction.
func (m *Manager) faultInLocked(pid, pageNo int) (int, error) {
	var frameIdx int
	if len(m.freeList) > 0 {
		frameIdx = m.freeList[0]
		m.freeList = m.freeList[1:]
	} else {
		var err error
		frameIdx, err = m.evictOldestLocked()
		if err != nil {
			return -1, err
		}
	}

	m.frames[frameIdx] = Frame{PID: pid, PageNo: pageNo, LastAccess: m.current}
	table := m.pageTables[pid]
	table[pageNo].Valid = true
	table[pageNo].FrameNo = frameIdx
	table[pageNo].Modified = false
	m.pageTables[pid] = table

	m.stats.PagedIn++
	m.stats.UsedBytes += m.pageSize
	m.stats.FreeBytes = m.stats.TotalBytes - m.stats.UsedBytes
	return frameIdx, nil
}

// evictOldestLocked selects the frame with the smallest LastAccess
// (LRU), writes it to the backing store if required, and returns it
// free for reuse. mu is released for the duration of the backing-store
// write and reacquired before returning.
func (m *Manager) evictOldestLocked() (int, error) {
	oldest := -1
	var oldestTime int64 = -1
	for i, f := range m.frames {
		if f.PID < 0 {
			continue
		}
		if oldest == -1 || f.LastAccess < oldestTime {
			oldest = i
			oldestTime = f.LastAccess
		}
	}
	if oldest == -1 {
		return -1, fmt.Errorf("memmgr: no frame available to evict")
	}

	victim := m.frames[oldest]
	key := pageKey{pid: victim.PID, pageNo: victim.PageNo}
	needsWrite := victim.Modified || !m.presence[key]

	m.stats.PagedOut++

	if needsWrite {
		m.mu.Unlock()
		err := m.store.WritePage(victim.PID, victim.PageNo, make([]byte, m.pageSize))
		m.mu.Lock()
		if err != nil {
			m.log.Error("backing store write failed", "pid", victim.PID, "page", victim.PageNo, "error", err)
			return -1, err
		}
		m.presence[key] = true
	}

	if table, ok := m.pageTables[victim.PID]; ok && victim.PageNo < len(table) {
		table[victim.PageNo].Valid = false
		table[victim.PageNo].FrameNo = -1
		table[victim.PageNo].Modified = false
		m.pageTables[victim.PID] = table
	}

	m.frames[oldest] = Frame{PID: -1}
	m.stats.UsedBytes -= m.pageSize
	m.stats.FreeBytes = m.stats.TotalBytes - m.stats.UsedBytes
	return oldest, nil
}

// Stats returns a snapshot with free recomputed from total-used to
// eliminate drift.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats
	s.FreeBytes = s.TotalBytes - s.UsedBytes
	return s
}

// Tick accounts one CPU tick as idle or active for the utilization
// counters exposed by internal/status.
func (m *Manager) Tick(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if active {
		m.stats.ActiveTicks++
	} else {
		m.stats.IdleTicks++
	}
}

// PageSize reports the configured frame size in bytes.
func (m *Manager) PageSize() int { return m.pageSize }

// NumFrames reports the total frame count.
func (m *Manager) NumFrames() int { return m.numFrames }
