package testtypes

import (
	"context"
	"sort"
	"sync"
)

// Repo is a scoped-service stand-in for tests.
type Repo interface {
	Get(id string) (string, bool)
}

type MemRepo struct {
	Data map[string]string
}

func NewMemRepo() *MemRepo {
	return &MemRepo{Data: map[string]string{}}
}

func (r *MemRepo) Get(id string) (string, bool) {
	val, ok := r.Data[id]
	return val, ok
}

var _ Repo = (*MemRepo)(nil)

// StubRepo returns canned data; used to verify test-time substitution.
type StubRepo struct {
	Answer string
}

func NewStubRepo() *StubRepo {
	return &StubRepo{Answer: "stub"}
}

func (r *StubRepo) Get(string) (string, bool) {
	return r.Answer, true
}

var _ Repo = (*StubRepo)(nil)

// Logger is an optional-service stand-in for tests.
type Logger interface {
	Log(msg string)
}

type ListLogger struct {
	Lines []string
}

func NewListLogger() *ListLogger {
	return &ListLogger{}
}

func (l *ListLogger) Log(msg string) {
	l.Lines = append(l.Lines, msg)
}

var _ Logger = (*ListLogger)(nil)

// Sorter is a collection-service stand-in for tests. Name identifies the
// registration so ordering can be asserted.
type Sorter interface {
	Name() string
	Sort(vals []int)
}

type AscSorter struct{}

func NewAscSorter() *AscSorter { return &AscSorter{} }

func (*AscSorter) Name() string { return "asc" }

func (*AscSorter) Sort(vals []int) {
	sort.Ints(vals)
}

type DescSorter struct{}

func NewDescSorter() *DescSorter { return &DescSorter{} }

func (*DescSorter) Name() string { return "desc" }

func (*DescSorter) Sort(vals []int) {
	sort.Sort(sort.Reverse(sort.IntSlice(vals)))
}

var (
	_ Sorter = (*AscSorter)(nil)
	_ Sorter = (*DescSorter)(nil)
)

// Counter is a mutable-service stand-in for tests.
type Counter struct {
	Hits int
}

// CloseLog records the order services are closed in.
type CloseLog struct {
	mu    sync.Mutex
	names []string
}

func NewCloseLog() *CloseLog {
	return &CloseLog{}
}

func (l *CloseLog) Add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = append(l.names, name)
}

func (l *CloseLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func (l *CloseLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.names)
}

// ClosingService records its Close calls on a CloseLog.
type ClosingService struct {
	ID  string
	log *CloseLog
}

func NewClosingService(id string, log *CloseLog) *ClosingService {
	return &ClosingService{ID: id, log: log}
}

func (s *ClosingService) Close(context.Context) error {
	s.log.Add(s.ID)
	return nil
}
