package asset

import "sync"

// Response is a scripted result of Memory.
type Response struct {
	Data []byte
	Code int
}

// Memory is an in-memory Fetcher with scripted responses. It counts the
// requests it would have issued over the network: the first Fetch of a url
// issues a request, and so does the next Fetch after a transient failure
// was delivered or the url was released.
//
// Unscripted urls answer with the default response, 404 unless changed
// with SetDefault.
type Memory struct {
	mu        sync.Mutex
	responses map[string]Response
	def       Response
	issued    map[string]bool
	requests  map[string]int
	calls     map[string]int
	flags     map[string]Flags
	order     []string
}

// NewMemory returns an empty Memory fetcher.
func NewMemory() *Memory {
	return &Memory{
		responses: make(map[string]Response),
		def:       Response{Code: StatusNotFound},
		issued:    make(map[string]bool),
		requests:  make(map[string]int),
		calls:     make(map[string]int),
		flags:     make(map[string]Flags),
	}
}

// Set scripts the response of url.
func (m *Memory) Set(url string, data []byte, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[url] = Response{Data: data, Code: code}
}

// SetOK scripts a successful response.
func (m *Memory) SetOK(url string, data []byte) {
	m.Set(url, data, StatusOK)
}

// SetPending scripts url as in flight.
func (m *Memory) SetPending(url string) {
	m.Set(url, nil, StatusPending)
}

// SetDefault sets the response of unscripted urls.
func (m *Memory) SetDefault(data []byte, code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.def = Response{Data: data, Code: code}
}

// Fetch implements Fetcher.
func (m *Memory) Fetch(url string, flags Flags) ([]byte, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[url]++
	m.flags[url] = flags
	if !m.issued[url] {
		m.issued[url] = true
		m.requests[url]++
		m.order = append(m.order, url)
	}
	r, ok := m.responses[url]
	if !ok {
		r = m.def
	}
	if r.Code == StatusTransient || (r.Code != StatusPending && flags&UsedOnce != 0) {
		m.issued[url] = false
	}
	return r.Data, r.Code
}

// Release implements Fetcher.
func (m *Memory) Release(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued[url] = false
}

// Requests returns the number of requests issued for url.
func (m *Memory) Requests(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[url]
}

// Calls returns the number of Fetch calls for url.
func (m *Memory) Calls(url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[url]
}

// Flags returns the flags of the last Fetch of url.
func (m *Memory) Flags(url string) Flags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[url]
}

// Issued returns every issued request in order, one element per request.
func (m *Memory) Issued() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// TotalRequests returns the number of requests issued for all urls.
func (m *Memory) TotalRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
